package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-fcm-messaging/internal/pipeline"
	"github.com/tinywideclouds/go-fcm-messaging/pkg/dispatch"
)

func TestNotifyRequestTransformer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	testCases := []struct {
		name                  string
		payload               string
		expectError           bool
		expectedErrorContains string
	}{
		{
			name:    "Happy Path - User target",
			payload: `{"notification":{"title":"Hi","body":"There"},"user_id":12}`,
		},
		{
			name:    "Happy Path - Empty token list still names a target",
			payload: `{"notification":{"title":"Hi","body":"There"},"tokens":[]}`,
		},
		{
			name:                  "Failure - Malformed JSON",
			payload:               "not-json",
			expectError:           true,
			expectedErrorContains: "failed to unmarshal notify request",
		},
		{
			name:                  "Failure - No target",
			payload:               `{"notification":{"title":"Hi","body":"There"}}`,
			expectError:           true,
			expectedErrorContains: "invalid notify request",
		},
		{
			name:                  "Failure - Two targets",
			payload:               `{"notification":{"title":"Hi","body":"There"},"token":"T","broadcast":true}`,
			expectError:           true,
			expectedErrorContains: "invalid notify request",
		},
	}

	for i, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			msg := &messagepipeline.Message{
				MessageData: messagepipeline.MessageData{ID: string(rune('a' + i)), Payload: []byte(tc.payload)},
			}
			req, skip, err := pipeline.NotifyRequestTransformer(ctx, msg)

			if tc.expectError {
				require.Error(t, err)
				assert.True(t, skip)
				assert.Contains(t, err.Error(), tc.expectedErrorContains)
				return
			}
			require.NoError(t, err)
			assert.False(t, skip)
			assert.Equal(t, "Hi", req.Notification.Title)
		})
	}
}

func TestNotifyRequestTransformer_NoTargetWrapsSentinel(t *testing.T) {
	msg := &messagepipeline.Message{
		MessageData: messagepipeline.MessageData{ID: "m", Payload: []byte(`{"notification":{"title":"a","body":"b"}}`)},
	}
	_, _, err := pipeline.NotifyRequestTransformer(context.Background(), msg)
	assert.ErrorIs(t, err, dispatch.ErrNoTarget)
}
