package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-fcm-messaging/internal/pipeline"
	"github.com/tinywideclouds/go-fcm-messaging/pkg/dispatch"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Handle(ctx context.Context, req dispatch.NotifyRequest) (dispatch.Result, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(dispatch.Result), args.Error(1)
}

func TestProcessor_Outcomes(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	userID := int64(7)
	inbound := &dispatch.NotifyRequest{
		Notification: dispatch.Notification{Title: "Hello", Body: "World"},
		UserID:       &userID,
	}
	original := messagepipeline.Message{MessageData: messagepipeline.MessageData{ID: "msg-1"}}

	t.Run("Delivered is acked", func(t *testing.T) {
		notifier := new(mockNotifier)
		notifier.On("Handle", mock.Anything, *inbound).Return(dispatch.Result{
			Delivered: true,
			Report:    &dispatch.MulticastReport{SuccessCount: 2},
		}, nil)

		err := pipeline.NewProcessor(notifier, logger)(ctx, original, inbound)

		require.NoError(t, err)
		notifier.AssertExpectations(t)
	})

	t.Run("Delivery failure is acked", func(t *testing.T) {
		notifier := new(mockNotifier)
		notifier.On("Handle", mock.Anything, *inbound).Return(
			dispatch.Failed(&dispatch.DeliveryError{Kind: dispatch.FailureUnavailable, Err: errors.New("503")}), nil)

		err := pipeline.NewProcessor(notifier, logger)(ctx, original, inbound)

		assert.NoError(t, err)
	})

	t.Run("Storage failure is nacked", func(t *testing.T) {
		notifier := new(mockNotifier)
		notifier.On("Handle", mock.Anything, *inbound).Return(dispatch.Result{}, errors.New("db down"))

		err := pipeline.NewProcessor(notifier, logger)(ctx, original, inbound)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
	})
}
