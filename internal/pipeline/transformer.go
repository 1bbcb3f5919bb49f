// --- File: internal/pipeline/transformer.go ---
// Package pipeline contains the core message processing components for the service.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-fcm-messaging/pkg/dispatch"
)

// NotifyRequestTransformer is a dataflow Transformer that unmarshals a raw
// message payload into a dispatch.NotifyRequest and checks that it names
// exactly one target.
//
// Payload validation (title and body) is left to the dispatch service so the
// failure is reported as invalid_input rather than dead-lettered.
func NotifyRequestTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*dispatch.NotifyRequest, bool, error) {
	var req dispatch.NotifyRequest

	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		// skip=true lets the StreamingService handle the Nack/DLQ logic.
		return nil, true, fmt.Errorf("failed to unmarshal notify request from message %s: %w", msg.ID, err)
	}

	if err := req.ValidateTarget(); err != nil {
		return nil, true, fmt.Errorf("invalid notify request in message %s: %w", msg.ID, err)
	}

	return &req, false, nil
}
