package pipeline

import (
	"context"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-fcm-messaging/pkg/dispatch"
)

// NewProcessor hands each decoded request to the notifier.
//
// Only a failure to resolve the recipients is returned (and so retried).
// Delivery failures are final: the dispatch service has already pruned the
// tokens involved, and redelivering the message would not change the outcome.
func NewProcessor(
	notifier dispatch.Notifier,
	logger *slog.Logger,
) messagepipeline.StreamProcessor[dispatch.NotifyRequest] {
	logger = logger.With("component", "NotifyProcessor")

	return func(ctx context.Context, original messagepipeline.Message, request *dispatch.NotifyRequest) error {
		procLogger := logger.With("pubsub_msg_id", original.ID)

		res, err := notifier.Handle(ctx, *request)
		if err != nil {
			procLogger.Error("Failed to resolve recipients", "err", err)
			return err // Retryable
		}

		if !res.Delivered {
			procLogger.Warn("Notification not delivered; dropping",
				"failure", res.Kind,
				"cause", res.Cause(),
				"pruned", len(res.Pruned),
			)
			return nil
		}

		attrs := []any{"pruned", len(res.Pruned)}
		if res.Report != nil {
			attrs = append(attrs, "success", res.Report.SuccessCount, "failure", res.Report.FailureCount)
		}
		procLogger.Info("Notification dispatched", attrs...)
		return nil
	}
}
