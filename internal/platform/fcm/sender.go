// --- File: internal/platform/fcm/sender.go ---
// Package fcm adapts the Firebase Admin messaging client to dispatch.Sender.
package fcm

import (
	"context"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/messaging"
	"github.com/tinywideclouds/go-fcm-messaging/pkg/dispatch"
)

// MaxMulticastTokens is the FCM limit on tokens per multicast call.
const MaxMulticastTokens = 500

// MessagingClient defines the subset of the Firebase Messaging API we use.
// *messaging.Client satisfies it; tests substitute a mock.
type MessagingClient interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

type Sender struct {
	client   MessagingClient
	classify func(error) dispatch.FailureKind
	logger   *slog.Logger
}

func NewSender(client MessagingClient, logger *slog.Logger) *Sender {
	return &Sender{
		client:   client,
		classify: Classify,
		logger:   logger.With("component", "FCMSender"),
	}
}

// Send delivers a single-token message.
func (s *Sender) Send(ctx context.Context, msg *messaging.Message) (string, error) {
	id, err := s.client.Send(ctx, msg)
	if err != nil {
		return "", &dispatch.DeliveryError{Kind: s.classify(err), Err: err}
	}
	return id, nil
}

// SendMulticast delivers one message to every token in msg, chunked to the
// FCM limit. Per-token rejections are sorted into the report; a failure of a
// whole call aborts and is returned as an error. When earlier chunks already
// went out, their report is returned alongside that error.
func (s *Sender) SendMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*dispatch.MulticastReport, error) {
	report := &dispatch.MulticastReport{}
	if len(msg.Tokens) == 0 {
		return report, nil
	}

	for i, batch := range chunkTokens(msg.Tokens, MaxMulticastTokens) {
		chunk := *msg
		chunk.Tokens = batch

		br, err := s.client.SendEachForMulticast(ctx, &chunk)
		if err != nil {
			var partial *dispatch.MulticastReport
			if i > 0 {
				partial = report
				s.logger.Warn("FCM multicast aborted after partial delivery", "chunks_sent", i, "success", report.SuccessCount)
			}
			return partial, &dispatch.DeliveryError{
				Kind: s.classify(err),
				Err:  fmt.Errorf("fcm multicast transport failed: %w", err),
			}
		}

		report.SuccessCount += br.SuccessCount
		report.FailureCount += br.FailureCount
		if br.FailureCount == 0 {
			continue
		}

		for idx, resp := range br.Responses {
			if resp.Success || idx >= len(batch) {
				continue
			}
			switch s.classify(resp.Error) {
			case dispatch.FailureInvalidToken:
				report.InvalidTokens = append(report.InvalidTokens, batch[idx])
			case dispatch.FailureUnregistered:
				report.UnknownTokens = append(report.UnknownTokens, batch[idx])
			default:
				s.logger.Warn("FCM send failed for token", "index", idx, "err", resp.Error)
			}
		}
	}

	s.logger.Debug("FCM multicast complete",
		"success", report.SuccessCount,
		"failure", report.FailureCount,
		"invalid", len(report.InvalidTokens),
		"unknown", len(report.UnknownTokens),
	)
	return report, nil
}

// Classify maps a Firebase messaging error onto a FailureKind.
func Classify(err error) dispatch.FailureKind {
	switch {
	case err == nil:
		return dispatch.FailureNone
	case messaging.IsUnregistered(err):
		return dispatch.FailureUnregistered
	case messaging.IsInvalidArgument(err), messaging.IsSenderIDMismatch(err):
		return dispatch.FailureInvalidToken
	case messaging.IsQuotaExceeded(err):
		return dispatch.FailureQuotaExceeded
	case messaging.IsUnavailable(err), messaging.IsInternal(err):
		return dispatch.FailureUnavailable
	case messaging.IsThirdPartyAuthError(err):
		return dispatch.FailureAuth
	default:
		return dispatch.FailureUnknown
	}
}

func chunkTokens(tokens []string, size int) [][]string {
	var chunks [][]string
	for i := 0; i < len(tokens); i += size {
		end := min(i+size, len(tokens))
		chunks = append(chunks, tokens[i:end])
	}
	return chunks
}
