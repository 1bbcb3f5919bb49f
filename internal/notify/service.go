// Package notify orchestrates single and multicast sends and prunes the
// tokens FCM rejects.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tinywideclouds/go-fcm-messaging/internal/message"
	"github.com/tinywideclouds/go-fcm-messaging/pkg/dispatch"
)

// Service is the dispatch entry point. It holds no per-call state.
type Service struct {
	builder *message.Builder
	sender  dispatch.Sender
	store   dispatch.TokenStore
	logger  *slog.Logger
}

func NewService(builder *message.Builder, sender dispatch.Sender, store dispatch.TokenStore, logger *slog.Logger) *Service {
	return &Service{
		builder: builder,
		sender:  sender,
		store:   store,
		logger:  logger.With("component", "NotifyService"),
	}
}

// Compose builds a notification payload with the configured link default.
func (s *Service) Compose(title, body string, attrs message.Attributes) dispatch.Notification {
	return s.builder.Compose(title, body, attrs)
}

// Notify sends n to the target. It never returns delivery failures as
// errors; the Result says what happened and why.
func (s *Service) Notify(ctx context.Context, n dispatch.Notification, target Target) dispatch.Result {
	logger := s.logger.With("dispatch_id", uuid.NewString())
	if target.IsMulticast() {
		return s.notifyAll(ctx, logger, n, target.tokens())
	}
	return s.notifyToken(ctx, logger, n, target.token)
}

// NotifyToken is the single-send path.
func (s *Service) NotifyToken(ctx context.Context, n dispatch.Notification, token string) dispatch.Result {
	return s.Notify(ctx, n, ToToken(token))
}

// NotifyAll is the multicast path.
func (s *Service) NotifyAll(ctx context.Context, n dispatch.Notification, records []dispatch.TokenRecord) dispatch.Result {
	return s.Notify(ctx, n, ToRecords(records))
}

func (s *Service) notifyToken(ctx context.Context, logger *slog.Logger, n dispatch.Notification, token string) dispatch.Result {
	// A bad payload says nothing about the token, so it is not pruned.
	env, err := s.builder.Build(n)
	if err != nil {
		logger.Warn("Rejected notification", "err", err)
		return dispatch.Failed(err)
	}
	if token == "" {
		return dispatch.Failed(&dispatch.DeliveryError{Kind: dispatch.FailureNoTokens, Err: errors.New("empty token")})
	}

	id, err := s.sender.Send(ctx, env.ToToken(token))
	if err != nil {
		res := dispatch.Failed(err)
		logger.Warn("FCM send failed; pruning token", "kind", res.Kind, "err", err)

		removed, delErr := s.store.DeleteByToken(ctx, token)
		if delErr != nil {
			logger.Error("Failed to prune token", "err", delErr)
		} else if removed {
			res.Pruned = []string{token}
		}
		return res
	}

	logger.Info("FCM message sent", "message_id", id)
	return dispatch.Result{Delivered: true}
}

func (s *Service) notifyAll(ctx context.Context, logger *slog.Logger, n dispatch.Notification, tokens []string) dispatch.Result {
	if len(tokens) == 0 {
		logger.Debug("No tokens to notify")
		return dispatch.Failed(&dispatch.DeliveryError{Kind: dispatch.FailureNoTokens, Err: errors.New("no non-empty tokens")})
	}

	env, err := s.builder.Build(n)
	if err != nil {
		logger.Warn("Rejected notification", "err", err)
		return dispatch.Failed(err)
	}

	report, err := s.sender.SendMulticast(ctx, env.ToMulticast(tokens))
	if err != nil {
		logger.Error("FCM multicast failed", "tokens", len(tokens), "err", err)
		// A partial report is kept for the caller, but the send is not
		// complete so nothing is pruned.
		res := dispatch.Failed(err)
		res.Report = report
		return res
	}

	res := dispatch.Result{Delivered: true, Report: report}
	if pruned, err := s.cleanUp(ctx, report); err != nil {
		logger.Warn("Failed to prune stale tokens", "err", err)
	} else {
		res.Pruned = pruned
	}

	logger.Info("FCM multicast sent",
		"tokens", len(tokens),
		"success", report.SuccessCount,
		"failure", report.FailureCount,
		"pruned", len(res.Pruned),
	)
	return res
}

// cleanUp deletes the invalid and unknown tokens in one batch. The store only
// says whether any row went, so the returned list is every token it was asked
// to delete, not necessarily every token it removed.
func (s *Service) cleanUp(ctx context.Context, report *dispatch.MulticastReport) ([]string, error) {
	stale := report.Stale()
	if len(stale) == 0 {
		return nil, nil
	}
	removed, err := s.store.DeleteTokens(ctx, stale)
	if err != nil {
		return nil, err
	}
	if !removed {
		return nil, nil
	}
	return stale, nil
}

// Handle resolves a request into a target and dispatches it. The error is
// non-nil only when the request names no target or the token lookup fails.
func (s *Service) Handle(ctx context.Context, req dispatch.NotifyRequest) (dispatch.Result, error) {
	target, err := s.Resolve(ctx, req)
	if err != nil {
		return dispatch.Result{}, err
	}
	return s.Notify(ctx, req.Notification, target), nil
}

// Resolve maps a request's selector onto a Target, loading records from the
// token store for user and broadcast requests.
func (s *Service) Resolve(ctx context.Context, req dispatch.NotifyRequest) (Target, error) {
	if err := req.ValidateTarget(); err != nil {
		return Target{}, err
	}

	switch {
	case req.Token != "":
		return ToToken(req.Token), nil
	case req.Tokens != nil:
		return ToTokens(req.Tokens), nil
	case req.UserID != nil:
		records, err := s.store.TokensForUser(ctx, *req.UserID)
		if err != nil {
			return Target{}, fmt.Errorf("failed to load tokens for user %d: %w", *req.UserID, err)
		}
		return ToRecords(records), nil
	default:
		records, err := s.store.AllTokens(ctx)
		if err != nil {
			return Target{}, fmt.Errorf("failed to load tokens: %w", err)
		}
		return ToRecords(records), nil
	}
}
