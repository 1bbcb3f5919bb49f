// --- File: pkg/dispatch/interfaces.go ---
package dispatch

import (
	"context"

	"firebase.google.com/go/v4/messaging"
)

// Sender defines the contract for the component that hands built messages to
// Firebase Cloud Messaging.
type Sender interface {
	// Send delivers a message addressed to a single token.
	// Failures are returned as *DeliveryError.
	Send(ctx context.Context, msg *messaging.Message) (string, error)

	// SendMulticast delivers one message to many tokens and reports which of
	// them FCM rejected as invalid or unknown. A transport failure after some
	// tokens were already sent returns the partial report with the error.
	SendMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*MulticastReport, error)
}

// TokenStore defines the contract for the device token table.
// Tokens are inserted by an external registration flow; this service only
// reads them and prunes the ones FCM rejects.
type TokenStore interface {
	// DeleteByToken removes the record for a token. It reports whether
	// anything was removed.
	DeleteByToken(ctx context.Context, token string) (bool, error)

	// DeleteTokens removes every record whose token is in the list.
	// An empty list is a successful no-op and never touches storage.
	DeleteTokens(ctx context.Context, tokens []string) (bool, error)

	// TokensForUser returns the records belonging to a user, oldest first.
	TokensForUser(ctx context.Context, userID int64) ([]TokenRecord, error)

	// AllTokens returns every record in the table.
	AllTokens(ctx context.Context) ([]TokenRecord, error)
}

// Notifier resolves a NotifyRequest into a target and dispatches it.
// The error return is reserved for failures looking up tokens; delivery
// outcomes are reported in the Result.
type Notifier interface {
	Handle(ctx context.Context, req NotifyRequest) (Result, error)
}
