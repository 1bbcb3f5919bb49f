// Package dispatch contains the public contracts and domain types for sending
// FCM push notifications and pruning the tokens FCM rejects.
package dispatch

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

var (
	// ErrInvalidInput is wrapped by every notification validation failure.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoTarget is returned when a NotifyRequest names no recipient, or
	// more than one kind of recipient.
	ErrNoTarget = errors.New("notify request must set exactly one of token, tokens, user_id or broadcast")
)

// TokenRecord is a row of the device token table.
type TokenRecord struct {
	UserID    int64     `json:"user_id"`
	FCMToken  string    `json:"fcm_token"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Notification is the generic payload a caller asks us to deliver.
// Title and Body are required.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Image string            `json:"image,omitempty"`
	Link  string            `json:"link,omitempty"`
	Data  map[string]string `json:"data,omitempty"`
}

// Validate reports an ErrInvalidInput for a missing title or body, an image
// that is not a URL, or a link FCM would refuse. FCM checks the same fields
// locally before sending; catching them here keeps a bad payload from being
// reported as a delivery failure against the token.
func (n Notification) Validate() error {
	if n.Title == "" {
		return fmt.Errorf("%w: notification title is required", ErrInvalidInput)
	}
	if n.Body == "" {
		return fmt.Errorf("%w: notification body is required", ErrInvalidInput)
	}
	if n.Image != "" {
		if _, err := url.ParseRequestURI(n.Image); err != nil {
			return fmt.Errorf("%w: invalid image URL %q", ErrInvalidInput, n.Image)
		}
	}
	if n.Link != "" {
		if err := ValidateLink(n.Link); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	return nil
}

// ValidateLink checks a web click-through link: FCM only accepts absolute
// https URLs.
func ValidateLink(link string) error {
	u, err := url.ParseRequestURI(link)
	if err != nil {
		return fmt.Errorf("invalid link URL %q", link)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("link URL %q must use https", link)
	}
	return nil
}

// NotifyRequest is the transport shape accepted by the HTTP API and the
// ingestion pipeline.
type NotifyRequest struct {
	Notification Notification `json:"notification"`
	Token        string       `json:"token,omitempty"`
	Tokens       []string     `json:"tokens,omitempty"`
	UserID       *int64       `json:"user_id,omitempty"`
	Broadcast    bool         `json:"broadcast,omitempty"`
}

// ValidateTarget checks that exactly one recipient selector is set.
// An explicitly empty Tokens list counts as a selector; the multicast path
// reports it as FailureNoTokens.
func (r NotifyRequest) ValidateTarget() error {
	set := 0
	if r.Token != "" {
		set++
	}
	if r.Tokens != nil {
		set++
	}
	if r.UserID != nil {
		set++
	}
	if r.Broadcast {
		set++
	}
	if set != 1 {
		return ErrNoTarget
	}
	return nil
}

// MulticastReport summarises a multicast send.
type MulticastReport struct {
	SuccessCount  int      `json:"success_count"`
	FailureCount  int      `json:"failure_count"`
	InvalidTokens []string `json:"invalid_tokens,omitempty"`
	UnknownTokens []string `json:"unknown_tokens,omitempty"`
}

// Stale returns the invalid and unknown tokens together, in that order.
func (r *MulticastReport) Stale() []string {
	if r == nil {
		return nil
	}
	stale := make([]string, 0, len(r.InvalidTokens)+len(r.UnknownTokens))
	stale = append(stale, r.InvalidTokens...)
	return append(stale, r.UnknownTokens...)
}

// FailureKind classifies why a dispatch did not deliver.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureInvalidInput
	FailureNoTokens
	FailureInvalidToken
	FailureUnregistered
	FailureQuotaExceeded
	FailureUnavailable
	FailureAuth
	FailureUnknown
)

var failureKindNames = map[FailureKind]string{
	FailureNone:          "none",
	FailureInvalidInput:  "invalid_input",
	FailureNoTokens:      "no_tokens",
	FailureInvalidToken:  "invalid_token",
	FailureUnregistered:  "unregistered",
	FailureQuotaExceeded: "quota_exceeded",
	FailureUnavailable:   "unavailable",
	FailureAuth:          "auth",
	FailureUnknown:       "unknown",
}

func (k FailureKind) String() string {
	if name, ok := failureKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("failure_kind(%d)", int(k))
}

// MarshalText lets the kind appear by name in JSON and logs.
func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// DeliveryError is returned by a Sender when FCM refuses or cannot accept a
// message.
type DeliveryError struct {
	Kind FailureKind
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("fcm delivery failed (%s): %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// KindOf extracts the FailureKind from an error chain.
func KindOf(err error) FailureKind {
	if err == nil {
		return FailureNone
	}
	if errors.Is(err, ErrInvalidInput) {
		return FailureInvalidInput
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		return de.Kind
	}
	return FailureUnknown
}

// Result is the outcome of a dispatch. Delivery problems never cross the
// public boundary as errors; they are described here instead.
//
// Pruned lists the tokens submitted for deletion when the store removed at
// least one of them. For a multicast it is an upper bound, since some of the
// tokens may already have been gone.
type Result struct {
	Delivered bool             `json:"delivered"`
	Kind      FailureKind      `json:"failure,omitempty"`
	Err       error            `json:"-"`
	Report    *MulticastReport `json:"report,omitempty"`
	Pruned    []string         `json:"pruned,omitempty"`
}

// Failed builds an undelivered Result from a cause.
func Failed(err error) Result {
	return Result{Kind: KindOf(err), Err: err}
}

// Cause returns the error message, or "" for a delivered result.
func (r Result) Cause() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
