// Package message turns a generic notification payload into the FCM message
// blocks for the web, Android and iOS platforms.
package message

import (
	"fmt"
	"maps"

	"firebase.google.com/go/v4/messaging"
	"github.com/tinywideclouds/go-fcm-messaging/pkg/dispatch"
)

// Builder is safe for concurrent use; it holds only read-only defaults.
type Builder struct {
	defaults resolved
	appURL   string
}

// Attributes are the optional parts of a notification.
type Attributes struct {
	Link  string
	Image string
	Data  map[string]string
}

// Envelope holds every block of a built message except its addressing.
type Envelope struct {
	Notification *messaging.Notification
	Data         map[string]string
	Webpush      *messaging.WebpushConfig
	Android      *messaging.AndroidConfig
	APNS         *messaging.APNSConfig
}

// NewBuilder resolves the configured defaults over the baseline. It fails
// fast on defaults FCM would reject, including an app URL that is not https.
// An empty appURL leaves the web link unset.
func NewBuilder(defaults Defaults, appURL string) (*Builder, error) {
	r, err := defaults.resolve()
	if err != nil {
		return nil, fmt.Errorf("invalid notification defaults: %w", err)
	}
	if appURL != "" {
		if err := dispatch.ValidateLink(appURL); err != nil {
			return nil, fmt.Errorf("invalid app url: %w", err)
		}
	}
	return &Builder{defaults: r, appURL: appURL}, nil
}

// Compose assembles a Notification from its required fields and whitelisted
// optional attributes. Link falls back to the application URL.
func (b *Builder) Compose(title, body string, attrs Attributes) dispatch.Notification {
	n := dispatch.Notification{
		Title: title,
		Body:  body,
		Link:  attrs.Link,
		Image: attrs.Image,
	}
	if n.Link == "" {
		n.Link = b.appURL
	}
	if len(attrs.Data) > 0 {
		n.Data = maps.Clone(attrs.Data)
	}
	return n
}

// Build validates the payload and produces the platform blocks.
// Only title and body reach the Android and APNs blocks; everything else
// there comes from the defaults.
func (b *Builder) Build(n dispatch.Notification) (*Envelope, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}

	env := &Envelope{
		Notification: &messaging.Notification{
			Title:    n.Title,
			Body:     n.Body,
			ImageURL: n.Image,
		},
		Webpush: b.webpush(n),
		Android: b.android(n),
		APNS:    b.apns(n),
	}
	if len(n.Data) > 0 {
		env.Data = maps.Clone(n.Data)
	}
	return env, nil
}

func (b *Builder) webpush(n dispatch.Notification) *messaging.WebpushConfig {
	link := n.Link
	if link == "" {
		link = b.appURL
	}
	cfg := &messaging.WebpushConfig{
		Notification: &messaging.WebpushNotification{
			Title: n.Title,
			Body:  n.Body,
		},
	}
	if link != "" {
		cfg.FCMOptions = &messaging.WebpushFCMOptions{Link: link}
	}
	return cfg
}

func (b *Builder) android(n dispatch.Notification) *messaging.AndroidConfig {
	ttl := b.defaults.androidTTL
	return &messaging.AndroidConfig{
		TTL:      &ttl,
		Priority: b.defaults.androidPriority,
		Notification: &messaging.AndroidNotification{
			Title: n.Title,
			Body:  n.Body,
			Color: b.defaults.androidColor,
			Sound: b.defaults.androidSound,
		},
	}
}

func (b *Builder) apns(n dispatch.Notification) *messaging.APNSConfig {
	badge := b.defaults.apnsBadge
	return &messaging.APNSConfig{
		Headers: map[string]string{
			"apns-priority": b.defaults.apnsPriority,
		},
		Payload: &messaging.APNSPayload{
			Aps: &messaging.Aps{
				Alert: &messaging.ApsAlert{
					Title: n.Title,
					Body:  n.Body,
				},
				Badge:          &badge,
				Sound:          b.defaults.apnsSound,
				MutableContent: true,
			},
		},
	}
}

// ToToken addresses the envelope to a single device.
func (e *Envelope) ToToken(token string) *messaging.Message {
	return &messaging.Message{
		Token:        token,
		Notification: e.Notification,
		Data:         e.Data,
		Webpush:      e.Webpush,
		Android:      e.Android,
		APNS:         e.APNS,
	}
}

// ToMulticast addresses the envelope to many devices.
func (e *Envelope) ToMulticast(tokens []string) *messaging.MulticastMessage {
	return &messaging.MulticastMessage{
		Tokens:       tokens,
		Notification: e.Notification,
		Data:         e.Data,
		Webpush:      e.Webpush,
		Android:      e.Android,
		APNS:         e.APNS,
	}
}
