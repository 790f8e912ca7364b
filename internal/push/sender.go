// Package push wraps the Web Push send path: payload serialization, VAPID
// signing options and the transient-vs-permanent failure split callers key
// their subscription lifecycle off.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"

	"drysense-push-go/internal/models"
	"drysense-push-go/internal/vapid"
)

// Notifications ride with high urgency and a day of queueing at the push
// service. No topic: queued messages are never coalesced.
const (
	defaultTTL     = 86400 // seconds
	requestTimeout = 30 * time.Second
)

// ErrSubscriptionGone signals the push service no longer knows the endpoint.
// Callers must deactivate the subscription; a retry can never succeed.
var ErrSubscriptionGone = errors.New("push: subscription expired")

// Sender performs authenticated-encryption Web Push sends for one
// application server. It never retries; retry policy belongs to the caller.
type Sender struct {
	app    *vapid.ApplicationServer
	client *http.Client
}

func NewSender(app *vapid.ApplicationServer) *Sender {
	return &Sender{
		app:    app,
		client: &http.Client{Timeout: requestTimeout},
	}
}

// Send encrypts payload for one subscriber and posts it to their endpoint.
// Returns ErrSubscriptionGone when the endpoint is permanently invalid; any
// other non-nil error is transient.
func (s *Sender) Send(ctx context.Context, sub models.PushSubscription, payload models.NotificationPayload) error {
	// A degraded service (bad VAPID material) still serves its public key
	// but cannot sign sends.
	if s.app == nil {
		return errors.New("push: no application server configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("push: marshal payload: %w", err)
	}

	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}

	resp, err := webpush.SendNotificationWithContext(ctx, body, target, &webpush.Options{
		HTTPClient:      s.client,
		Subscriber:      s.app.Subject,
		VAPIDPublicKey:  s.app.VAPIDPublicKey(),
		VAPIDPrivateKey: s.app.VAPIDPrivateKey(),
		TTL:             defaultTTL,
		Urgency:         webpush.UrgencyHigh,
	})
	if err != nil {
		return fmt.Errorf("push: send to %s: %w", sub.Endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("push: service returned %d for %s", resp.StatusCode, sub.Endpoint)
	}
	return nil
}
