package store

import (
	"context"
	"errors"
	"time"

	"drysense-push-go/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// SubscriptionStore handles push subscription state.
type SubscriptionStore interface {
	SaveSubscription(ctx context.Context, sub models.PushSubscription) (models.PushSubscription, error)
	SubscriptionByEndpoint(ctx context.Context, endpoint string) (models.PushSubscription, error)
	SubscriptionsByUser(ctx context.Context, userID string) ([]models.PushSubscription, error)
	ActiveSubscriptions(ctx context.Context) ([]models.PushSubscription, error)
	SubscriptionsWithLocation(ctx context.Context) ([]models.PushSubscription, error)
	DeactivateSubscription(ctx context.Context, id string) error
	StampReminderSent(ctx context.Context, id string, at time.Time) error
}

// LedgerStore is the append-only daily notification ledger. A row is claimed
// before the send it covers; ReleaseNotification rolls back a claim whose
// send never happened. Beyond that rows are never updated or deleted.
type LedgerStore interface {
	CountOnDay(ctx context.Context, subscriptionID string, t models.NotificationType, day string) (int, error)
	CountClimateOnDay(ctx context.Context, subscriptionID string, day string) (int, error)
	ClaimNotification(ctx context.Context, subscriptionID, userID string, t models.NotificationType, day string) (string, error)
	ReleaseNotification(ctx context.Context, id string) error
}

// EpisodeStore exposes the one episode read the dispatch core needs.
type EpisodeStore interface {
	LatestEpisodeAt(ctx context.Context, userID string) (time.Time, bool, error)
}

// Store is the full persistence surface of the dispatch service.
type Store interface {
	SubscriptionStore
	LedgerStore
	EpisodeStore
	Ping(ctx context.Context) error
}
