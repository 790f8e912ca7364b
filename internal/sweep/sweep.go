// Package sweep implements the two scheduled batch jobs: logging reminders
// and climate risk alerts. Each sweep walks its subscription list
// sequentially and decides per subscription, in isolation, whether a
// notification is due. A failure on one subscriber never aborts the rest.
package sweep

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"drysense-push-go/internal/models"
	"drysense-push-go/internal/store"
	"drysense-push-go/internal/weather"
)

// Sender is the push send path. The concrete implementation is push.Sender.
type Sender interface {
	Send(ctx context.Context, sub models.PushSubscription, payload models.NotificationPayload) error
}

// WeatherProvider supplies current conditions for the climate sweep.
type WeatherProvider interface {
	Current(ctx context.Context, lat, lon float64) (weather.Observation, error)
	UVIndex(ctx context.Context, lat, lon float64) (float64, error)
}

// Result aggregates one sweep run. Returned to the caller for observability,
// never persisted.
type Result struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Total   int `json:"total"`
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSent
	outcomeFailed
)

func (r *Result) add(o outcome) {
	switch o {
	case outcomeSent:
		r.Sent++
	case outcomeSkipped:
		r.Skipped++
	case outcomeFailed:
		r.Failed++
	}
}

// Sweeper runs the scheduled jobs. Now and Sleep are injectable so tests can
// pin the calendar day and skip the climate jitter.
type Sweeper struct {
	store   store.Store
	sender  Sender
	weather WeatherProvider
	logger  *slog.Logger

	Now       func() time.Time
	Sleep     func(time.Duration)
	JitterMax time.Duration
}

func New(st store.Store, sender Sender, w WeatherProvider, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:     st,
		sender:    sender,
		weather:   w,
		logger:    logger,
		Now:       time.Now,
		Sleep:     time.Sleep,
		JitterMax: 30 * time.Second,
	}
}

// jitter spreads weather fetches of consecutive subscribers in time so a big
// sweep does not hammer the provider in one burst.
func (s *Sweeper) jitter() {
	if s.JitterMax <= 0 {
		return
	}
	s.Sleep(time.Duration(rand.Int63n(int64(s.JitterMax))))
}
