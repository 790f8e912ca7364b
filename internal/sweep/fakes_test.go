package sweep

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"drysense-push-go/internal/models"
	"drysense-push-go/internal/weather"
)

type fakeStore struct {
	subs     []models.PushSubscription
	logs     []models.NotificationLog
	episodes map[string]time.Time

	deactivated []string
	stamped     map[string]time.Time

	countErr error
	claimErr error
	nextID   int
}

func newFakeStore(subs ...models.PushSubscription) *fakeStore {
	return &fakeStore{
		subs:     subs,
		episodes: map[string]time.Time{},
		stamped:  map[string]time.Time{},
	}
}

func (f *fakeStore) seedLogs(subID string, t models.NotificationType, day string, n int) {
	for i := 0; i < n; i++ {
		f.nextID++
		f.logs = append(f.logs, models.NotificationLog{
			ID:               fmt.Sprintf("seed-%d", f.nextID),
			SubscriptionID:   subID,
			NotificationType: t,
			CreatedDate:      day,
		})
	}
}

func (f *fakeStore) SaveSubscription(_ context.Context, sub models.PushSubscription) (models.PushSubscription, error) {
	f.subs = append(f.subs, sub)
	return sub, nil
}

func (f *fakeStore) SubscriptionByEndpoint(_ context.Context, endpoint string) (models.PushSubscription, error) {
	for _, s := range f.subs {
		if s.Endpoint == endpoint {
			return s, nil
		}
	}
	return models.PushSubscription{}, fmt.Errorf("not found")
}

func (f *fakeStore) SubscriptionsByUser(_ context.Context, userID string) ([]models.PushSubscription, error) {
	var out []models.PushSubscription
	for _, s := range f.subs {
		if s.UserID == userID && s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ActiveSubscriptions(context.Context) ([]models.PushSubscription, error) {
	var out []models.PushSubscription
	for _, s := range f.subs {
		if s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) SubscriptionsWithLocation(ctx context.Context) ([]models.PushSubscription, error) {
	var out []models.PushSubscription
	for _, s := range f.subs {
		if s.IsActive && s.HasLocation() {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) DeactivateSubscription(_ context.Context, id string) error {
	f.deactivated = append(f.deactivated, id)
	for i := range f.subs {
		if f.subs[i].ID == id {
			f.subs[i].IsActive = false
		}
	}
	return nil
}

func (f *fakeStore) StampReminderSent(_ context.Context, id string, at time.Time) error {
	f.stamped[id] = at
	return nil
}

func (f *fakeStore) CountOnDay(_ context.Context, subID string, t models.NotificationType, day string) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	n := 0
	for _, l := range f.logs {
		if l.SubscriptionID == subID && l.NotificationType == t && l.CreatedDate == day {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) CountClimateOnDay(ctx context.Context, subID string, day string) (int, error) {
	a, err := f.CountOnDay(ctx, subID, models.TypeClimateExtreme, day)
	if err != nil {
		return 0, err
	}
	b, err := f.CountOnDay(ctx, subID, models.TypeClimateModerate, day)
	return a + b, err
}

func (f *fakeStore) ClaimNotification(_ context.Context, subID, userID string, t models.NotificationType, day string) (string, error) {
	if f.claimErr != nil {
		return "", f.claimErr
	}
	f.nextID++
	id := fmt.Sprintf("log-%d", f.nextID)
	f.logs = append(f.logs, models.NotificationLog{
		ID:               id,
		SubscriptionID:   subID,
		UserID:           userID,
		NotificationType: t,
		CreatedDate:      day,
	})
	return id, nil
}

func (f *fakeStore) ReleaseNotification(_ context.Context, id string) error {
	for i, l := range f.logs {
		if l.ID == id {
			f.logs = append(f.logs[:i], f.logs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeStore) LatestEpisodeAt(_ context.Context, userID string) (time.Time, bool, error) {
	at, ok := f.episodes[userID]
	return at, ok, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }

// fakeSender scripts per-endpoint send behavior.
type fakeSender struct {
	sent    []models.PushSubscription
	payload []models.NotificationPayload
	errs    map[string]error // endpoint -> error
	panics  map[string]bool  // endpoint -> panic mid-send
}

func newFakeSender() *fakeSender {
	return &fakeSender{errs: map[string]error{}, panics: map[string]bool{}}
}

func (f *fakeSender) Send(_ context.Context, sub models.PushSubscription, p models.NotificationPayload) error {
	if f.panics[sub.Endpoint] {
		panic("sender exploded")
	}
	if err, ok := f.errs[sub.Endpoint]; ok {
		return err
	}
	f.sent = append(f.sent, sub)
	f.payload = append(f.payload, p)
	return nil
}

// fakeWeather returns one scripted observation for every coordinate.
type fakeWeather struct {
	obs     weather.Observation
	obsErr  error
	uv      float64
	uvErr   error
	uvCalls int
}

func (f *fakeWeather) Current(context.Context, float64, float64) (weather.Observation, error) {
	return f.obs, f.obsErr
}

func (f *fakeWeather) UVIndex(context.Context, float64, float64) (float64, error) {
	f.uvCalls++
	return f.uv, f.uvErr
}

func testSweeper(st *fakeStore, sender Sender, w WeatherProvider, now time.Time) *Sweeper {
	s := New(st, sender, w, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Now = func() time.Time { return now }
	s.Sleep = func(time.Duration) {}
	return s
}

func ptr[T any](v T) *T { return &v }
