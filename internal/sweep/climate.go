package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"drysense-push-go/internal/config"
	"drysense-push-go/internal/metrics"
	"drysense-push-go/internal/models"
	"drysense-push-go/internal/push"
	"drysense-push-go/internal/risk"
	"drysense-push-go/internal/weather"
)

func climatePayload(level risk.Level, obs weather.Observation, uv float64) models.NotificationPayload {
	readings := fmt.Sprintf("%.0f°C, %.0f%% humidity, UV %.0f", obs.TemperatureC, obs.Humidity, uv)
	if level == risk.Extreme {
		return models.NotificationPayload{
			Title: "Extreme sweat risk right now",
			Body:  readings + ". Stay in the shade, hydrate often, and keep antiperspirant handy.",
			Tag:   "climate-alert",
			URL:   "/climate",
		}
	}
	return models.NotificationPayload{
		Title: "Elevated sweat risk today",
		Body:  readings + ". Conditions may trigger episodes. Plan lighter clothing and breaks.",
		Tag:   "climate-alert",
		URL:   "/climate",
	}
}

// Climate runs the weather-driven alert sweep over every active subscription
// that shared coordinates.
func (s *Sweeper) Climate(ctx context.Context) (Result, error) {
	start := s.Now()
	day := models.DayKey(start)
	defer func() {
		metrics.SweepRunsTotal.WithLabelValues("climate").Inc()
		metrics.SweepDurationSeconds.WithLabelValues("climate").Observe(time.Since(start).Seconds())
	}()

	subs, err := s.store.SubscriptionsWithLocation(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{Total: len(subs)}
	for _, sub := range subs {
		o := s.processClimate(ctx, sub, day)
		res.add(o)
	}

	s.logger.Info("climate sweep finished",
		"sent", res.Sent, "skipped", res.Skipped, "failed", res.Failed, "total", res.Total)
	return res, nil
}

func (s *Sweeper) processClimate(ctx context.Context, sub models.PushSubscription, day string) (o outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("climate panic", "subscription_id", sub.ID, "panic", r)
			o = outcomeFailed
		}
	}()

	if !sub.HasLocation() {
		return outcomeSkipped
	}

	// Spread fetches so a large sweep doesn't burst the weather provider.
	s.jitter()

	obs, err := s.weather.Current(ctx, *sub.Latitude, *sub.Longitude)
	if err != nil {
		metrics.WeatherFetchesTotal.WithLabelValues("current", "error").Inc()
		s.logger.Warn("weather fetch failed", "subscription_id", sub.ID, "error", err)
		return outcomeFailed
	}
	metrics.WeatherFetchesTotal.WithLabelValues("current", "ok").Inc()

	// At night stale UV readings would manufacture extreme alerts; force 0
	// and skip the UV call entirely.
	now := s.Now()
	uv := 0.0
	if !obs.IsNight(now) {
		v, err := s.weather.UVIndex(ctx, *sub.Latitude, *sub.Longitude)
		if err != nil {
			// Degraded but non-fatal.
			metrics.WeatherFetchesTotal.WithLabelValues("uv", "error").Inc()
			s.logger.Warn("uv fetch failed, using 0", "subscription_id", sub.ID, "error", err)
		} else {
			metrics.WeatherFetchesTotal.WithLabelValues("uv", "ok").Inc()
			uv = v
		}
	}

	level := risk.Classify(obs.TemperatureC, obs.Humidity, uv)
	if level == risk.Normal {
		return outcomeSkipped
	}

	// A generic moderate classification alone is not enough; it must also
	// cross one of the user's personal thresholds.
	if level == risk.Moderate && !crossesThreshold(sub, obs, uv) {
		return outcomeSkipped
	}

	typ := models.TypeClimateModerate
	if level == risk.Extreme {
		typ = models.TypeClimateExtreme
	}

	typeCount, err := s.store.CountOnDay(ctx, sub.ID, typ, day)
	if err != nil {
		return outcomeFailed
	}
	if typeCount >= config.ClimateTypeDailyCap {
		return outcomeSkipped
	}
	combined, err := s.store.CountClimateOnDay(ctx, sub.ID, day)
	if err != nil {
		return outcomeFailed
	}
	if combined >= config.ClimateCombinedDayCap {
		return outcomeSkipped
	}

	claimID, err := s.store.ClaimNotification(ctx, sub.ID, sub.UserID, typ, day)
	if err != nil {
		s.logger.Warn("climate claim failed", "subscription_id", sub.ID, "error", err)
		return outcomeFailed
	}

	err = s.sender.Send(ctx, sub, climatePayload(level, obs, uv))
	switch {
	case errors.Is(err, push.ErrSubscriptionGone):
		_ = s.store.ReleaseNotification(ctx, claimID)
		if err := s.store.DeactivateSubscription(ctx, sub.ID); err != nil {
			s.logger.Error("deactivate failed", "subscription_id", sub.ID, "error", err)
		}
		metrics.SubscriptionsDeactivatedTotal.Inc()
		metrics.NotificationsTotal.WithLabelValues(string(typ), "expired").Inc()
		return outcomeFailed
	case err != nil:
		_ = s.store.ReleaseNotification(ctx, claimID)
		s.logger.Warn("climate send failed", "subscription_id", sub.ID, "error", err)
		metrics.NotificationsTotal.WithLabelValues(string(typ), "failed").Inc()
		return outcomeFailed
	}

	metrics.NotificationsTotal.WithLabelValues(string(typ), "sent").Inc()
	return outcomeSent
}

func crossesThreshold(sub models.PushSubscription, obs weather.Observation, uv float64) bool {
	return obs.TemperatureC > sub.TemperatureThreshold ||
		obs.Humidity > sub.HumidityThreshold ||
		uv > sub.UVThreshold
}
