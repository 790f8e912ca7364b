package sweep

import (
	"context"
	"errors"
	"time"

	"drysense-push-go/internal/config"
	"drysense-push-go/internal/metrics"
	"drysense-push-go/internal/models"
	"drysense-push-go/internal/push"
)

func reminderPayload() models.NotificationPayload {
	return models.NotificationPayload{
		Title: "Time to check in",
		Body:  "How are your palms today? Log an episode to keep your trends accurate.",
		Tag:   "logging-reminder",
		URL:   "/log",
	}
}

// Reminders runs the logging-reminder sweep over every active subscription.
// The calendar day is fixed once at entry so a run that straddles midnight
// rate-limits against a single consistent day.
func (s *Sweeper) Reminders(ctx context.Context) (Result, error) {
	start := s.Now()
	day := models.DayKey(start)
	defer func() {
		metrics.SweepRunsTotal.WithLabelValues("reminders").Inc()
		metrics.SweepDurationSeconds.WithLabelValues("reminders").Observe(time.Since(start).Seconds())
	}()

	subs, err := s.store.ActiveSubscriptions(ctx)
	if err != nil {
		return Result{}, err
	}

	res := Result{Total: len(subs)}
	for _, sub := range subs {
		o := s.processReminder(ctx, sub, day)
		res.add(o)
	}

	s.logger.Info("reminder sweep finished",
		"sent", res.Sent, "skipped", res.Skipped, "failed", res.Failed, "total", res.Total)
	return res, nil
}

func (s *Sweeper) processReminder(ctx context.Context, sub models.PushSubscription, day string) (o outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("reminder panic", "subscription_id", sub.ID, "panic", r)
			o = outcomeFailed
		}
	}()

	count, err := s.store.CountOnDay(ctx, sub.ID, models.TypeLoggingReminder, day)
	if err != nil {
		s.logger.Warn("reminder count lookup failed", "subscription_id", sub.ID, "error", err)
		return outcomeFailed
	}
	if count >= config.ReminderDailyCap {
		return outcomeSkipped
	}

	now := s.Now()
	if sub.LastReminderSentAt != nil && now.Sub(*sub.LastReminderSentAt) < config.ReminderCooldown {
		return outcomeSkipped
	}

	// The user already self-reported recently; don't nag.
	if sub.UserID != "" {
		at, ok, err := s.store.LatestEpisodeAt(ctx, sub.UserID)
		if err != nil {
			s.logger.Warn("episode lookup failed", "user_id", sub.UserID, "error", err)
			return outcomeFailed
		}
		if ok && now.Sub(at) < config.ReminderCooldown {
			return outcomeSkipped
		}
	}

	claimID, err := s.store.ClaimNotification(ctx, sub.ID, sub.UserID, models.TypeLoggingReminder, day)
	if err != nil {
		s.logger.Warn("reminder claim failed", "subscription_id", sub.ID, "error", err)
		return outcomeFailed
	}

	err = s.sender.Send(ctx, sub, reminderPayload())
	switch {
	case errors.Is(err, push.ErrSubscriptionGone):
		_ = s.store.ReleaseNotification(ctx, claimID)
		if err := s.store.DeactivateSubscription(ctx, sub.ID); err != nil {
			s.logger.Error("deactivate failed", "subscription_id", sub.ID, "error", err)
		}
		metrics.SubscriptionsDeactivatedTotal.Inc()
		metrics.NotificationsTotal.WithLabelValues(string(models.TypeLoggingReminder), "expired").Inc()
		return outcomeFailed
	case err != nil:
		// Transient: leave the subscription untouched, the next run retries.
		_ = s.store.ReleaseNotification(ctx, claimID)
		s.logger.Warn("reminder send failed", "subscription_id", sub.ID, "error", err)
		metrics.NotificationsTotal.WithLabelValues(string(models.TypeLoggingReminder), "failed").Inc()
		return outcomeFailed
	}

	if err := s.store.StampReminderSent(ctx, sub.ID, now); err != nil {
		s.logger.Warn("reminder stamp failed", "subscription_id", sub.ID, "error", err)
	}
	metrics.NotificationsTotal.WithLabelValues(string(models.TypeLoggingReminder), "sent").Inc()
	return outcomeSent
}
