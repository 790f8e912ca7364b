package sweep

import (
	"context"
	"testing"
	"time"

	"drysense-push-go/internal/models"
	"drysense-push-go/internal/push"
)

var sweepNow = time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)

func activeSub(id string) models.PushSubscription {
	return models.PushSubscription{
		ID:       id,
		Endpoint: "https://push.example/" + id,
		P256dh:   "p256dh-" + id,
		Auth:     "auth-" + id,
		IsActive: true,
	}
}

func TestRemindersDailyCap(t *testing.T) {
	sub := activeSub("s1")
	sub.UserID = "u1"
	st := newFakeStore(sub)
	st.seedLogs("s1", models.TypeLoggingReminder, models.DayKey(sweepNow), 6)

	sender := newFakeSender()
	s := testSweeper(st, sender, nil, sweepNow)

	res, err := s.Reminders(context.Background())
	if err != nil {
		t.Fatalf("Reminders: %v", err)
	}
	if res.Skipped != 1 || res.Sent != 0 {
		t.Fatalf("result = %+v, want 1 skipped", res)
	}
	if len(sender.sent) != 0 {
		t.Fatal("capped subscription must not be sent to")
	}
}

func TestRemindersCapIgnoresOtherDays(t *testing.T) {
	st := newFakeStore(activeSub("s1"))
	st.seedLogs("s1", models.TypeLoggingReminder, "2026-08-30", 6)

	sender := newFakeSender()
	s := testSweeper(st, sender, nil, sweepNow)

	res, _ := s.Reminders(context.Background())
	if res.Sent != 1 {
		t.Fatalf("result = %+v, want 1 sent (yesterday's entries must not count)", res)
	}
}

func TestRemindersCooldown(t *testing.T) {
	tests := []struct {
		name     string
		lastSent time.Duration // how long ago
		wantSent int
	}{
		{name: "three hours ago is inside cooldown", lastSent: 3 * time.Hour, wantSent: 0},
		{name: "five hours ago is eligible", lastSent: 5 * time.Hour, wantSent: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sub := activeSub("s1")
			sub.LastReminderSentAt = ptr(sweepNow.Add(-tc.lastSent))
			st := newFakeStore(sub)

			sender := newFakeSender()
			s := testSweeper(st, sender, nil, sweepNow)

			res, _ := s.Reminders(context.Background())
			if res.Sent != tc.wantSent {
				t.Fatalf("result = %+v, want sent=%d", res, tc.wantSent)
			}
		})
	}
}

func TestRemindersRecentEpisodeSkips(t *testing.T) {
	sub := activeSub("s1")
	sub.UserID = "u1"
	st := newFakeStore(sub)
	st.episodes["u1"] = sweepNow.Add(-1 * time.Hour)

	sender := newFakeSender()
	s := testSweeper(st, sender, nil, sweepNow)

	res, _ := s.Reminders(context.Background())
	if res.Skipped != 1 {
		t.Fatalf("result = %+v, want skip for recent episode", res)
	}

	// An episode outside the window is no obstacle.
	st.episodes["u1"] = sweepNow.Add(-5 * time.Hour)
	res, _ = s.Reminders(context.Background())
	if res.Sent != 1 {
		t.Fatalf("result = %+v, want 1 sent", res)
	}
}

func TestRemindersSuccessLogsAndStamps(t *testing.T) {
	sub := activeSub("s1")
	sub.UserID = "u1"
	st := newFakeStore(sub)

	sender := newFakeSender()
	s := testSweeper(st, sender, nil, sweepNow)

	res, err := s.Reminders(context.Background())
	if err != nil {
		t.Fatalf("Reminders: %v", err)
	}
	if res.Sent != 1 {
		t.Fatalf("result = %+v, want 1 sent", res)
	}

	day := models.DayKey(sweepNow)
	if n, _ := st.CountOnDay(context.Background(), "s1", models.TypeLoggingReminder, day); n != 1 {
		t.Fatalf("ledger count = %d, want 1", n)
	}
	if got, ok := st.stamped["s1"]; !ok || !got.Equal(sweepNow) {
		t.Fatalf("last_reminder_sent_at = %v, want %v", got, sweepNow)
	}
}

func TestRemindersExpiredSubscriptionDeactivated(t *testing.T) {
	sub := activeSub("s1")
	st := newFakeStore(sub)

	sender := newFakeSender()
	sender.errs[sub.Endpoint] = push.ErrSubscriptionGone
	s := testSweeper(st, sender, nil, sweepNow)

	res, _ := s.Reminders(context.Background())
	if res.Failed != 1 {
		t.Fatalf("result = %+v, want 1 failed", res)
	}
	if len(st.deactivated) != 1 || st.deactivated[0] != "s1" {
		t.Fatalf("deactivated = %v, want [s1]", st.deactivated)
	}
	// No ledger entry may survive a failed send.
	if n, _ := st.CountOnDay(context.Background(), "s1", models.TypeLoggingReminder, models.DayKey(sweepNow)); n != 0 {
		t.Fatalf("ledger entry written for failed send")
	}
}

func TestRemindersTransientFailureLeavesState(t *testing.T) {
	sub := activeSub("s1")
	st := newFakeStore(sub)

	sender := newFakeSender()
	sender.errs[sub.Endpoint] = context.DeadlineExceeded
	s := testSweeper(st, sender, nil, sweepNow)

	res, _ := s.Reminders(context.Background())
	if res.Failed != 1 {
		t.Fatalf("result = %+v, want 1 failed", res)
	}
	if len(st.deactivated) != 0 {
		t.Fatal("transient failure must not deactivate")
	}
	if len(st.stamped) != 0 {
		t.Fatal("transient failure must not stamp last_reminder_sent_at")
	}
	if n, _ := st.CountOnDay(context.Background(), "s1", models.TypeLoggingReminder, models.DayKey(sweepNow)); n != 0 {
		t.Fatal("ledger entry written for failed send")
	}
}

func TestRemindersIsolateFailures(t *testing.T) {
	s1, s2, s3 := activeSub("s1"), activeSub("s2"), activeSub("s3")
	st := newFakeStore(s1, s2, s3)

	sender := newFakeSender()
	sender.panics[s2.Endpoint] = true
	s := testSweeper(st, sender, nil, sweepNow)

	res, err := s.Reminders(context.Background())
	if err != nil {
		t.Fatalf("Reminders: %v", err)
	}
	if res.Sent != 2 || res.Failed != 1 || res.Total != 3 {
		t.Fatalf("result = %+v, want sent=2 failed=1 total=3", res)
	}
}
