package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"drysense-push-go/internal/models"
)

//go:embed schema.sql
var schemaSQL string

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// RunMigrations creates tables if they don't exist and applies schema updates
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	// Create tables
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return err
	}

	// Apply migrations for existing tables
	migrations := []string{
		`ALTER TABLE push_subscriptions ADD COLUMN IF NOT EXISTS temperature_threshold DOUBLE PRECISION NOT NULL DEFAULT 28;`,
		`ALTER TABLE push_subscriptions ADD COLUMN IF NOT EXISTS humidity_threshold DOUBLE PRECISION NOT NULL DEFAULT 70;`,
		`ALTER TABLE push_subscriptions ADD COLUMN IF NOT EXISTS uv_threshold DOUBLE PRECISION NOT NULL DEFAULT 10;`,
		`ALTER TABLE push_subscriptions ADD COLUMN IF NOT EXISTS last_reminder_sent_at TIMESTAMP WITH TIME ZONE;`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Subscription methods

const subscriptionColumns = `id, endpoint, p256dh, auth, user_id, latitude, longitude,
	temperature_threshold, humidity_threshold, uv_threshold, last_reminder_sent_at, is_active, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (models.PushSubscription, error) {
	var sub models.PushSubscription
	var userID sql.NullString
	var lat, lon sql.NullFloat64
	var lastReminder sql.NullTime

	err := row.Scan(&sub.ID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &userID, &lat, &lon,
		&sub.TemperatureThreshold, &sub.HumidityThreshold, &sub.UVThreshold, &lastReminder, &sub.IsActive, &sub.CreatedAt)
	if err != nil {
		return models.PushSubscription{}, err
	}

	if userID.Valid {
		sub.UserID = userID.String
	}
	if lat.Valid {
		sub.Latitude = &lat.Float64
	}
	if lon.Valid {
		sub.Longitude = &lon.Float64
	}
	if lastReminder.Valid {
		t := lastReminder.Time
		sub.LastReminderSentAt = &t
	}

	return sub, nil
}

// SaveSubscription upserts by endpoint: re-registering an endpoint refreshes
// its keys, owner and preferences, and reactivates it.
func (s *PostgresStore) SaveSubscription(ctx context.Context, sub models.PushSubscription) (models.PushSubscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.TemperatureThreshold == 0 {
		sub.TemperatureThreshold = 28
	}
	if sub.HumidityThreshold == 0 {
		sub.HumidityThreshold = 70
	}
	if sub.UVThreshold == 0 {
		sub.UVThreshold = 10
	}

	row := s.db.QueryRowContext(ctx,
		`INSERT INTO push_subscriptions
		 (id, endpoint, p256dh, auth, user_id, latitude, longitude,
		  temperature_threshold, humidity_threshold, uv_threshold, is_active, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, TRUE, NOW())
		 ON CONFLICT (endpoint) DO UPDATE SET
		   p256dh = EXCLUDED.p256dh,
		   auth = EXCLUDED.auth,
		   user_id = EXCLUDED.user_id,
		   latitude = EXCLUDED.latitude,
		   longitude = EXCLUDED.longitude,
		   temperature_threshold = EXCLUDED.temperature_threshold,
		   humidity_threshold = EXCLUDED.humidity_threshold,
		   uv_threshold = EXCLUDED.uv_threshold,
		   is_active = TRUE
		 RETURNING `+subscriptionColumns,
		sub.ID, sub.Endpoint, sub.P256dh, sub.Auth, sub.UserID, sub.Latitude, sub.Longitude,
		sub.TemperatureThreshold, sub.HumidityThreshold, sub.UVThreshold,
	)

	return scanSubscription(row)
}

func (s *PostgresStore) SubscriptionByEndpoint(ctx context.Context, endpoint string) (models.PushSubscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM push_subscriptions WHERE endpoint = $1 AND is_active`,
		endpoint,
	)

	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return models.PushSubscription{}, ErrNotFound
	}
	return sub, err
}

func (s *PostgresStore) SubscriptionsByUser(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	return s.querySubscriptions(ctx,
		`SELECT `+subscriptionColumns+` FROM push_subscriptions WHERE user_id = $1 AND is_active ORDER BY created_at`,
		userID,
	)
}

func (s *PostgresStore) ActiveSubscriptions(ctx context.Context) ([]models.PushSubscription, error) {
	return s.querySubscriptions(ctx,
		`SELECT `+subscriptionColumns+` FROM push_subscriptions WHERE is_active ORDER BY created_at`,
	)
}

func (s *PostgresStore) SubscriptionsWithLocation(ctx context.Context) ([]models.PushSubscription, error) {
	return s.querySubscriptions(ctx,
		`SELECT `+subscriptionColumns+` FROM push_subscriptions
		 WHERE is_active AND latitude IS NOT NULL AND longitude IS NOT NULL
		 ORDER BY created_at`,
	)
}

func (s *PostgresStore) querySubscriptions(ctx context.Context, query string, args ...any) ([]models.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []models.PushSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			continue
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// DeactivateSubscription marks a subscription dead. Sweeps and sends never
// target it again; the row stays for the ledger's foreign keys.
func (s *PostgresStore) DeactivateSubscription(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE push_subscriptions SET is_active = FALSE WHERE id = $1`,
		id,
	)
	return err
}

func (s *PostgresStore) StampReminderSent(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE push_subscriptions SET last_reminder_sent_at = $1 WHERE id = $2`,
		at, id,
	)
	return err
}

// Ledger methods

func (s *PostgresStore) CountOnDay(ctx context.Context, subscriptionID string, t models.NotificationType, day string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification_logs
		 WHERE subscription_id = $1 AND notification_type = $2 AND created_date = $3::date`,
		subscriptionID, string(t), day,
	).Scan(&count)
	return count, err
}

func (s *PostgresStore) CountClimateOnDay(ctx context.Context, subscriptionID string, day string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification_logs
		 WHERE subscription_id = $1
		   AND notification_type IN ($2, $3)
		   AND created_date = $4::date`,
		subscriptionID, string(models.TypeClimateExtreme), string(models.TypeClimateModerate), day,
	).Scan(&count)
	return count, err
}

// ClaimNotification appends a ledger row before the send it covers, so two
// overlapping sweep runs cannot both pass the cap check for the same slot.
func (s *PostgresStore) ClaimNotification(ctx context.Context, subscriptionID, userID string, t models.NotificationType, day string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_logs (id, subscription_id, user_id, notification_type, created_date, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5::date, NOW())`,
		id, subscriptionID, userID, string(t), day,
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ReleaseNotification rolls back a claim whose send failed. Only ever deletes
// a row the claiming invocation wrote.
func (s *PostgresStore) ReleaseNotification(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM notification_logs WHERE id = $1`,
		id,
	)
	return err
}

// Episode methods

func (s *PostgresStore) LatestEpisodeAt(ctx context.Context, userID string) (time.Time, bool, error) {
	var at time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at FROM episodes WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`,
		userID,
	).Scan(&at)

	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}
