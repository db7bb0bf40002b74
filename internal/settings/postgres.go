package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
)

// settingsID is the key of the single settings row.
const settingsID = 1

const schema = `
	CREATE TABLE IF NOT EXISTS user_settings (
		id                    SMALLINT PRIMARY KEY CHECK (id = 1),
		province              TEXT     NOT NULL,
		notifications_enabled BOOLEAN  NOT NULL DEFAULT FALSE,
		notify_min            SMALLINT NOT NULL DEFAULT 1,
		notify_max            SMALLINT NOT NULL DEFAULT 9,
		updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

// PostgresStore keeps settings in a single-row PostgreSQL table.
type PostgresStore struct {
	db *sqlx.DB
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the settings table if it does not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate settings: %w", err)
	}
	return nil
}

// Get returns the stored settings, or Defaults when none were saved yet.
func (p *PostgresStore) Get(ctx context.Context) (Settings, error) {
	const query = `
		SELECT province, notifications_enabled, notify_min, notify_max
		FROM user_settings
		WHERE id = $1`

	var s Settings
	err := p.db.GetContext(ctx, &s, query, settingsID)
	if errors.Is(err, sql.ErrNoRows) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return s.Normalize(), nil
}

// Put upserts the normalized settings.
func (p *PostgresStore) Put(ctx context.Context, s Settings) (Settings, error) {
	const query = `
		INSERT INTO user_settings (id, province, notifications_enabled, notify_min, notify_max, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			province = EXCLUDED.province,
			notifications_enabled = EXCLUDED.notifications_enabled,
			notify_min = EXCLUDED.notify_min,
			notify_max = EXCLUDED.notify_max,
			updated_at = NOW()`

	s = s.Normalize()
	if _, err := p.db.ExecContext(ctx, query, settingsID, s.Province, s.NotificationsEnabled, s.NotifyMin, s.NotifyMax); err != nil {
		return Settings{}, fmt.Errorf("save settings: %w", err)
	}
	return s, nil
}

// CheckReadiness pings the database.
func (p *PostgresStore) CheckReadiness(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("settings database: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}
