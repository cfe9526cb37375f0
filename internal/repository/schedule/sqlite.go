// Package schedule persists the collection schedule configuration and the
// last-run timestamp so both survive process restarts.
package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	intervalKey = "collect_interval_hours"
	lastRunKey  = "last_run_at"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Interval returns the persisted interval in hours, or 0 when none has been
// saved yet.
func (r *Repository) Interval(ctx context.Context) (int, error) {
	v, err := r.get(ctx, intervalKey)
	if err != nil {
		return 0, err
	}
	if v == "" {
		return 0, nil
	}
	hours, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse interval %q: %w", v, err)
	}
	return hours, nil
}

func (r *Repository) SaveInterval(ctx context.Context, hours int) error {
	return r.set(ctx, intervalKey, strconv.Itoa(hours))
}

// LastRunTime returns the persisted last-run timestamp, or the zero time
// when no run has completed yet.
func (r *Repository) LastRunTime(ctx context.Context) (time.Time, error) {
	v, err := r.get(ctx, lastRunKey)
	if err != nil {
		return time.Time{}, err
	}
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last run %q: %w", v, err)
	}
	return t, nil
}

func (r *Repository) SaveLastRunTime(ctx context.Context, t time.Time) error {
	return r.set(ctx, lastRunKey, t.UTC().Format(time.RFC3339))
}

func (r *Repository) get(ctx context.Context, key string) (string, error) {
	var v string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, nil
}

func (r *Repository) set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
