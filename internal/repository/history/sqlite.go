package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	domain "github.com/mattanmr/job-posting-aggregator/internal/history"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Append inserts the entry and trims the journal to the newest MaxEntries
// rows in the same transaction, so the cap holds even across crashes.
func (r *Repository) Append(ctx context.Context, e domain.Entry) error {
	keywords, err := json.Marshal(e.Keywords)
	if err != nil {
		return fmt.Errorf("append history: marshal keywords: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append history: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insert = `INSERT INTO run_history
		(run_id, ts, status, total_records, keyword_count, keywords, filename, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = tx.ExecContext(ctx, insert,
		e.RunID,
		e.Timestamp.UTC().Format(time.RFC3339),
		string(e.Status),
		e.TotalRecords,
		e.KeywordCount,
		string(keywords),
		nullable(e.Filename),
		nullable(e.Error),
	)
	if err != nil {
		return fmt.Errorf("append history: insert: %w", err)
	}

	const trim = `DELETE FROM run_history
		WHERE id NOT IN (SELECT id FROM run_history ORDER BY id DESC LIMIT ?)`

	if _, err := tx.ExecContext(ctx, trim, domain.MaxEntries); err != nil {
		return fmt.Errorf("append history: trim: %w", err)
	}

	return tx.Commit()
}

// Recent returns up to limit entries, newest first. Rows that fail to scan
// are skipped so one bad row never hides the rest of the journal.
func (r *Repository) Recent(ctx context.Context, limit int) ([]domain.Entry, error) {
	if limit <= 0 || limit > domain.MaxEntries {
		limit = domain.MaxEntries
	}

	const query = `SELECT run_id, ts, status, total_records, keyword_count, keywords, filename, error
		FROM run_history ORDER BY id DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("recent history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []domain.Entry
	for rows.Next() {
		var e domain.Entry
		var ts, status, keywords string
		var filename, errMsg sql.NullString

		if err := rows.Scan(&e.RunID, &ts, &status, &e.TotalRecords,
			&e.KeywordCount, &keywords, &filename, &errMsg); err != nil {
			slog.Error("skipping malformed history row", "error", err)
			continue
		}

		e.Status = domain.Status(status)
		e.Timestamp, _ = time.Parse(time.RFC3339, ts)
		if err := json.Unmarshal([]byte(keywords), &e.Keywords); err != nil {
			slog.Error("skipping malformed history keywords", "runId", e.RunID, "error", err)
		}
		if filename.Valid {
			e.Filename = filename.String
		}
		if errMsg.Valid {
			e.Error = errMsg.String
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
