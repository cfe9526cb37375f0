package keyword

import (
	"context"
	"database/sql"
	"fmt"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Add inserts the keyword. Returns false when it already exists.
func (r *Repository) Add(ctx context.Context, keyword string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO keywords (keyword) VALUES (?) ON CONFLICT(keyword) DO NOTHING`,
		keyword,
	)
	if err != nil {
		return false, fmt.Errorf("add keyword: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add keyword: %w", err)
	}
	return n > 0, nil
}

// Remove deletes the keyword. Returns false when it was not present.
func (r *Repository) Remove(ctx context.Context, keyword string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM keywords WHERE keyword = ?`, keyword)
	if err != nil {
		return false, fmt.Errorf("remove keyword: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove keyword: %w", err)
	}
	return n > 0, nil
}

// List returns all keywords in insertion order.
func (r *Repository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT keyword FROM keywords ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("list keywords: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keywords []string
	for rows.Next() {
		var kw string
		if err := rows.Scan(&kw); err != nil {
			return nil, fmt.Errorf("scan keyword: %w", err)
		}
		keywords = append(keywords, kw)
	}
	return keywords, rows.Err()
}
