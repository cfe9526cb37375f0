// Package search serves on-demand job searches across all configured
// sources. Unlike the periodic collection pipeline, it queries every source
// and removes duplicate records by identity key.
package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/mattanmr/job-posting-aggregator/internal/apperror"
	"github.com/mattanmr/job-posting-aggregator/internal/source"
)

const defaultTimeout = 15 * time.Second

type Service struct {
	sources []source.Source
	timeout time.Duration
}

func NewService(sources []source.Source, opts ...Option) *Service {
	s := &Service{
		sources: sources,
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type Option func(*Service)

func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// Search queries every source for the term and merges the results,
// dropping records whose identity key was already seen. Individual source
// failures are logged and skipped.
func (s *Service) Search(ctx context.Context, query string) ([]source.Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.New(apperror.BadRequest, "search query cannot be empty")
	}

	seen := make(map[string]bool)
	results := make([]source.Record, 0)

	for _, src := range s.sources {
		sctx, cancel := context.WithTimeout(ctx, s.timeout)
		records, err := src.Search(sctx, query)
		cancel()
		if err != nil {
			slog.Error("search source failed", "source", src.Name(), "query", query, "error", err)
			continue
		}

		for _, r := range records {
			key := r.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			results = append(results, r)
		}
	}

	return results, nil
}
