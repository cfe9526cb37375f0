// Package collector runs the multi-keyword aggregation pipeline: for every
// keyword it queries an ordered chain of sources, falling back to the next
// source on failure or empty results, and merges everything into one batch.
package collector

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mattanmr/job-posting-aggregator/internal/source"
)

const (
	defaultTimeout = 15 * time.Second
	defaultWorkers = 3
)

// Batch is the merged result of one collection run. Records may contain
// duplicates (same identity key found under multiple keywords); only the
// keyword attribution collapses to the first owner.
type Batch struct {
	Records []source.Record

	origin map[string]string // identity key -> first owning keyword
}

// KeywordFor returns the keyword attributed to the record. The first keyword
// (in processing order) whose source produced a record with this identity key
// owns it.
func (b *Batch) KeywordFor(r source.Record) string {
	return b.origin[r.Key()]
}

// PerKeywordCounts tallies records by their attributed keyword.
func (b *Batch) PerKeywordCounts() map[string]int {
	counts := make(map[string]int)
	for _, r := range b.Records {
		counts[b.KeywordFor(r)]++
	}
	return counts
}

func (b *Batch) Empty() bool { return len(b.Records) == 0 }

type Collector struct {
	sources []source.Source
	timeout time.Duration
	workers int
}

// New creates a Collector over an ordered source chain. Order matters: the
// first source returning a non-empty result wins for a keyword.
func New(sources []source.Source, opts ...Option) *Collector {
	c := &Collector{
		sources: sources,
		timeout: defaultTimeout,
		workers: defaultWorkers,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type Option func(*Collector)

// WithTimeout bounds each individual source query.
func WithTimeout(d time.Duration) Option {
	return func(c *Collector) { c.timeout = d }
}

func WithWorkers(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.workers = n
		}
	}
}

// Collect gathers records for every keyword and merges them in
// keyword-processing order. Source failures are logged and never abort the
// run; a keyword for which every source fails or comes back empty simply
// contributes zero records.
func (c *Collector) Collect(ctx context.Context, keywords []string) *Batch {
	results := make([][]source.Record, len(keywords))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for i, kw := range keywords {
		g.Go(func() error {
			results[i] = c.collectKeyword(gctx, kw)
			return nil
		})
	}
	_ = g.Wait()

	batch := &Batch{origin: make(map[string]string)}
	for i, kw := range keywords {
		for _, rec := range results[i] {
			batch.Records = append(batch.Records, rec)
			key := rec.Key()
			if _, ok := batch.origin[key]; !ok {
				batch.origin[key] = kw
			}
		}
	}
	return batch
}

func (c *Collector) collectKeyword(ctx context.Context, keyword string) []source.Record {
	for _, src := range c.sources {
		sctx, cancel := context.WithTimeout(ctx, c.timeout)
		records, err := src.Search(sctx, keyword)
		cancel()

		if err != nil {
			slog.Error("source search failed, trying next source",
				"source", src.Name(), "keyword", keyword, "error", err)
			continue
		}
		if len(records) == 0 {
			slog.Info("source returned no results, trying next source",
				"source", src.Name(), "keyword", keyword)
			continue
		}

		slog.Info("collected records", "source", src.Name(), "keyword", keyword, "count", len(records))
		return records
	}
	return nil
}
