// Package history defines the run-history journal: a bounded, append-only
// record of collection run outcomes, kept independently of the artifact
// files so it survives retention sweeps.
package history

import (
	"context"
	"time"
)

// MaxEntries is the journal cap. Older entries are dropped once exceeded.
const MaxEntries = 100

type Status string

const (
	StatusSuccess Status = "success"
	StatusWarning Status = "warning" // run completed but found no records
	StatusSkipped Status = "skipped" // no keywords configured, nothing ran
	StatusError   Status = "error"
)

type Entry struct {
	RunID        string    `json:"runId"`
	Timestamp    time.Time `json:"timestamp"`
	Status       Status    `json:"status"`
	TotalRecords int       `json:"totalRecords"`
	KeywordCount int       `json:"keywordCount"`
	Keywords     []string  `json:"keywords"`
	Filename     string    `json:"filename,omitempty"`
	Error        string    `json:"error,omitempty"`
}

type Repository interface {
	// Append records one entry and trims the journal to MaxEntries.
	Append(ctx context.Context, e Entry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
}
