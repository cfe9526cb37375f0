// Package source defines the job listing model and the connector interface
// implemented by each external data source.
package source

import (
	"context"
	"time"
)

// Record is one normalized job listing returned by a Source.
type Record struct {
	Title           string    `json:"title"`
	Company         string    `json:"company"`
	Location        string    `json:"location"`
	Description     string    `json:"description"`
	URL             string    `json:"url"`
	Source          string    `json:"source"`
	PostedAt        time.Time `json:"postedAt,omitzero"`
	DiplomaRequired string    `json:"diplomaRequired,omitempty"`
	YearsExperience string    `json:"yearsExperience,omitempty"`
	Salary          string    `json:"salary,omitempty"`
}

// Key returns the record's identity key: the canonical URL when present,
// otherwise title and company combined.
func (r Record) Key() string {
	if r.URL != "" {
		return r.URL
	}
	return r.Title + "|" + r.Company
}

// Source searches one external provider for listings matching a keyword.
// Returning an empty slice and returning an error are both acceptable
// outcomes; callers fall back to the next source in either case.
type Source interface {
	Name() string
	Search(ctx context.Context, keyword string) ([]Record, error)
}
