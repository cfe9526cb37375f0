package search

import (
	"context"
	"errors"
	"testing"

	"github.com/mattanmr/job-posting-aggregator/internal/apperror"
	"github.com/mattanmr/job-posting-aggregator/internal/source"
)

type fakeSource struct {
	name    string
	records []source.Record
	err     error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Search(_ context.Context, _ string) ([]source.Record, error) {
	return f.records, f.err
}

func TestSearch_DeduplicatesAcrossSources(t *testing.T) {
	a := &fakeSource{name: "a", records: []source.Record{
		{Title: "Go Dev", Company: "Acme", URL: "https://x/1"},
		{Title: "Rust Dev", Company: "Acme", URL: "https://x/2"},
	}}
	b := &fakeSource{name: "b", records: []source.Record{
		{Title: "Go Dev", Company: "Acme", URL: "https://x/1"}, // duplicate
		{Title: "C++ Dev", Company: "Acme", URL: "https://x/3"},
	}}

	svc := NewService([]source.Source{a, b})
	got, err := svc.Search(context.Background(), "dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 deduplicated records, got %d", len(got))
	}
}

func TestSearch_FallbackIdentityKey(t *testing.T) {
	// No URLs: identity falls back to title+company.
	a := &fakeSource{name: "a", records: []source.Record{
		{Title: "Go Dev", Company: "Acme"},
		{Title: "Go Dev", Company: "Acme"},
		{Title: "Go Dev", Company: "Other"},
	}}

	svc := NewService([]source.Source{a})
	got, err := svc.Search(context.Background(), "go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records after title+company dedup, got %d", len(got))
	}
}

func TestSearch_SkipsFailedSource(t *testing.T) {
	broken := &fakeSource{name: "broken", err: errors.New("boom")}
	ok := &fakeSource{name: "ok", records: []source.Record{
		{Title: "Go Dev", Company: "Acme", URL: "https://x/1"},
	}}

	svc := NewService([]source.Source{broken, ok})
	got, err := svc.Search(context.Background(), "go")
	if err != nil {
		t.Fatalf("source failure must not propagate: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	svc := NewService(nil)
	_, err := svc.Search(context.Background(), "  ")
	var ae *apperror.AppError
	if !errors.As(err, &ae) || ae.Code() != apperror.BadRequest {
		t.Fatalf("expected BadRequest, got %v", err)
	}
}
