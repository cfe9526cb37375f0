// Package artifact persists collection batches as dated CSV files and
// enforces the retention policy over them.
package artifact

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mattanmr/job-posting-aggregator/internal/apperror"
	"github.com/mattanmr/job-posting-aggregator/internal/collector"
)

const (
	timestampLayout   = "20060102_150405"
	notSpecified      = "Not specified"
	maxDescriptionLen = 500

	defaultMaxFiles = 30
	defaultMaxAge   = 90 * 24 * time.Hour
)

// namePattern is the exact artifact naming scheme. Resolve rejects anything
// else, including traversal attempts.
var namePattern = regexp.MustCompile(`^jobs_(\d{8}_\d{6})\.csv$`)

var header = []string{
	"keyword",
	"title",
	"company",
	"location",
	"diploma_required",
	"years_experience",
	"url",
	"posted_date",
	"description",
}

// Meta describes one stored artifact.
type Meta struct {
	Filename      string         `json:"filename"`
	Timestamp     time.Time      `json:"timestamp"`
	Size          int64          `json:"size"`
	TotalRecords  int            `json:"totalRecords"`
	KeywordCounts map[string]int `json:"keywordCounts"`
}

type Store struct {
	dir      string
	now      func() time.Time
	maxFiles int
	maxAge   time.Duration
}

func NewStore(dir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	s := &Store{
		dir:      dir,
		now:      time.Now,
		maxFiles: defaultMaxFiles,
		maxAge:   defaultMaxAge,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

type Option func(*Store)

// WithClock injects the timestamp source used for filenames.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithMaxFiles(n int) Option {
	return func(s *Store) { s.maxFiles = n }
}

func WithMaxAge(d time.Duration) Option {
	return func(s *Store) { s.maxAge = d }
}

// Write persists the batch as one CSV artifact and returns its filename.
// The file is written under a temporary name and renamed on completion, so a
// partial write is never discoverable by List. Filenames are never reused:
// if the second-resolution name already exists the timestamp advances.
func (s *Store) Write(batch *collector.Batch) (string, error) {
	ts := s.now()
	var name string
	for {
		name = fmt.Sprintf("jobs_%s.csv", ts.Format(timestampLayout))
		if _, err := os.Stat(filepath.Join(s.dir, name)); err != nil {
			break
		}
		ts = ts.Add(time.Second)
	}

	tmp, err := os.CreateTemp(s.dir, "jobs_*.tmp")
	if err != nil {
		return "", fmt.Errorf("create artifact: %w", err)
	}
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write artifact header: %w", err)
	}
	for _, rec := range batch.Records {
		row := []string{
			batch.KeywordFor(rec),
			rec.Title,
			rec.Company,
			rec.Location,
			orNotSpecified(rec.DiplomaRequired),
			orNotSpecified(rec.YearsExperience),
			rec.URL,
			formatPostedAt(rec.PostedAt),
			truncate(rec.Description, maxDescriptionLen),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write artifact row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		tmp = nil
		return "", fmt.Errorf("close artifact: %w", err)
	}

	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmp.Name())
		tmp = nil
		return "", fmt.Errorf("finalize artifact: %w", err)
	}
	tmp = nil

	slog.Info("artifact written", "filename", name, "records", len(batch.Records))
	return name, nil
}

// List returns metadata for every stored artifact, newest first. The
// timestamp comes from the filename; files dropped into the directory by
// hand with unparsable names fall back to their modification time.
func (s *Store) List() ([]Meta, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read artifact dir: %w", err)
	}

	metas := make([]Meta, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "jobs_") || !strings.HasSuffix(name, ".csv") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			slog.Error("stat artifact", "filename", name, "error", err)
			continue
		}

		ts := info.ModTime()
		if m := namePattern.FindStringSubmatch(name); m != nil {
			if parsed, err := time.ParseInLocation(timestampLayout, m[1], time.Local); err == nil {
				ts = parsed
			}
		}

		total, counts := s.countRows(name)
		metas = append(metas, Meta{
			Filename:      name,
			Timestamp:     ts,
			Size:          info.Size(),
			TotalRecords:  total,
			KeywordCounts: counts,
		})
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].Timestamp.After(metas[j].Timestamp) })
	return metas, nil
}

// countRows tallies data rows by the keyword column. Unreadable files count
// as zero rather than failing the listing.
func (s *Store) countRows(name string) (int, map[string]int) {
	counts := make(map[string]int)

	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		return 0, counts
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil || len(rows) == 0 {
		return 0, counts
	}

	total := 0
	for _, row := range rows[1:] {
		if len(row) == 0 {
			continue
		}
		counts[row[0]]++
		total++
	}
	return total, counts
}

// Resolve validates the filename against the artifact naming pattern and
// returns the absolute path, or NotFound for anything that does not match or
// escapes the artifact directory.
func (s *Store) Resolve(filename string) (string, error) {
	if !namePattern.MatchString(filename) {
		return "", apperror.New(apperror.NotFound, "artifact not found")
	}

	path := filepath.Join(s.dir, filename)
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || rel != filename {
		return "", apperror.New(apperror.NotFound, "artifact not found")
	}

	if _, err := os.Stat(path); err != nil {
		return "", apperror.New(apperror.NotFound, "artifact not found")
	}
	return path, nil
}

// Sweep enforces the dual retention policy: at most maxFiles artifacts are
// kept (newest first), and any artifact whose modification time exceeds
// maxAge is deleted regardless of rank. Per-file delete failures are logged
// and do not stop the sweep. Returns the number of files deleted.
func (s *Store) Sweep() int {
	metas, err := s.List()
	if err != nil {
		slog.Error("retention sweep: list artifacts", "error", err)
		return 0
	}

	now := s.now()
	deleted := 0
	for i, m := range metas {
		path := filepath.Join(s.dir, m.Filename)

		info, err := os.Stat(path)
		if err != nil {
			slog.Error("retention sweep: stat", "filename", m.Filename, "error", err)
			continue
		}

		tooMany := i >= s.maxFiles
		tooOld := now.Sub(info.ModTime()) > s.maxAge
		if !tooMany && !tooOld {
			continue
		}

		if err := os.Remove(path); err != nil {
			slog.Error("retention sweep: delete", "filename", m.Filename, "error", err)
			continue
		}
		deleted++
		slog.Info("retention sweep: deleted artifact", "filename", m.Filename, "tooMany", tooMany, "tooOld", tooOld)
	}
	return deleted
}

func orNotSpecified(v string) string {
	if v == "" {
		return notSpecified
	}
	return v
}

func formatPostedAt(t time.Time) string {
	if t.IsZero() {
		return notSpecified
	}
	return t.Format(time.RFC3339)
}

// truncate cuts s to at most n bytes without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
