package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mattanmr/job-posting-aggregator/internal/artifact"
	"github.com/mattanmr/job-posting-aggregator/internal/collector"
	"github.com/mattanmr/job-posting-aggregator/internal/history"
	"github.com/mattanmr/job-posting-aggregator/internal/keyword"
	"github.com/mattanmr/job-posting-aggregator/internal/platform/sqlite"
	historyrepo "github.com/mattanmr/job-posting-aggregator/internal/repository/history"
	keywordrepo "github.com/mattanmr/job-posting-aggregator/internal/repository/keyword"
	schedulerepo "github.com/mattanmr/job-posting-aggregator/internal/repository/schedule"
	"github.com/mattanmr/job-posting-aggregator/internal/scheduler"
	"github.com/mattanmr/job-posting-aggregator/internal/search"
	"github.com/mattanmr/job-posting-aggregator/internal/server"
	"github.com/mattanmr/job-posting-aggregator/internal/source"
	"github.com/mattanmr/job-posting-aggregator/internal/source/static"
)

// blockingSource holds every search until released. Used to exercise the
// single-run guard over HTTP.
type blockingSource struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSource) Name() string { return "blocking" }

func (b *blockingSource) Search(_ context.Context, _ string) ([]source.Record, error) {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-b.release
	return nil, nil
}

func setupE2E(t *testing.T, sources []source.Source) (*httptest.Server, *scheduler.Engine) {
	t.Helper()

	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	kwRepo := keywordrepo.NewRepository(db.DB)
	schedRepo := schedulerepo.NewRepository(db.DB)
	histRepo := historyrepo.NewRepository(db.DB)

	store, err := artifact.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	coll := collector.New(sources, collector.WithWorkers(1), collector.WithTimeout(2*time.Second))
	engine := scheduler.New(kwRepo, schedRepo, coll, store, histRepo)
	if err := engine.Start(context.Background(), 12); err != nil {
		t.Fatalf("start engine: %v", err)
	}
	t.Cleanup(engine.Stop)

	ts := httptest.NewServer(server.NewHandler(server.Deps{
		Keywords: keyword.NewService(kwRepo),
		Search:   search.NewService(sources),
		Engine:   engine,
		Store:    store,
		History:  histRepo,
	}))
	t.Cleanup(ts.Close)
	return ts, engine
}

func getJSON[T any](t *testing.T, url string, out *T) int {
	t.Helper()

	resp, err := http.Get(url) //nolint:gosec // test URL
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var body struct {
		Data T `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
	*out = body.Data
	return resp.StatusCode
}

func doJSON(t *testing.T, method, url string, payload any) *http.Response {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &body)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func TestE2E_Health(t *testing.T) {
	ts, _ := setupE2E(t, []source.Source{static.New()})

	var status map[string]string
	if code := getJSON(t, ts.URL+"/health", &status); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if status["status"] != "ok" {
		t.Errorf("unexpected health payload: %v", status)
	}
}

func TestE2E_KeywordLifecycle(t *testing.T) {
	ts, _ := setupE2E(t, []source.Source{static.New()})

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/keywords", map[string]string{"keyword": "  Go Developer  "})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	// Duplicate is rejected.
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/keywords", map[string]string{"keyword": "go developer"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	// Blank is rejected.
	resp = doJSON(t, http.MethodPost, ts.URL+"/api/v1/keywords", map[string]string{"keyword": "   "})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank keyword, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	var keywords []string
	getJSON(t, ts.URL+"/api/v1/keywords", &keywords)
	if len(keywords) != 1 || keywords[0] != "go developer" {
		t.Fatalf("expected normalized keyword, got %v", keywords)
	}

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/keywords/go%20developer", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for delete, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	resp = doJSON(t, http.MethodDelete, ts.URL+"/api/v1/keywords/go%20developer", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing keyword, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	getJSON(t, ts.URL+"/api/v1/keywords", &keywords)
	if len(keywords) != 0 {
		t.Fatalf("expected empty registry, got %v", keywords)
	}
}

func TestE2E_Search(t *testing.T) {
	ts, _ := setupE2E(t, []source.Source{static.New()})

	var records []source.Record
	if code := getJSON(t, ts.URL+"/api/v1/search?q=engineer", &records); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(records) == 0 {
		t.Fatal("expected fallback records for 'engineer'")
	}
	for _, r := range records {
		if r.Source != "static" {
			t.Errorf("unexpected source %q", r.Source)
		}
	}

	resp, err := http.Get(ts.URL + "/api/v1/search?q=")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty query, got %d", resp.StatusCode)
	}
}

func TestE2E_CollectAndDownload(t *testing.T) {
	ts, _ := setupE2E(t, []source.Source{static.New()})

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/keywords", map[string]string{"keyword": "engineer"})
	_ = resp.Body.Close()

	var run scheduler.RunResult
	collectResp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/collect", nil)
	if collectResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for collect, got %d", collectResp.StatusCode)
	}
	var body struct {
		Data scheduler.RunResult `json:"data"`
	}
	if err := json.NewDecoder(collectResp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	_ = collectResp.Body.Close()
	run = body.Data

	if run.Status != history.StatusSuccess {
		t.Fatalf("expected success run, got %+v", run)
	}
	if run.Filename == "" || run.TotalRecords == 0 {
		t.Fatalf("expected artifact with records, got %+v", run)
	}

	// Artifact listed.
	var metas []artifact.Meta
	getJSON(t, ts.URL+"/api/v1/artifacts", &metas)
	if len(metas) != 1 || metas[0].Filename != run.Filename {
		t.Fatalf("expected listed artifact %q, got %v", run.Filename, metas)
	}

	// Artifact downloadable as CSV.
	dlResp, err := http.Get(ts.URL + "/api/v1/artifacts/" + run.Filename)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = dlResp.Body.Close() }()
	if dlResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for download, got %d", dlResp.StatusCode)
	}
	if ct := dlResp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("expected text/csv, got %q", ct)
	}

	// Unknown artifact is 404, traversal names included.
	for _, name := range []string{"jobs_20990101_000000.csv", "../aggregator.db", "notes.txt"} {
		resp, err := http.Get(ts.URL + "/api/v1/artifacts/" + name)
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("expected 404 for %q, got %d", name, resp.StatusCode)
		}
	}

	// Run recorded in history.
	var entries []history.Entry
	getJSON(t, ts.URL+"/api/v1/history", &entries)
	if len(entries) != 1 || entries[0].RunID != run.RunID {
		t.Fatalf("expected history entry for run, got %v", entries)
	}
}

func TestE2E_Schedule(t *testing.T) {
	ts, _ := setupE2E(t, []source.Source{static.New()})

	var sched struct {
		IntervalHours int        `json:"intervalHours"`
		NextRun       *time.Time `json:"nextRun"`
	}
	getJSON(t, ts.URL+"/api/v1/schedule", &sched)
	if sched.IntervalHours != 12 {
		t.Fatalf("expected interval 12, got %d", sched.IntervalHours)
	}
	if sched.NextRun == nil {
		t.Fatal("expected next run time while started")
	}

	resp := doJSON(t, http.MethodPut, ts.URL+"/api/v1/schedule", map[string]int{"intervalHours": 24})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for reconfigure, got %d", resp.StatusCode)
	}
	_ = resp.Body.Close()

	getJSON(t, ts.URL+"/api/v1/schedule", &sched)
	if sched.IntervalHours != 24 {
		t.Fatalf("expected interval 24 after reconfigure, got %d", sched.IntervalHours)
	}

	// Out-of-range interval is rejected and nothing changes.
	for _, hours := range []int{0, 169} {
		resp := doJSON(t, http.MethodPut, ts.URL+"/api/v1/schedule", map[string]int{"intervalHours": hours})
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400 for interval %d, got %d", hours, resp.StatusCode)
		}
		_ = resp.Body.Close()
	}
	getJSON(t, ts.URL+"/api/v1/schedule", &sched)
	if sched.IntervalHours != 24 {
		t.Fatalf("invalid reconfigure must not change interval, got %d", sched.IntervalHours)
	}
}

func TestE2E_CollectConflict(t *testing.T) {
	blocking := &blockingSource{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	ts, _ := setupE2E(t, []source.Source{blocking})

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/keywords", map[string]string{"keyword": "go"})
	_ = resp.Body.Close()

	done := make(chan struct{})
	go func() {
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/collect", nil)
		_ = resp.Body.Close()
		close(done)
	}()

	select {
	case <-blocking.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for collection to start")
	}

	conflictResp := doJSON(t, http.MethodPost, ts.URL+"/api/v1/collect", nil)
	if conflictResp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 while run in flight, got %d", conflictResp.StatusCode)
	}
	_ = conflictResp.Body.Close()

	close(blocking.release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for collection to finish")
	}

	var entries []history.Entry
	getJSON(t, ts.URL+"/api/v1/history", &entries)
	if len(entries) != 1 {
		t.Fatalf("expected one history entry, got %d", len(entries))
	}
}

func TestE2E_RequestIDPropagated(t *testing.T) {
	ts, _ := setupE2E(t, []source.Source{static.New()})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-Request-ID", "fixed-id")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if got := resp.Header.Get("X-Request-ID"); got != "fixed-id" {
		t.Errorf("expected request id echoed back, got %q", got)
	}
}

func TestE2E_UnknownRouteIs404(t *testing.T) {
	ts, _ := setupE2E(t, []source.Source{static.New()})

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/nope", ts.URL))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
