// Package scheduler owns the periodic collection trigger and the manual
// "run now" entry point. At most one collection pipeline executes at any
// instant: the timer path and the manual path contend for the same guard,
// and the loser is skipped (timer) or rejected (manual).
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/mattanmr/job-posting-aggregator/internal/apperror"
	"github.com/mattanmr/job-posting-aggregator/internal/artifact"
	"github.com/mattanmr/job-posting-aggregator/internal/collector"
	"github.com/mattanmr/job-posting-aggregator/internal/history"
)

const (
	// MinIntervalHours and MaxIntervalHours bound the collection interval.
	MinIntervalHours = 1
	MaxIntervalHours = 168

	// DefaultIntervalHours is used when nothing has been persisted yet.
	DefaultIntervalHours = 12
)

// KeywordLister provides the keyword snapshot for one run. It is read once
// at the start of the pipeline and never re-read mid-run.
type KeywordLister interface {
	List(ctx context.Context) ([]string, error)
}

// ConfigStore persists the schedule interval and the last-run timestamp.
type ConfigStore interface {
	Interval(ctx context.Context) (int, error)
	SaveInterval(ctx context.Context, hours int) error
	LastRunTime(ctx context.Context) (time.Time, error)
	SaveLastRunTime(ctx context.Context, t time.Time) error
}

// RunResult is the synchronous outcome returned to a manual trigger.
type RunResult struct {
	RunID            string         `json:"runId"`
	Status           history.Status `json:"status"`
	TotalRecords     int            `json:"totalRecords"`
	PerKeywordCounts map[string]int `json:"perKeywordCounts,omitempty"`
	Filename         string         `json:"filename,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
}

type Engine struct {
	keywords KeywordLister
	cfg      ConfigStore
	coll     *collector.Collector
	store    *artifact.Store
	hist     history.Repository

	// runMu is the single-flight guard around the whole pipeline body:
	// keyword snapshot, aggregation, artifact write, history append and
	// last-run update all happen under it.
	runMu sync.Mutex

	mu       sync.Mutex // guards the timer and run-state fields below
	cron     *cron.Cron
	baseCtx  context.Context // lifecycle context for timer-fired runs, set at Start
	entryID  cron.EntryID
	started  bool
	interval int
	lastRun  time.Time
	hasLast  bool
}

func New(keywords KeywordLister, cfg ConfigStore, coll *collector.Collector, store *artifact.Store, hist history.Repository) *Engine {
	return &Engine{
		keywords: keywords,
		cfg:      cfg,
		coll:     coll,
		store:    store,
		hist:     hist,
		cron:     cron.New(),
	}
}

// Start arms the periodic timer. Calling it again while running is a no-op.
// The last-run timestamp is restored from the config store so it survives
// restarts. ctx is the engine's lifecycle context: every timer-fired run
// uses it, no matter who rearms the timer later.
func (e *Engine) Start(ctx context.Context, intervalHours int) error {
	if err := validateInterval(intervalHours); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		slog.Info("scheduler already started", "intervalHours", e.interval)
		return nil
	}

	if t, err := e.cfg.LastRunTime(ctx); err != nil {
		slog.Error("load last run time", "error", err)
	} else if !t.IsZero() {
		e.lastRun = t
		e.hasLast = true
	}

	if e.entryID != 0 {
		e.cron.Remove(e.entryID)
	}
	e.baseCtx = ctx
	id, err := e.cron.AddFunc(cronSpec(intervalHours), func() { e.timerFire(ctx) })
	if err != nil {
		return fmt.Errorf("schedule collection: %w", err)
	}
	e.entryID = id
	e.interval = intervalHours
	e.cron.Start()
	e.started = true

	slog.Info("scheduler started", "intervalHours", intervalHours)
	return nil
}

// Stop cancels future fires and waits for a timer-driven run in flight to
// finish. It never interrupts a running pipeline.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	c := e.cron
	e.mu.Unlock()

	<-c.Stop().Done()
	slog.Info("scheduler stopped")
}

// Reconfigure validates and persists a new interval, then atomically swaps
// the timer: the old entry is removed before the new one is armed, so there
// is no window in which both can fire. The change applies to the next fire.
func (e *Engine) Reconfigure(ctx context.Context, hours int) error {
	if err := validateInterval(hours); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.cfg.SaveInterval(ctx, hours); err != nil {
		return fmt.Errorf("save interval: %w", err)
	}

	if e.started {
		// The replacement entry keeps running on the engine's lifecycle
		// context, not on ctx: the caller here is typically an HTTP
		// request whose context dies when the response is written.
		base := e.baseCtx
		e.cron.Remove(e.entryID)
		id, err := e.cron.AddFunc(cronSpec(hours), func() { e.timerFire(base) })
		if err != nil {
			return fmt.Errorf("reschedule collection: %w", err)
		}
		e.entryID = id
	}
	e.interval = hours

	slog.Info("schedule reconfigured", "intervalHours", hours)
	return nil
}

// TriggerNow runs the collection pipeline immediately and synchronously.
// If a run is already in flight the call is rejected, never queued.
func (e *Engine) TriggerNow(ctx context.Context) (*RunResult, error) {
	if !e.runMu.TryLock() {
		return nil, apperror.New(apperror.Conflict, "a collection run is already in progress")
	}
	defer e.runMu.Unlock()

	return e.run(ctx), nil
}

// Interval returns the currently configured interval in hours.
func (e *Engine) Interval() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.interval
}

// NextRunTime reports the next scheduled fire. The second return is false
// before Start has been called.
func (e *Engine) NextRunTime() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return time.Time{}, false
	}
	next := e.cron.Entry(e.entryID).Next
	if next.IsZero() {
		return time.Time{}, false
	}
	return next, true
}

// LastRunTime reports when the most recent run completed, regardless of its
// outcome. The second return is false when no run has completed yet.
func (e *Engine) LastRunTime() (time.Time, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastRun, e.hasLast
}

// timerFire is the periodic entry point. A fire that lands while another
// run holds the guard is skipped; the next fire happens on the original
// schedule.
func (e *Engine) timerFire(ctx context.Context) {
	if !e.runMu.TryLock() {
		slog.Warn("collection already in flight, skipping scheduled run")
		return
	}
	defer e.runMu.Unlock()

	res := e.run(ctx)
	slog.Info("scheduled collection finished", "runId", res.RunID, "status", res.Status)
}

// run executes one collection pipeline. Callers must hold runMu. Every
// attempt, including degenerate ones, produces a history entry and updates
// the last-run timestamp; no failure here may crash the engine.
func (e *Engine) run(ctx context.Context) *RunResult {
	runID := uuid.NewString()
	started := time.Now().UTC()
	slog.Info("collection run started", "runId", runID)

	res := &RunResult{RunID: runID, Timestamp: started}
	entry := history.Entry{RunID: runID, Timestamp: started}

	keywords, err := e.keywords.List(ctx)
	switch {
	case err != nil:
		res.Status = history.StatusError
		entry.Error = fmt.Sprintf("load keywords: %v", err)
		slog.Error("collection run failed", "runId", runID, "error", err)

	case len(keywords) == 0:
		res.Status = history.StatusSkipped
		slog.Info("no keywords configured, skipping collection", "runId", runID)

	default:
		entry.Keywords = keywords
		entry.KeywordCount = len(keywords)
		res.Status = e.collect(ctx, runID, keywords, res, &entry)
	}

	entry.Status = res.Status
	if err := e.hist.Append(ctx, entry); err != nil {
		slog.Error("append run history", "runId", runID, "error", err)
	}

	e.finishRun(ctx, time.Now().UTC())
	return res
}

// collect performs the aggregation and persistence steps and returns the
// run status.
func (e *Engine) collect(ctx context.Context, runID string, keywords []string, res *RunResult, entry *history.Entry) history.Status {
	batch := e.coll.Collect(ctx, keywords)
	if batch.Empty() {
		slog.Warn("no records found for any keyword", "runId", runID, "keywords", keywords)
		return history.StatusWarning
	}

	filename, err := e.store.Write(batch)
	if err != nil {
		entry.Error = fmt.Sprintf("write artifact: %v", err)
		slog.Error("collection run failed", "runId", runID, "error", err)
		return history.StatusError
	}

	if deleted := e.store.Sweep(); deleted > 0 {
		slog.Info("retention sweep complete", "runId", runID, "deleted", deleted)
	}

	res.TotalRecords = len(batch.Records)
	res.PerKeywordCounts = batch.PerKeywordCounts()
	res.Filename = filename
	entry.TotalRecords = len(batch.Records)
	entry.Filename = filename
	return history.StatusSuccess
}

func (e *Engine) finishRun(ctx context.Context, completed time.Time) {
	e.mu.Lock()
	e.lastRun = completed
	e.hasLast = true
	e.mu.Unlock()

	if err := e.cfg.SaveLastRunTime(ctx, completed); err != nil {
		slog.Error("save last run time", "error", err)
	}
}

func cronSpec(hours int) string {
	return fmt.Sprintf("@every %dh", hours)
}

func validateInterval(hours int) error {
	if hours < MinIntervalHours || hours > MaxIntervalHours {
		return apperror.New(apperror.BadRequest,
			fmt.Sprintf("interval must be between %d and %d hours", MinIntervalHours, MaxIntervalHours))
	}
	return nil
}
