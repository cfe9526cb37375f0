package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattanmr/job-posting-aggregator/internal/artifact"
	"github.com/mattanmr/job-posting-aggregator/internal/collector"
	"github.com/mattanmr/job-posting-aggregator/internal/config"
	"github.com/mattanmr/job-posting-aggregator/internal/keyword"
	"github.com/mattanmr/job-posting-aggregator/internal/platform/sqlite"
	historyrepo "github.com/mattanmr/job-posting-aggregator/internal/repository/history"
	keywordrepo "github.com/mattanmr/job-posting-aggregator/internal/repository/keyword"
	schedulerepo "github.com/mattanmr/job-posting-aggregator/internal/repository/schedule"
	"github.com/mattanmr/job-posting-aggregator/internal/scheduler"
	"github.com/mattanmr/job-posting-aggregator/internal/search"
	"github.com/mattanmr/job-posting-aggregator/internal/server"
	"github.com/mattanmr/job-posting-aggregator/internal/source"
	"github.com/mattanmr/job-posting-aggregator/internal/source/serpapi"
	"github.com/mattanmr/job-posting-aggregator/internal/source/static"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Root context: cancelled on SIGINT/SIGTERM so in-flight source queries
	// stop promptly during graceful shutdown.
	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	db, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	// Repositories
	kwRepo := keywordrepo.NewRepository(db.DB)
	schedRepo := schedulerepo.NewRepository(db.DB)
	histRepo := historyrepo.NewRepository(db.DB)

	// Sources, primary first. The static source answers when nothing
	// upstream does.
	sources := []source.Source{
		serpapi.New(serpapi.WithAPIKey(cfg.SerpAPIKey)),
		static.New(),
	}
	if cfg.SerpAPIKey == "" {
		slog.Warn("SERPAPI_KEY not set, collection will rely on the static source")
	}

	store, err := artifact.NewStore(cfg.ArtifactDir)
	if err != nil {
		slog.Error("failed to open artifact store", "error", err)
		os.Exit(1)
	}
	// Catch up on retention for artifacts accumulated while down.
	if deleted := store.Sweep(); deleted > 0 {
		slog.Info("startup retention sweep", "deleted", deleted)
	}

	coll := collector.New(sources, collector.WithWorkers(cfg.Workers))

	// Services
	kwSvc := keyword.NewService(kwRepo)
	searchSvc := search.NewService(sources)
	engine := scheduler.New(kwRepo, schedRepo, coll, store, histRepo)

	// The persisted interval wins over config so operator changes made via
	// the API survive restarts.
	interval := cfg.IntervalHours
	if saved, err := schedRepo.Interval(rootCtx); err != nil {
		slog.Error("failed to load saved interval", "error", err)
	} else if saved > 0 {
		interval = saved
	}
	if err := engine.Start(rootCtx, interval); err != nil {
		slog.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	// HTTP server — rootCtx is used as BaseContext so every request context
	// inherits from it and is cancelled on shutdown.
	srv := server.New(rootCtx, cfg.Port, server.Deps{
		Keywords: kwSvc,
		Search:   searchSvc,
		Engine:   engine,
		Store:    store,
		History:  histRepo,
	})

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("server started", "port", cfg.Port, "intervalHours", interval)
	<-done

	// Stop the timer and wait for a scheduled run in flight before tearing
	// anything else down.
	engine.Stop()
	rootCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("server stopped")
}
