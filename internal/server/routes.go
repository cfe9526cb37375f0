package server

import (
	"net/http"

	"github.com/mattanmr/job-posting-aggregator/internal/artifact"
	"github.com/mattanmr/job-posting-aggregator/internal/history"
	"github.com/mattanmr/job-posting-aggregator/internal/keyword"
	"github.com/mattanmr/job-posting-aggregator/internal/scheduler"
	"github.com/mattanmr/job-posting-aggregator/internal/search"
)

// Deps carries everything the HTTP layer needs.
type Deps struct {
	Keywords *keyword.Service
	Search   *search.Service
	Engine   *scheduler.Engine
	Store    *artifact.Store
	History  history.Repository
}

// NewHandler creates the full HTTP handler with routes and middleware.
// Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(deps Deps) http.Handler {
	return newMux(deps)
}

func newMux(deps Deps) http.Handler {
	h := &handler{
		keywordSvc: deps.Keywords,
		searchSvc:  deps.Search,
		engine:     deps.Engine,
		store:      deps.Store,
		hist:       deps.History,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /api/v1/search", h.search)
	mux.HandleFunc("GET /api/v1/keywords", h.listKeywords)
	mux.HandleFunc("POST /api/v1/keywords", h.addKeyword)
	mux.HandleFunc("DELETE /api/v1/keywords/{keyword}", h.removeKeyword)
	mux.HandleFunc("GET /api/v1/schedule", h.getSchedule)
	mux.HandleFunc("PUT /api/v1/schedule", h.putSchedule)
	mux.HandleFunc("POST /api/v1/collect", h.collectNow)
	mux.HandleFunc("GET /api/v1/artifacts", h.listArtifacts)
	mux.HandleFunc("GET /api/v1/artifacts/{filename}", h.downloadArtifact)
	mux.HandleFunc("GET /api/v1/history", h.listHistory)

	// Apply middleware stack: recovery -> requestID -> logging
	var handler http.Handler = mux
	handler = logging(handler)
	handler = requestID(handler)
	handler = recovery(handler)

	return handler
}
