package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/mattanmr/job-posting-aggregator/internal/apperror"
	"github.com/mattanmr/job-posting-aggregator/internal/artifact"
	"github.com/mattanmr/job-posting-aggregator/internal/history"
	"github.com/mattanmr/job-posting-aggregator/internal/keyword"
	"github.com/mattanmr/job-posting-aggregator/internal/scheduler"
	"github.com/mattanmr/job-posting-aggregator/internal/search"
)

const defaultHistoryLimit = 20

type handler struct {
	keywordSvc *keyword.Service
	searchSvc  *search.Service
	engine     *scheduler.Engine
	store      *artifact.Store
	hist       history.Repository
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) search(w http.ResponseWriter, r *http.Request) {
	records, err := h.searchSvc.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

type addKeywordRequest struct {
	Keyword string `json:"keyword"`
}

func (h *handler) addKeyword(w http.ResponseWriter, r *http.Request) {
	var req addKeywordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	added, err := h.keywordSvc.Add(r.Context(), req.Keyword)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"keyword": added})
}

func (h *handler) removeKeyword(w http.ResponseWriter, r *http.Request) {
	if err := h.keywordSvc.Remove(r.Context(), r.PathValue("keyword")); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"keyword": r.PathValue("keyword")})
}

func (h *handler) listKeywords(w http.ResponseWriter, r *http.Request) {
	keywords, err := h.keywordSvc.List(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	if keywords == nil {
		keywords = []string{}
	}
	writeJSON(w, http.StatusOK, keywords)
}

type scheduleResponse struct {
	IntervalHours int        `json:"intervalHours"`
	NextRun       *time.Time `json:"nextRun,omitempty"`
	LastRun       *time.Time `json:"lastRun,omitempty"`
}

func (h *handler) getSchedule(w http.ResponseWriter, _ *http.Request) {
	resp := scheduleResponse{IntervalHours: h.engine.Interval()}
	if next, ok := h.engine.NextRunTime(); ok {
		resp.NextRun = &next
	}
	if last, ok := h.engine.LastRunTime(); ok {
		resp.LastRun = &last
	}
	writeJSON(w, http.StatusOK, resp)
}

type putScheduleRequest struct {
	IntervalHours int `json:"intervalHours"`
}

func (h *handler) putSchedule(w http.ResponseWriter, r *http.Request) {
	var req putScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.engine.Reconfigure(r.Context(), req.IntervalHours); err != nil {
		writeAppError(w, err)
		return
	}
	h.getSchedule(w, r)
}

func (h *handler) collectNow(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.TriggerNow(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *handler) listArtifacts(w http.ResponseWriter, _ *http.Request) {
	metas, err := h.store.List()
	if err != nil {
		writeAppError(w, err)
		return
	}
	if metas == nil {
		metas = []artifact.Meta{}
	}
	writeJSON(w, http.StatusOK, metas)
}

func (h *handler) downloadArtifact(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	path, err := h.store.Resolve(filename)
	if err != nil {
		writeAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	http.ServeFile(w, r, path)
}

func (h *handler) listHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.hist.Recent(r.Context(), limit)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// writeAppError maps service errors to HTTP responses, falling back to 500
// for anything that is not an AppError.
func writeAppError(w http.ResponseWriter, err error) {
	var ae *apperror.AppError
	if errors.As(err, &ae) {
		writeError(w, ae.HTTPStatus(), ae.Message())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}
