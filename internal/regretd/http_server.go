package regretd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/regretlab/adversary-sim/internal/report"
	"github.com/regretlab/adversary-sim/pkg/logger"
	"github.com/regretlab/adversary-sim/pkg/models"
)

type HTTPServer struct {
	mux      *http.ServeMux
	store    *RunStore
	Executor *RunExecutor
}

func NewHTTPServer(store *RunStore, executor *RunExecutor) *HTTPServer {
	s := &HTTPServer{
		mux:      http.NewServeMux(),
		store:    store,
		Executor: executor,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/runs", s.handleRuns)
	s.mux.HandleFunc("/v1/runs/", s.handleRunByID)

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRuns handles /v1/runs
func (s *HTTPServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleRunByID handles /v1/runs/{id} and related endpoints
func (s *HTTPServer) handleRunByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "run ID is required")
		return
	}

	type route struct {
		suffix  string
		method  string
		handler func(http.ResponseWriter, *http.Request, string)
	}
	routes := []route{
		{":start", http.MethodPost, s.handleStartRun},
		{":stop", http.MethodPost, s.handleStopRun},
		{"/result", http.MethodGet, s.handleGetResult},
		{"/charts", http.MethodGet, s.handleGetCharts},
		{"/export.csv", http.MethodGet, s.handleExportCSV},
		{"/export", http.MethodGet, s.handleExportRun},
		{"/events", http.MethodGet, s.handleEvents},
	}

	for _, rt := range routes {
		if strings.HasSuffix(path, rt.suffix) {
			runID := strings.TrimSuffix(path, rt.suffix)
			if r.Method != rt.method {
				s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
				return
			}
			rt.handler(w, r, runID)
			return
		}
	}

	if r.Method == http.MethodGet {
		s.handleGetRun(w, r, path)
	} else {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleCreateRun handles POST /v1/runs
func (s *HTTPServer) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RunID string           `json:"run_id,omitempty"`
		Input *models.RunInput `json:"input"`
		Start bool             `json:"start,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if req.Input == nil {
		s.writeError(w, http.StatusBadRequest, "input is required")
		return
	}
	// Reject unusable inputs before a run record exists.
	if _, err := CasesFromInput(req.Input); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.store.Create(req.RunID, req.Input)
	if err != nil {
		switch {
		case strings.Contains(err.Error(), "already exists"):
			s.writeError(w, http.StatusConflict, err.Error())
		case strings.Contains(err.Error(), "cannot contain"):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	logger.Info("run created", "run_id", rec.Run.ID)

	if req.Start {
		rec, err = s.Executor.Start(rec.Run.ID)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	s.writeJSON(w, http.StatusCreated, map[string]any{
		"run": rec.Run,
	})
}

// handleListRuns handles GET /v1/runs with pagination and filtering
func (s *HTTPServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > 1000 {
				limit = 1000
			}
		}
	}

	offset := 0
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	status := models.RunStatusUnspecified
	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status = models.ParseRunStatus(statusStr)
	}

	recs := s.store.ListFiltered(limit, offset, status)
	runs := make([]*models.Run, 0, len(recs))
	for _, rec := range recs {
		runs = append(runs, rec.Run)
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"runs": runs,
		"pagination": map[string]any{
			"limit":  limit,
			"offset": offset,
			"count":  len(runs),
		},
	})
}

// handleGetRun handles GET /v1/runs/{id}
func (s *HTTPServer) handleGetRun(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	resp := map[string]any{
		"run": rec.Run,
	}
	if rec.Progress != nil {
		resp["progress"] = rec.Progress
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleStartRun handles POST /v1/runs/{id}:start
func (s *HTTPServer) handleStartRun(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, err := s.Executor.Start(runID)
	if err != nil {
		s.writeExecutorError(w, err)
		return
	}

	logger.Info("run started", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": rec.Run,
	})
}

// handleStopRun handles POST /v1/runs/{id}:stop
func (s *HTTPServer) handleStopRun(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, err := s.Executor.Stop(runID)
	if err != nil {
		s.writeExecutorError(w, err)
		return
	}

	logger.Info("run stopped", "run_id", runID)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"run": rec.Run,
	})
}

// handleGetResult handles GET /v1/runs/{id}/result
func (s *HTTPServer) handleGetResult(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if rec.Result == nil {
		s.writeError(w, http.StatusPreconditionFailed, "result not available")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"result": rec.Result,
	})
}

// handleGetCharts handles GET /v1/runs/{id}/charts.
// An optional ?case= selects one case by name; without it every case's
// payloads are returned.
func (s *HTTPServer) handleGetCharts(w http.ResponseWriter, r *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if rec.Result == nil {
		s.writeError(w, http.StatusPreconditionFailed, "result not available")
		return
	}

	caseName := r.URL.Query().Get("case")
	charts := make([]*report.CaseCharts, 0, len(rec.Result.Cases))
	for _, c := range rec.Result.Cases {
		if caseName != "" && c.Name != caseName {
			continue
		}
		charts = append(charts, report.Charts(c))
	}
	if caseName != "" && len(charts) == 0 {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("case not found: %s", caseName))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"run_id": runID,
		"charts": charts,
	})
}

// handleExportRun handles GET /v1/runs/{id}/export
func (s *HTTPServer) handleExportRun(w http.ResponseWriter, _ *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	export := map[string]any{
		"run": rec.Run,
	}
	if rec.Input != nil {
		export["input"] = rec.Input
	}
	if rec.Result != nil {
		export["result"] = rec.Result
		charts := make([]*report.CaseCharts, 0, len(rec.Result.Cases))
		for _, c := range rec.Result.Cases {
			charts = append(charts, report.Charts(c))
		}
		export["charts"] = charts
	}

	s.writeJSON(w, http.StatusOK, export)
}

// handleExportCSV handles GET /v1/runs/{id}/export.csv.
// The ?case= parameter selects a case; it defaults to the first one.
func (s *HTTPServer) handleExportCSV(w http.ResponseWriter, r *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if rec.Result == nil || len(rec.Result.Cases) == 0 {
		s.writeError(w, http.StatusPreconditionFailed, "result not available")
		return
	}

	selected := rec.Result.Cases[0]
	if caseName := r.URL.Query().Get("case"); caseName != "" {
		found := false
		for _, c := range rec.Result.Cases {
			if c.Name == caseName {
				selected = c
				found = true
				break
			}
		}
		if !found {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("case not found: %s", caseName))
			return
		}
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", runID+"-"+selected.Name+".csv"))
	if err := report.WriteCaseCSV(w, selected); err != nil {
		logger.Error("failed to write csv export", "run_id", runID, "error", err)
	}
}

// handleEvents handles GET /v1/runs/{id}/events (SSE)
func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request, runID string) {
	rec, ok := s.store.Get(runID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	interval := 250 * time.Millisecond
	if intervalStr := r.URL.Query().Get("interval_ms"); intervalStr != "" {
		if intervalMs, err := strconv.ParseInt(intervalStr, 10, 64); err == nil && intervalMs > 0 {
			interval = time.Duration(intervalMs) * time.Millisecond
		}
	}

	previousStatus := rec.Run.Status
	s.sendSSEEvent(w, "status_change", map[string]any{
		"status": string(rec.Run.Status),
	})
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
	if previousStatus.Terminal() {
		s.sendSSEEvent(w, "complete", map[string]any{
			"status": string(previousStatus),
		})
		return
	}

	var lastProgress models.Progress

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rec, ok := s.store.Get(runID)
			if !ok {
				s.sendSSEEvent(w, "error", map[string]any{"error": "run not found"})
				return
			}

			if rec.Progress != nil && *rec.Progress != lastProgress {
				lastProgress = *rec.Progress
				s.sendSSEEvent(w, "progress", map[string]any{
					"cases_total": lastProgress.CasesTotal,
					"cases_done":  lastProgress.CasesDone,
					"current":     lastProgress.Current,
				})
			}

			if rec.Run.Status != previousStatus {
				previousStatus = rec.Run.Status
				s.sendSSEEvent(w, "status_change", map[string]any{
					"status": string(previousStatus),
				})
				if previousStatus.Terminal() {
					s.sendSSEEvent(w, "complete", map[string]any{
						"status": string(previousStatus),
					})
					if flusher, ok := w.(http.Flusher); ok {
						flusher.Flush()
					}
					return
				}
			}

			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

// sendSSEEvent sends a Server-Sent Event
func (s *HTTPServer) sendSSEEvent(w http.ResponseWriter, eventType string, data map[string]any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		logger.Error("failed to marshal SSE event data", "error", err)
		return
	}

	// Errors are logged but not returned; SSE streams are best-effort.
	if _, err := w.Write([]byte("event: " + eventType + "\n")); err != nil {
		logger.Error("failed to write SSE event header", "error", err)
		return
	}
	if _, err := w.Write([]byte("data: " + string(jsonData) + "\n\n")); err != nil {
		logger.Error("failed to write SSE event data", "error", err)
	}
}

func (s *HTTPServer) writeExecutorError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRunNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrRunIDMissing):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrRunTerminal):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}
