package regretd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/regretlab/adversary-sim/pkg/models"
)

func newTestServer(t *testing.T) (*HTTPServer, *RunStore) {
	t.Helper()
	store := NewRunStore()
	executor := NewRunExecutor(store)
	return NewHTTPServer(store, executor), store
}

func doJSON(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	var decoded map[string]any
	if rr.Body.Len() > 0 && strings.Contains(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
		}
	}
	return rr, decoded
}

func waitForHTTPStatus(t *testing.T, store *RunStore, runID string, want models.RunStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if rec, ok := store.Get(runID); ok && rec.Run.Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("run %s never reached status %s", runID, want)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rr, body := doJSON(t, srv.Handler(), http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
}

func TestCreateRun(t *testing.T) {
	srv, _ := newTestServer(t)

	rr, body := doJSON(t, srv.Handler(), http.MethodPost, "/v1/runs",
		`{"run_id":"run-1","input":{"case":{"actions":3,"increments":2,"include_trailing":true}}}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	run := body["run"].(map[string]any)
	if run["id"] != "run-1" {
		t.Fatalf("expected run id run-1, got %v", run["id"])
	}
	if run["status"] != "pending" {
		t.Fatalf("expected pending status, got %v", run["status"])
	}
}

func TestCreateRunValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing input", `{}`, http.StatusBadRequest},
		{"invalid body", `{not json`, http.StatusBadRequest},
		{"empty input", `{"input":{}}`, http.StatusBadRequest},
		{"bad case", `{"input":{"case":{"actions":1,"increments":1}}}`, http.StatusBadRequest},
		{"bad run id", `{"run_id":"a/b","input":{"case":{"actions":3,"increments":1}}}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, _ := doJSON(t, srv.Handler(), http.MethodPost, "/v1/runs", tt.body)
			if rr.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, rr.Code, rr.Body.String())
			}
		})
	}

	// Wrong case validation happens before run creation: bad inputs must
	// not leave a pending run behind.
	rr, body := doJSON(t, srv.Handler(), http.MethodGet, "/v1/runs", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if runs := body["runs"].([]any); len(runs) != 0 {
		t.Fatalf("expected no runs, got %d", len(runs))
	}
}

func TestCreateRunConflict(t *testing.T) {
	srv, _ := newTestServer(t)

	payload := `{"run_id":"dup","input":{"case":{"actions":3,"increments":1}}}`
	if rr, _ := doJSON(t, srv.Handler(), http.MethodPost, "/v1/runs", payload); rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if rr, _ := doJSON(t, srv.Handler(), http.MethodPost, "/v1/runs", payload); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestStartAndGetResult(t *testing.T) {
	srv, store := newTestServer(t)

	doJSON(t, srv.Handler(), http.MethodPost, "/v1/runs",
		`{"run_id":"run-1","input":{"case":{"name":"demo","actions":3,"increments":2,"include_trailing":true}}}`)

	rr, _ := doJSON(t, srv.Handler(), http.MethodPost, "/v1/runs/run-1:start", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	waitForHTTPStatus(t, store, "run-1", models.RunStatusCompleted)

	rr, body := doJSON(t, srv.Handler(), http.MethodGet, "/v1/runs/run-1/result", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	result := body["result"].(map[string]any)
	cases := result["cases"].([]any)
	if len(cases) != 1 {
		t.Fatalf("expected 1 case, got %d", len(cases))
	}
	c := cases[0].(map[string]any)
	if c["greedy_loss"] != float64(8) || c["bound"] != float64(8) {
		t.Fatalf("unexpected case payload: %v", c)
	}
	if c["bound_attained"] != true {
		t.Fatalf("expected bound attained")
	}
}

func TestCreateRunWithAutoStart(t *testing.T) {
	srv, store := newTestServer(t)

	rr, _ := doJSON(t, srv.Handler(), http.MethodPost, "/v1/runs",
		`{"run_id":"auto","input":{"case":{"actions":4,"increments":1}},"start":true}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	waitForHTTPStatus(t, store, "auto", models.RunStatusCompleted)
}

func TestResultNotReady(t *testing.T) {
	srv, _ := newTestServer(t)

	doJSON(t, srv.Handler(), http.MethodPost, "/v1/runs",
		`{"run_id":"run-1","input":{"case":{"actions":3,"increments":1}}}`)

	rr, _ := doJSON(t, srv.Handler(), http.MethodGet, "/v1/runs/run-1/result", "")
	if rr.Code != http.StatusPreconditionFailed {
		t.Fatalf("expected 412, got %d", rr.Code)
	}
}

func TestGetRunNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	rr, _ := doJSON(t, srv.Handler(), http.MethodGet, "/v1/runs/missing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestStartUnknownRun(t *testing.T) {
	srv, _ := newTestServer(t)
	rr, _ := doJSON(t, srv.Handler(), http.MethodPost, "/v1/runs/missing:start", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodDelete, "/v1/runs"},
		{http.MethodGet, "/v1/runs/x:start"},
		{http.MethodPost, "/v1/runs/x/result"},
		{http.MethodPut, "/v1/runs/x"},
	}
	for _, p := range paths {
		rr, _ := doJSON(t, srv.Handler(), p.method, p.path, "")
		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s %s: expected 405, got %d", p.method, p.path, rr.Code)
		}
	}
}

func TestListRunsPagination(t *testing.T) {
	srv, store := newTestServer(t)
	for _, id := range []string{"a", "b", "c"} {
		if _, err := store.Create(id, singleCaseInput()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	rr, body := doJSON(t, srv.Handler(), http.MethodGet, "/v1/runs?limit=2", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if runs := body["runs"].([]any); len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	pagination := body["pagination"].(map[string]any)
	if pagination["limit"] != float64(2) || pagination["count"] != float64(2) {
		t.Fatalf("unexpected pagination: %v", pagination)
	}

	_, body = doJSON(t, srv.Handler(), http.MethodGet, "/v1/runs?status=running", "")
	if runs := body["runs"].([]any); len(runs) != 0 {
		t.Fatalf("expected no running runs, got %d", len(runs))
	}
}

func TestGetCharts(t *testing.T) {
	srv, store := newTestServer(t)

	doJSON(t, srv.Handler(), http.MethodPost, "/v1/runs",
		`{"run_id":"run-1","input":{"case":{"name":"demo","actions":3,"increments":2}},"start":true}`)
	waitForHTTPStatus(t, store, "run-1", models.RunStatusCompleted)

	rr, body := doJSON(t, srv.Handler(), http.MethodGet, "/v1/runs/run-1/charts", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	charts := body["charts"].([]any)
	if len(charts) != 1 {
		t.Fatalf("expected 1 chart bundle, got %d", len(charts))
	}
	bundle := charts[0].(map[string]any)
	bar := bundle["bar"].(map[string]any)
	values := bar["values"].([]any)
	if len(values) != 4 { // 3 actions + greedy
		t.Fatalf("expected 4 bars, got %d", len(values))
	}
	if values[3] != float64(8) {
		t.Fatalf("expected greedy bar 8, got %v", values[3])
	}

	rr, _ = doJSON(t, srv.Handler(), http.MethodGet, "/v1/runs/run-1/charts?case=nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown case, got %d", rr.Code)
	}
}

func TestExportRun(t *testing.T) {
	srv, store := newTestServer(t)

	doJSON(t, srv.Handler(), http.MethodPost, "/v1/runs",
		`{"run_id":"run-1","input":{"case":{"name":"demo","actions":3,"increments":2}},"start":true}`)
	waitForHTTPStatus(t, store, "run-1", models.RunStatusCompleted)

	rr, body := doJSON(t, srv.Handler(), http.MethodGet, "/v1/runs/run-1/export", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	for _, key := range []string{"run", "input", "result", "charts"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("expected export to contain %q", key)
		}
	}
}

func TestExportCSV(t *testing.T) {
	srv, store := newTestServer(t)

	doJSON(t, srv.Handler(), http.MethodPost, "/v1/runs",
		`{"run_id":"run-1","input":{"case":{"name":"demo","actions":3,"increments":2}},"start":true}`)
	waitForHTTPStatus(t, store, "run-1", models.RunStatusCompleted)

	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run-1/export.csv", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("expected text/csv, got %s", ct)
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 10 { // header + zero state + 8 rounds
		t.Fatalf("expected 10 csv lines, got %d", len(lines))
	}
}

func TestEventsStream(t *testing.T) {
	srv, store := newTestServer(t)

	doJSON(t, srv.Handler(), http.MethodPost, "/v1/runs",
		`{"run_id":"run-1","input":{"case":{"actions":3,"increments":1}},"start":true}`)
	waitForHTTPStatus(t, store, "run-1", models.RunStatusCompleted)

	// The run is terminal; the stream reports the status and completes.
	req := httptest.NewRequest(http.MethodGet, "/v1/runs/run-1/events", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	out := rr.Body.String()
	if !strings.Contains(out, "event: status_change") {
		t.Fatalf("expected status_change event, got: %s", out)
	}
	if !strings.Contains(out, "event: complete") {
		t.Fatalf("expected complete event, got: %s", out)
	}
	if !strings.Contains(out, `"status":"completed"`) {
		t.Fatalf("expected completed status in stream, got: %s", out)
	}
}
