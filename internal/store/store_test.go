package store

import (
	"path/filepath"
	"testing"

	"github.com/regretlab/adversary-sim/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id string) (models.Run, *models.RunInput, *models.RunResult) {
	run := models.Run{
		ID:              id,
		Status:          models.RunStatusCompleted,
		CreatedAtUnixMs: 1000,
		StartedAtUnixMs: 1001,
		EndedAtUnixMs:   1002,
	}
	input := &models.RunInput{
		Case: &models.CaseSpec{Name: "demo", Actions: 3, Increments: 2},
	}
	result := &models.RunResult{
		Cases: []models.CaseResult{{
			Name: "demo", Actions: 3, Increments: 2, IncludeTrailing: true,
			Rounds: 8, FinalLosses: []float64{3, 3, 2}, MinLoss: 2,
			GreedyLoss: 8, Bound: 8, Regret: 6, BoundAttained: true,
		}},
		WorstCase:   "demo",
		WorstRegret: 6,
		AllAttained: true,
	}
	return run, input, result
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTestStore(t)

	run, input, result := sampleRun("run-1")
	if err := s.SaveRun(run, input, result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, ok, err := s.GetRun("run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected run to be found")
	}
	if rec.Run.Status != models.RunStatusCompleted {
		t.Fatalf("expected completed status, got %s", rec.Run.Status)
	}
	if rec.Input.Case == nil || rec.Input.Case.Actions != 3 {
		t.Fatalf("unexpected input: %+v", rec.Input)
	}
	if rec.Result == nil || len(rec.Result.Cases) != 1 {
		t.Fatalf("unexpected result: %+v", rec.Result)
	}
	if rec.Result.Cases[0].GreedyLoss != 8 {
		t.Fatalf("expected greedy loss 8, got %v", rec.Result.Cases[0].GreedyLoss)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := openTestStore(t)

	_, ok, err := s.GetRun("missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected run not to be found")
	}
}

func TestSaveRunUpsert(t *testing.T) {
	s := openTestStore(t)

	run, input, _ := sampleRun("run-1")
	run.Status = models.RunStatusRunning
	run.EndedAtUnixMs = 0
	if err := s.SaveRun(run, input, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	run.Status = models.RunStatusFailed
	run.EndedAtUnixMs = 2000
	run.Error = "matrix rejected"
	if err := s.SaveRun(run, input, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, ok, err := s.GetRun("run-1")
	if err != nil || !ok {
		t.Fatalf("expected run to be found, err=%v", err)
	}
	if rec.Run.Status != models.RunStatusFailed {
		t.Fatalf("expected failed status after upsert, got %s", rec.Run.Status)
	}
	if rec.Run.Error != "matrix rejected" {
		t.Fatalf("expected error message, got %q", rec.Run.Error)
	}
	if rec.Result != nil {
		t.Fatalf("expected no result for failed run")
	}
}

func TestListRunsOrdering(t *testing.T) {
	s := openTestStore(t)

	for i, id := range []string{"old", "mid", "new"} {
		run, input, _ := sampleRun(id)
		run.CreatedAtUnixMs = int64(1000 + i)
		if err := s.SaveRun(run, input, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	runs, err := s.ListRuns()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].Run.ID != "new" || runs[2].Run.ID != "old" {
		t.Fatalf("expected newest-first ordering, got %s..%s", runs[0].Run.ID, runs[2].Run.ID)
	}
}

func TestReopenPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runs.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	run, input, result := sampleRun("run-1")
	if err := s.SaveRun(run, input, result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer s2.Close()

	_, ok, err := s2.GetRun("run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected run to survive reopen")
	}
}
