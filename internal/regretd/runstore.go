package regretd

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/regretlab/adversary-sim/internal/store"
	"github.com/regretlab/adversary-sim/pkg/logger"
	"github.com/regretlab/adversary-sim/pkg/models"
)

// RunRecord is the in-memory state of one run.
type RunRecord struct {
	Run      *models.Run
	Input    *models.RunInput
	Result   *models.RunResult
	Progress *models.Progress
}

// RunStore keeps runs in memory, with optional write-through of terminal
// runs to a SQLite archive.
type RunStore struct {
	mu      sync.RWMutex
	runs    map[string]*RunRecord
	archive *store.Store
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*RunRecord),
	}
}

// WithArchive attaches a SQLite archive. Terminal status transitions are
// persisted there.
func (s *RunStore) WithArchive(archive *store.Store) *RunStore {
	s.archive = archive
	return s
}

// LoadArchived rehydrates archived runs into memory. Runs that were
// in-flight when the daemon stopped come back as failed; they cannot be
// resumed.
func (s *RunStore) LoadArchived() (int, error) {
	if s.archive == nil {
		return 0, nil
	}

	archived, err := s.archive.ListRuns()
	if err != nil {
		return 0, fmt.Errorf("load archived runs: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range archived {
		run := rec.Run
		if !run.Status.Terminal() {
			run.Status = models.RunStatusFailed
			run.Error = "daemon restarted while run was in flight"
		}
		s.runs[run.ID] = &RunRecord{
			Run:    &run,
			Input:  rec.Input,
			Result: rec.Result,
		}
	}
	return len(archived), nil
}

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

// Create registers a new pending run. An empty runID gets a generated one.
func (s *RunStore) Create(runID string, input *models.RunInput) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if runID == "" {
		runID = uuid.New().String()
	}
	if strings.ContainsAny(runID, "/:") {
		return nil, fmt.Errorf("run id cannot contain '/' or ':': %s", runID)
	}
	if _, exists := s.runs[runID]; exists {
		return nil, fmt.Errorf("run already exists: %s", runID)
	}

	rec := &RunRecord{
		Run: &models.Run{
			ID:              runID,
			Status:          models.RunStatusPending,
			CreatedAtUnixMs: nowUnixMs(),
		},
		Input: input,
	}
	s.runs[runID] = rec
	return rec, nil
}

func (s *RunStore) Get(runID string) (*RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.runs[runID]
	return rec, ok
}

// List returns up to limit runs, newest first.
func (s *RunStore) List(limit int) []*RunRecord {
	return s.ListFiltered(limit, 0, models.RunStatusUnspecified)
}

// ListFiltered returns runs newest first, optionally filtered by status,
// with offset-based pagination.
func (s *RunStore) ListFiltered(limit, offset int, status models.RunStatus) []*RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	all := make([]*RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		if status != models.RunStatusUnspecified && rec.Run.Status != status {
			continue
		}
		all = append(all, rec)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Run.CreatedAtUnixMs != all[j].Run.CreatedAtUnixMs {
			return all[i].Run.CreatedAtUnixMs > all[j].Run.CreatedAtUnixMs
		}
		return all[i].Run.ID < all[j].Run.ID
	})

	if offset >= len(all) {
		return nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

// SetStatus transitions a run's status, stamping start/end times and
// archiving terminal runs.
func (s *RunStore) SetStatus(runID string, status models.RunStatus, errMsg string) (*RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run not found: %s", runID)
	}

	rec.Run.Status = status
	if errMsg != "" {
		rec.Run.Error = errMsg
	}

	switch status {
	case models.RunStatusRunning:
		if rec.Run.StartedAtUnixMs == 0 {
			rec.Run.StartedAtUnixMs = nowUnixMs()
		}
	case models.RunStatusCompleted, models.RunStatusFailed, models.RunStatusCancelled:
		rec.Run.EndedAtUnixMs = nowUnixMs()
		s.archiveLocked(rec)
	}

	return rec, nil
}

// SetResult attaches a run result.
func (s *RunStore) SetResult(runID string, result *models.RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.runs[runID]
	if !ok {
		return fmt.Errorf("run not found: %s", runID)
	}
	rec.Result = result
	return nil
}

// SetProgress records sweep progress for streaming consumers.
func (s *RunStore) SetProgress(runID string, progress models.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.runs[runID]; ok {
		rec.Progress = &progress
	}
}

// archiveLocked persists a terminal run; callers hold s.mu.
func (s *RunStore) archiveLocked(rec *RunRecord) {
	if s.archive == nil {
		return
	}
	if err := s.archive.SaveRun(*rec.Run, rec.Input, rec.Result); err != nil {
		logger.Error("failed to archive run", "run_id", rec.Run.ID, "error", err)
	}
}
