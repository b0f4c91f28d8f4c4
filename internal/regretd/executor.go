package regretd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/regretlab/adversary-sim/pkg/logger"
	"github.com/regretlab/adversary-sim/pkg/models"
)

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrRunTerminal  = errors.New("run is terminal")
	ErrRunIDMissing = errors.New("run_id is required")
)

// RunExecutor manages asynchronous run execution and per-run cancellation.
type RunExecutor struct {
	store    *RunStore
	notifier *Notifier

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	done    map[string]chan struct{} // closed when the run goroutine exits
}

func NewRunExecutor(store *RunStore) *RunExecutor {
	return &RunExecutor{
		store:    store,
		notifier: NewNotifier(),
		cancels:  make(map[string]context.CancelFunc),
		done:     make(map[string]chan struct{}),
	}
}

// Start begins executing a run asynchronously.
// Returns the updated run state (running) or an error.
func (e *RunExecutor) Start(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	rec, ok := e.store.Get(runID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	switch {
	case rec.Run.Status == models.RunStatusRunning:
		return rec, nil
	case rec.Run.Status.Terminal():
		return nil, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}

	updated, err := e.store.SetStatus(runID, models.RunStatusRunning, "")
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan struct{})
	e.mu.Lock()
	if old, exists := e.cancels[runID]; exists {
		old()
	}
	e.cancels[runID] = cancel
	e.done[runID] = doneCh
	e.mu.Unlock()

	go func() {
		defer close(doneCh)
		e.runSweep(ctx, runID)
	}()
	return updated, nil
}

// Stop requests cancellation for a running run and marks it cancelled.
func (e *RunExecutor) Stop(runID string) (*RunRecord, error) {
	if runID == "" {
		return nil, ErrRunIDMissing
	}

	e.mu.Lock()
	cancel, ok := e.cancels[runID]
	doneCh := e.done[runID]
	e.mu.Unlock()

	if ok {
		cancel()
		if doneCh != nil {
			<-doneCh
		}
	}

	rec, found := e.store.Get(runID)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if rec.Run.Status.Terminal() {
		return rec, nil
	}
	return e.store.SetStatus(runID, models.RunStatusCancelled, "")
}

// Wait blocks until the run's goroutine has exited. It returns
// immediately for runs that never started.
func (e *RunExecutor) Wait(runID string) {
	e.mu.Lock()
	doneCh := e.done[runID]
	e.mu.Unlock()
	if doneCh != nil {
		<-doneCh
	}
}

func (e *RunExecutor) cleanup(runID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[runID]; ok {
		cancel()
		delete(e.cancels, runID)
	}
	e.mu.Unlock()
}

func (e *RunExecutor) runSweep(ctx context.Context, runID string) {
	defer e.cleanup(runID)

	rec, ok := e.store.Get(runID)
	if !ok {
		return
	}
	input := rec.Input

	specs, err := CasesFromInput(input)
	if err != nil {
		e.finish(runID, models.RunStatusFailed, err.Error())
		return
	}

	results := make([]models.CaseResult, 0, len(specs))
	for i, spec := range specs {
		select {
		case <-ctx.Done():
			e.finish(runID, models.RunStatusCancelled, "")
			return
		default:
		}

		e.store.SetProgress(runID, models.Progress{
			CasesTotal: len(specs),
			CasesDone:  i,
			Current:    spec.Name,
		})

		caseResult, err := ExecuteCase(spec)
		if err != nil {
			e.finish(runID, models.RunStatusFailed, err.Error())
			return
		}
		logger.Debug("case executed",
			"run_id", runID,
			"case", spec.Name,
			"greedy_loss", caseResult.GreedyLoss,
			"bound", caseResult.Bound)
		results = append(results, caseResult)
	}

	e.store.SetProgress(runID, models.Progress{
		CasesTotal: len(specs),
		CasesDone:  len(specs),
	})

	if err := e.store.SetResult(runID, Aggregate(results)); err != nil {
		logger.Error("failed to store run result", "run_id", runID, "error", err)
	}
	e.finish(runID, models.RunStatusCompleted, "")
}

func (e *RunExecutor) finish(runID string, status models.RunStatus, errMsg string) {
	rec, err := e.store.SetStatus(runID, status, errMsg)
	if err != nil {
		logger.Error("failed to set run status", "run_id", runID, "status", status, "error", err)
		return
	}
	logger.Info("run finished", "run_id", runID, "status", status)

	if rec.Input != nil && rec.Input.CallbackURL != "" {
		e.notifier.Notify(rec.Input.CallbackURL, rec)
	}
}
