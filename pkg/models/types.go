package models

// LossMatrix is an ordered sequence of rounds; each round assigns a
// non-negative loss to every action, indexed by action index.
type LossMatrix [][]float64

// Rounds returns the number of rounds in the matrix.
func (m LossMatrix) Rounds() int {
	return len(m)
}

// Actions returns the number of actions, taken from the first round.
// A simulator must still reject ragged matrices; this is a convenience
// accessor, not a validity check.
func (m LossMatrix) Actions() int {
	if len(m) == 0 {
		return 0
	}
	return len(m[0])
}

// RunStatus represents the status of an adversarial run
type RunStatus string

const (
	RunStatusUnspecified RunStatus = ""
	RunStatusPending     RunStatus = "pending"
	RunStatusRunning     RunStatus = "running"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusFailed      RunStatus = "failed"
	RunStatusCancelled   RunStatus = "cancelled"
)

// Terminal reports whether the status is a terminal state.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// ParseRunStatus parses a status string; unknown values map to unspecified.
func ParseRunStatus(s string) RunStatus {
	switch RunStatus(s) {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted,
		RunStatusFailed, RunStatusCancelled:
		return RunStatus(s)
	default:
		return RunStatusUnspecified
	}
}

// Run represents the lifecycle of one adversarial run
type Run struct {
	ID              string    `json:"id"`
	Status          RunStatus `json:"status"`
	CreatedAtUnixMs int64     `json:"created_at_unix_ms"`
	StartedAtUnixMs int64     `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64     `json:"ended_at_unix_ms,omitempty"`
	Error           string    `json:"error,omitempty"`
}

// CaseSpec describes one worst-case construction to build and replay
type CaseSpec struct {
	Name       string `json:"name,omitempty"`
	Actions    int    `json:"actions"`
	Increments int    `json:"increments"`

	// IncludeTrailing defaults to true when absent: the trailing phase
	// is what makes the greedy bound tight.
	IncludeTrailing *bool `json:"include_trailing,omitempty"`
}

// Trailing reports whether the trailing phase is enabled, defaulting
// to true when the field was omitted.
func (s CaseSpec) Trailing() bool {
	if s.IncludeTrailing == nil {
		return true
	}
	return *s.IncludeTrailing
}

// RunInput is the payload a run is created with. Exactly one of Case or
// SweepYAML must be set: Case runs a single construction, SweepYAML a
// batch of them.
type RunInput struct {
	Case        *CaseSpec `json:"case,omitempty"`
	SweepYAML   string    `json:"sweep_yaml,omitempty"`
	CallbackURL string    `json:"callback_url,omitempty"`
}

// CaseResult holds the full outcome of building and replaying one case
type CaseResult struct {
	Name            string `json:"name"`
	Actions         int    `json:"actions"`
	Increments      int    `json:"increments"`
	IncludeTrailing bool   `json:"include_trailing"`
	Rounds          int    `json:"rounds"`

	// FinalLosses[i] is action i's total loss over the horizon.
	FinalLosses []float64 `json:"final_losses"`
	MinLoss     float64   `json:"min_loss"`
	GreedyLoss  float64   `json:"greedy_loss"`

	Bound         float64 `json:"bound"`
	Regret        float64 `json:"regret"`
	BoundAttained bool    `json:"bound_attained"`

	// Choices[r] is the action greedy picked in round r.
	Choices []int `json:"choices"`

	// Trajectories include the initial all-zero state, so each has
	// length Rounds+1.
	ActionTrajectories [][]float64 `json:"action_trajectories"`
	GreedyTrajectory   []float64   `json:"greedy_trajectory"`
}

// RunResult aggregates the case results of one run
type RunResult struct {
	Cases []CaseResult `json:"cases"`

	// WorstCase names the case with the largest final regret.
	WorstCase   string  `json:"worst_case,omitempty"`
	WorstRegret float64 `json:"worst_regret"`

	// AllAttained is true when every case met its bound with equality.
	AllAttained bool `json:"all_attained"`
}

// Progress tracks sweep execution for streaming consumers
type Progress struct {
	CasesTotal int    `json:"cases_total"`
	CasesDone  int    `json:"cases_done"`
	Current    string `json:"current,omitempty"`
}
