// Package greedy replays a loss matrix under the deterministic greedy
// policy: each round pick the action with the lowest cumulative loss so
// far, breaking ties toward the lowest index.
package greedy

import (
	"errors"
	"fmt"

	"github.com/regretlab/adversary-sim/pkg/models"
)

// ErrMalformedMatrix is returned when a matrix violates the structural
// invariants of a simulation input.
var ErrMalformedMatrix = errors.New("malformed matrix")

// Result holds the trajectories produced by one simulation.
//
// ActionCumulative and GreedyCumulative include the initial all-zero
// state, so each has length Rounds()+1; index r+1 is the state after
// round r. Choices has one entry per round.
type Result struct {
	// ActionCumulative[i][t] is action i's cumulative loss after t rounds.
	ActionCumulative [][]float64 `json:"action_cumulative"`
	// GreedyCumulative[t] is greedy's own cumulative loss after t rounds.
	GreedyCumulative []float64 `json:"greedy_cumulative"`
	// Choices[r] is the action picked in round r, before the round's
	// losses are applied.
	Choices []int `json:"choices"`
}

// Rounds returns the number of rounds the result covers.
func (r *Result) Rounds() int {
	return len(r.Choices)
}

// FinalLosses returns each action's total loss over the horizon.
func (r *Result) FinalLosses() []float64 {
	finals := make([]float64, len(r.ActionCumulative))
	for i, traj := range r.ActionCumulative {
		finals[i] = traj[len(traj)-1]
	}
	return finals
}

// MinLoss returns the cumulative loss of the best single action.
func (r *Result) MinLoss() float64 {
	finals := r.FinalLosses()
	min := finals[0]
	for _, v := range finals[1:] {
		if v < min {
			min = v
		}
	}
	return min
}

// GreedyLoss returns greedy's total loss over the horizon.
func (r *Result) GreedyLoss() float64 {
	return r.GreedyCumulative[len(r.GreedyCumulative)-1]
}

// Simulate replays the matrix round by round and records the cumulative
// loss trajectory of every action, greedy's own trajectory and the
// sequence of greedy's choices.
func Simulate(m models.LossMatrix) (*Result, error) {
	if m.Rounds() == 0 {
		return nil, fmt.Errorf("%w: matrix has no rounds", ErrMalformedMatrix)
	}
	actions := m.Actions()
	if actions == 0 {
		return nil, fmt.Errorf("%w: matrix has no actions", ErrMalformedMatrix)
	}
	for r, round := range m {
		if len(round) != actions {
			return nil, fmt.Errorf("%w: round %d has %d columns, expected %d",
				ErrMalformedMatrix, r, len(round), actions)
		}
		for i, loss := range round {
			if loss < 0 {
				return nil, fmt.Errorf("%w: round %d action %d has negative loss %v",
					ErrMalformedMatrix, r, i, loss)
			}
		}
	}

	rounds := m.Rounds()
	res := &Result{
		ActionCumulative: make([][]float64, actions),
		GreedyCumulative: make([]float64, 1, rounds+1),
		Choices:          make([]int, 0, rounds),
	}
	for i := range res.ActionCumulative {
		res.ActionCumulative[i] = make([]float64, 1, rounds+1)
	}

	cumulative := make([]float64, actions)
	greedyTotal := 0.0

	for r := 0; r < rounds; r++ {
		choice := argmin(cumulative)
		res.Choices = append(res.Choices, choice)

		greedyTotal += m[r][choice]
		for i, loss := range m[r] {
			cumulative[i] += loss
			res.ActionCumulative[i] = append(res.ActionCumulative[i], cumulative[i])
		}
		res.GreedyCumulative = append(res.GreedyCumulative, greedyTotal)
	}

	return res, nil
}

// argmin returns the index of the smallest value, ties broken by the
// lowest index. This tie-break is the weakness the adversarial
// construction exploits; it must not change.
func argmin(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] < values[best] {
			best = i
		}
	}
	return best
}
