package adversary

import (
	"errors"
	"fmt"

	"github.com/regretlab/adversary-sim/pkg/models"
)

// ErrInvalidParameter is returned when Build is called with out-of-range
// arguments.
var ErrInvalidParameter = errors.New("invalid parameter")

// Rounds returns the number of rounds Build produces for the given
// parameters without constructing the matrix.
func Rounds(actions, increments int, includeTrailing bool) int {
	rounds := actions * increments
	if includeTrailing {
		rounds += actions - 1
	}
	return rounds
}

// Build constructs the worst-case loss matrix for `actions` actions and
// `increments` increments of the best action's cumulative loss.
//
// The matrix is organized into `increments` blocks of `actions` rounds.
// Round k of a block assigns loss 1 to action k alone; because greedy
// breaks ties toward the lowest index, action k is exactly the action
// greedy tracks in that round, so greedy absorbs the loss every round
// while each action's own total rises by only 1 per block. When
// includeTrailing is set, actions-1 extra rounds follow in which round j
// assigns loss 1 to action j, sparing the last action; these contribute
// the additive (N-1) slack of the bound.
func Build(actions, increments int, includeTrailing bool) (models.LossMatrix, error) {
	if actions < 2 {
		return nil, fmt.Errorf("%w: actions must be >= 2, got %d", ErrInvalidParameter, actions)
	}
	if increments < 1 {
		return nil, fmt.Errorf("%w: increments must be >= 1, got %d", ErrInvalidParameter, increments)
	}

	matrix := make(models.LossMatrix, 0, Rounds(actions, increments, includeTrailing))

	for inc := 0; inc < increments; inc++ {
		for action := 0; action < actions; action++ {
			round := make([]float64, actions)
			round[action] = 1
			matrix = append(matrix, round)
		}
	}

	if includeTrailing {
		// The last action is spared, so L_min stays at `increments`.
		for extra := 0; extra < actions-1; extra++ {
			round := make([]float64, actions)
			round[extra] = 1
			matrix = append(matrix, round)
		}
	}

	return matrix, nil
}
