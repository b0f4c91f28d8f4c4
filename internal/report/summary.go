package report

import (
	"github.com/regretlab/adversary-sim/pkg/models"
)

// ActionSummary is one action's line in the analysis block.
type ActionSummary struct {
	Action    int     `json:"action"`
	FinalLoss float64 `json:"final_loss"`
	Best      bool    `json:"best"`
}

// Summary is the structured form of the worst-case analysis block: final
// losses per action, the bound arithmetic and whether the bound held.
type Summary struct {
	Actions        int             `json:"actions"`
	Rounds         int             `json:"rounds"`
	Increments     int             `json:"increments"`
	PerAction      []ActionSummary `json:"per_action"`
	MinLoss        float64         `json:"min_loss"`
	GreedyLoss     float64         `json:"greedy_loss"`
	Bound          float64         `json:"bound"`
	Regret         float64         `json:"regret"`
	BoundSatisfied bool            `json:"bound_satisfied"`
	BoundAttained  bool            `json:"bound_attained"`
}

// Summarize builds the analysis block for a case.
func Summarize(c models.CaseResult) *Summary {
	perAction := make([]ActionSummary, 0, c.Actions)
	for i, loss := range c.FinalLosses {
		perAction = append(perAction, ActionSummary{
			Action:    i,
			FinalLoss: loss,
			Best:      loss == c.MinLoss,
		})
	}

	return &Summary{
		Actions:        c.Actions,
		Rounds:         c.Rounds,
		Increments:     c.Increments,
		PerAction:      perAction,
		MinLoss:        c.MinLoss,
		GreedyLoss:     c.GreedyLoss,
		Bound:          c.Bound,
		Regret:         c.Regret,
		BoundSatisfied: c.GreedyLoss <= c.Bound,
		BoundAttained:  c.BoundAttained,
	}
}
