// Package regretd hosts the daemon surface: the run store, the
// asynchronous executor and the HTTP API.
package regretd

import (
	"fmt"

	"github.com/regretlab/adversary-sim/internal/adversary"
	"github.com/regretlab/adversary-sim/internal/greedy"
	"github.com/regretlab/adversary-sim/pkg/config"
	"github.com/regretlab/adversary-sim/pkg/models"
)

// ExecuteCase builds the worst-case matrix for a case and replays it,
// returning the full per-case result.
func ExecuteCase(spec models.CaseSpec) (models.CaseResult, error) {
	matrix, err := adversary.Build(spec.Actions, spec.Increments, spec.Trailing())
	if err != nil {
		return models.CaseResult{}, fmt.Errorf("build case %q: %w", spec.Name, err)
	}

	res, err := greedy.Simulate(matrix)
	if err != nil {
		return models.CaseResult{}, fmt.Errorf("simulate case %q: %w", spec.Name, err)
	}

	minLoss := res.MinLoss()
	greedyLoss := res.GreedyLoss()
	bound := greedy.Bound(spec.Actions, minLoss)

	return models.CaseResult{
		Name:               spec.Name,
		Actions:            spec.Actions,
		Increments:         spec.Increments,
		IncludeTrailing:    spec.Trailing(),
		Rounds:             res.Rounds(),
		FinalLosses:        res.FinalLosses(),
		MinLoss:            minLoss,
		GreedyLoss:         greedyLoss,
		Bound:              bound,
		Regret:             greedyLoss - minLoss,
		BoundAttained:      greedyLoss == bound,
		Choices:            res.Choices,
		ActionTrajectories: res.ActionCumulative,
		GreedyTrajectory:   res.GreedyCumulative,
	}, nil
}

// CasesFromInput expands a run input into the ordered list of cases to
// execute. Single-case inputs become a sweep of one.
func CasesFromInput(input *models.RunInput) ([]models.CaseSpec, error) {
	if input == nil {
		return nil, fmt.Errorf("input is required")
	}
	if input.Case != nil && input.SweepYAML != "" {
		return nil, fmt.Errorf("input must set exactly one of case or sweep_yaml")
	}

	if input.Case != nil {
		spec := *input.Case
		if spec.Actions < 2 {
			return nil, fmt.Errorf("case: actions must be at least 2, got %d", spec.Actions)
		}
		if spec.Increments < 1 {
			return nil, fmt.Errorf("case: increments must be at least 1, got %d", spec.Increments)
		}
		if spec.Name == "" {
			spec.Name = fmt.Sprintf("N%d-inc%d", spec.Actions, spec.Increments)
		}
		return []models.CaseSpec{spec}, nil
	}

	if input.SweepYAML == "" {
		return nil, fmt.Errorf("input must set one of case or sweep_yaml")
	}

	sweep, err := config.ParseSweepYAMLString(input.SweepYAML)
	if err != nil {
		return nil, err
	}

	specs := make([]models.CaseSpec, 0, len(sweep.Cases))
	for _, c := range sweep.Cases {
		trailing := c.Trailing()
		specs = append(specs, models.CaseSpec{
			Name:            c.Name,
			Actions:         c.Actions,
			Increments:      c.Increments,
			IncludeTrailing: &trailing,
		})
	}
	return specs, nil
}

// Aggregate folds per-case results into a run result.
func Aggregate(cases []models.CaseResult) *models.RunResult {
	result := &models.RunResult{
		Cases:       cases,
		AllAttained: len(cases) > 0,
	}
	for _, c := range cases {
		if !c.BoundAttained {
			result.AllAttained = false
		}
		if c.Regret > result.WorstRegret || result.WorstCase == "" {
			result.WorstRegret = c.Regret
			result.WorstCase = c.Name
		}
	}
	return result
}
