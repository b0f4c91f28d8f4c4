// Package report converts simulation results into render-ready payloads
// for an external plotting collaborator. The payloads carry everything a
// renderer needs (labels, series, reference lines) without prescribing a
// chart toolkit.
package report

import (
	"fmt"

	"github.com/regretlab/adversary-sim/pkg/models"
)

// RefLine is a labelled horizontal reference line.
type RefLine struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// BarChartPayload describes the final-losses bar chart: one bar per
// action plus one for greedy, with L_min and bound reference lines.
type BarChartPayload struct {
	Title    string    `json:"title"`
	Labels   []string  `json:"labels"`
	Values   []float64 `json:"values"`
	MinLoss  RefLine   `json:"min_loss_line"`
	Bound    RefLine   `json:"bound_line"`
	BestBars []int     `json:"best_bars"` // indices of bars at L_min
}

// Series is one labelled line in a line chart.
type Series struct {
	Label  string    `json:"label"`
	Values []float64 `json:"values"`
}

// LineChartPayload describes the cumulative-loss-over-time chart: one
// series per action plus the greedy series, all starting at the zero
// state.
type LineChartPayload struct {
	Title  string   `json:"title"`
	XLabel string   `json:"x_label"`
	YLabel string   `json:"y_label"`
	Series []Series `json:"series"`
	Greedy Series   `json:"greedy"`
}

// CaseCharts bundles the payloads for one case.
type CaseCharts struct {
	Case    string            `json:"case"`
	Bar     *BarChartPayload  `json:"bar"`
	Line    *LineChartPayload `json:"line"`
	Summary *Summary          `json:"summary"`
}

func actionLabel(i int) string {
	return fmt.Sprintf("Action %d", i)
}

// BarChart builds the final cumulative losses bar chart for a case.
func BarChart(c models.CaseResult) *BarChartPayload {
	labels := make([]string, 0, c.Actions+1)
	values := make([]float64, 0, c.Actions+1)
	var best []int
	for i, loss := range c.FinalLosses {
		labels = append(labels, actionLabel(i))
		values = append(values, loss)
		if loss == c.MinLoss {
			best = append(best, i)
		}
	}
	labels = append(labels, "Greedy")
	values = append(values, c.GreedyLoss)

	return &BarChartPayload{
		Title:  fmt.Sprintf("Final Cumulative Losses (N=%d, T=%d)", c.Actions, c.Rounds),
		Labels: labels,
		Values: values,
		MinLoss: RefLine{
			Label: fmt.Sprintf("L_min = %g", c.MinLoss),
			Value: c.MinLoss,
		},
		Bound: RefLine{
			Label: fmt.Sprintf("Bound: N*L_min + (N-1) = %g", c.Bound),
			Value: c.Bound,
		},
		BestBars: best,
	}
}

// LineChart builds the cumulative-loss evolution chart for a case.
func LineChart(c models.CaseResult) *LineChartPayload {
	series := make([]Series, 0, c.Actions)
	for i, traj := range c.ActionTrajectories {
		series = append(series, Series{Label: actionLabel(i), Values: traj})
	}

	return &LineChartPayload{
		Title:  "Evolution of Cumulative Losses Over Time",
		XLabel: "Round",
		YLabel: "Cumulative Loss",
		Series: series,
		Greedy: Series{Label: "Greedy", Values: c.GreedyTrajectory},
	}
}

// Charts bundles all render payloads for a case.
func Charts(c models.CaseResult) *CaseCharts {
	return &CaseCharts{
		Case:    c.Name,
		Bar:     BarChart(c),
		Line:    LineChart(c),
		Summary: Summarize(c),
	}
}
