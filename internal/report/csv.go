package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/regretlab/adversary-sim/pkg/models"
)

// WriteCaseCSV writes the trajectories of a case as CSV: one row per
// time step (including the zero state), one column per action plus the
// greedy column and the chosen action.
func WriteCaseCSV(w io.Writer, c models.CaseResult) error {
	cw := csv.NewWriter(w)

	header := make([]string, 0, c.Actions+3)
	header = append(header, "round")
	for i := 0; i < c.Actions; i++ {
		header = append(header, fmt.Sprintf("action_%d", i))
	}
	header = append(header, "greedy", "choice")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	steps := len(c.GreedyTrajectory)
	for t := 0; t < steps; t++ {
		row := make([]string, 0, len(header))
		row = append(row, strconv.Itoa(t))
		for i := 0; i < c.Actions; i++ {
			row = append(row, formatLoss(c.ActionTrajectories[i][t]))
		}
		row = append(row, formatLoss(c.GreedyTrajectory[t]))
		// The zero state has no choice; round t's choice applies to step t+1.
		if t == 0 {
			row = append(row, "")
		} else {
			row = append(row, strconv.Itoa(c.Choices[t-1]))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", t, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatLoss(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
