package greedy

// Bound returns the worst-case upper bound on greedy's cumulative loss
// for `actions` actions and best-action loss minLoss:
// N*L_min + (N-1).
func Bound(actions int, minLoss float64) float64 {
	return float64(actions)*minLoss + float64(actions-1)
}

// Attained reports whether the result meets the bound with equality,
// demonstrating tightness.
func Attained(res *Result, actions int) bool {
	return res.GreedyLoss() == Bound(actions, res.MinLoss())
}
