// Package adversary constructs worst-case loss sequences for the greedy
// regret-minimization policy.
//
// The construction drives greedy to its upper bound with equality: over a
// horizon built from `increments` blocks of N rounds each (plus an optional
// trailing phase of N-1 rounds), the best single action ends with cumulative
// loss L_min = increments while greedy ends with exactly
// N*increments + (N-1). The construction relies on greedy breaking argmin
// ties toward the lowest action index; each round assigns loss 1 to
// precisely the action greedy is about to pick.
package adversary
