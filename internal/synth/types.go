package synth

import (
	"fmt"

	"github.com/danielpatrickdp/norm-revision/internal/norm"
)

// #region strategy
// Strategy is the direction of the formula-lattice search.
type Strategy string

const (
	// Weakening makes the condition and prohibition more specific and the
	// deadline less specific, so the norm is violated less often.
	Weakening Strategy = "weakening"
	// Strengthening is the converse: the norm is violated more often.
	Strengthening Strategy = "strengthening"
	// Alteration explores both directions on every component.
	Alteration Strategy = "alteration"
	// None keeps every norm unchanged.
	None Strategy = "none"
)

// Strategies lists the revision strategies in experiment order.
var Strategies = []Strategy{Weakening, Strengthening, Alteration}

// UnknownStrategyError is returned for an unrecognised strategy name.
type UnknownStrategyError struct {
	Name string
}

func (e *UnknownStrategyError) Error() string {
	return fmt.Sprintf("unknown revision strategy %q", e.Name)
}

// ParseStrategy maps a strategy name to a Strategy. "-" is accepted for None.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case Weakening, Strengthening, Alteration, None:
		return Strategy(s), nil
	}
	if s == "-" || s == "" {
		return None, nil
	}
	return "", &UnknownStrategyError{Name: s}
}

// #endregion strategy

// #region candidates
// Candidates holds, per norm id, the distinct non-empty candidate norms.
type Candidates map[string][]*norm.Norm

// Sizes returns the candidate count per norm id.
func (c Candidates) Sizes() map[string]int {
	out := make(map[string]int, len(c))
	for id, ns := range c {
		out[id] = len(ns)
	}
	return out
}

// Contains reports whether n is among the candidates for its id.
func (c Candidates) Contains(n *norm.Norm) bool {
	for _, m := range c[n.ID()] {
		if m.Equal(n) {
			return true
		}
	}
	return false
}

// #endregion candidates
