package norm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/norm-revision/internal/trace"
)

// NotViolated is returned by ViolatedAt when a trace never violates the norm.
const NotViolated = -1

// #region component
// Component selects one of the three formulas of a norm.
type Component int

const (
	Condition Component = iota
	Prohibition
	Deadline
)

func (c Component) String() string {
	switch c {
	case Condition:
		return "cond"
	case Prohibition:
		return "proh"
	case Deadline:
		return "dead"
	}
	return fmt.Sprintf("component(%d)", int(c))
}

// #endregion component

// #region norm
// Norm is a conditional prohibition (cond, P(proh), dead) in DNF. A norm with
// any nil formula is empty and stands for "could not be constructed". Norms are
// immutable once built.
type Norm struct {
	id   string
	kind Kind
	ax   axis

	cond, proh, dead Formula

	// compiled clauses, parallel to the formulas
	condCl, prohCl, deadCl []clause
	disabled               bool
}

// clause is a compiled conjunction: one numeric bound plus the applicability values.
type clause struct {
	bound float64
	appl  []string
}

func (c clause) appliesTo(agentType string) bool {
	return len(c.appl) == 0 || (len(c.appl) == 1 && c.appl[0] == agentType)
}

// compatible reports whether two clauses can hold for the same agent type.
// A clause without appl is a wildcard, so a 0-vs-1 appl mismatch is still
// compatible; count-based disabling would drop it.
func (c clause) compatible(o clause) bool {
	if len(c.appl) > 1 || len(o.appl) > 1 {
		return false
	}
	return len(c.appl) == 0 || len(o.appl) == 0 || c.appl[0] == o.appl[0]
}

// New builds a norm of the given kind. AND-redundant numeric literals are
// collapsed to their dominant bound, and the result is the empty norm when a
// conjunction lacks its numeric literal or when the norm is disabled. An
// error is returned only for an unknown kind or a malformed literal value.
func New(id string, kind Kind, cond, proh, dead Formula) (*Norm, error) {
	ax, err := axisFor(kind)
	if err != nil {
		return nil, err
	}
	if cond == nil || proh == nil || dead == nil {
		return Empty(id, kind), nil
	}

	var ok bool
	if cond, ok = collapse(cond, CondPos, maxPos); !ok {
		return Empty(id, kind), nil
	}
	if proh, ok = collapse(proh, ax.literal, ax.fold); !ok {
		return Empty(id, kind), nil
	}
	if dead, ok = collapse(dead, DeadPos, maxPos); !ok {
		return Empty(id, kind), nil
	}

	n, err := compile(id, kind, ax, cond, proh, dead)
	if err != nil {
		return nil, err
	}
	if n.disabled {
		return Empty(id, kind), nil
	}
	return n, nil
}

// Empty returns the empty norm sentinel for id.
func Empty(id string, kind Kind) *Norm {
	ax, _ := axisFor(kind)
	return &Norm{id: id, kind: kind, ax: ax}
}

// compile parses the numeric literals of every clause and computes the
// disabled flag. No collapsing or pruning happens here.
func compile(id string, kind Kind, ax axis, cond, proh, dead Formula) (*Norm, error) {
	n := &Norm{id: id, kind: kind, ax: ax, cond: cond, proh: proh, dead: dead}
	var err error
	if n.condCl, err = compileFormula(cond, CondPos); err != nil {
		return nil, fmt.Errorf("norm %s cond: %w", id, err)
	}
	if n.prohCl, err = compileFormula(proh, ax.literal); err != nil {
		return nil, fmt.Errorf("norm %s proh: %w", id, err)
	}
	if n.deadCl, err = compileFormula(dead, DeadPos); err != nil {
		return nil, fmt.Errorf("norm %s dead: %w", id, err)
	}
	n.disabled = n.computeDisabled()
	return n, nil
}

func compileFormula(f Formula, numeric LiteralType) ([]clause, error) {
	out := make([]clause, 0, len(f))
	for _, c := range f {
		v, ok := c.Value(numeric)
		if !ok {
			return nil, fmt.Errorf("conjunction %q has no %s literal", c.Key(), numeric)
		}
		bound, err := parseNumeric(numeric, v)
		if err != nil {
			return nil, err
		}
		out = append(out, clause{bound: float64(bound), appl: c.Values(Appl)})
	}
	return out, nil
}

// collapse replaces multiple numeric literals of type t in each conjunction
// with their fold. It reports false when a conjunction has none.
func collapse(f Formula, t LiteralType, fold func(a, b int) int) (Formula, bool) {
	out := make(Formula, 0, len(f))
	for _, c := range f {
		vals := c.Values(t)
		if len(vals) == 0 {
			return nil, false
		}
		if len(vals) == 1 {
			out = append(out, c)
			continue
		}
		best, err := parseNumeric(t, vals[0])
		if err != nil {
			// keep the conjunction; compile reports the malformed value
			out = append(out, c)
			continue
		}
		bestStr := vals[0]
		for _, v := range vals[1:] {
			x, err := parseNumeric(t, v)
			if err != nil {
				continue
			}
			if fold(x, best) != best {
				best, bestStr = x, v
			}
		}
		out = append(out, c.WithOnly(t, bestStr))
	}
	return out, true
}

func maxPos(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// parseNumeric reads a position literal ("km3") or a threshold literal ("20").
func parseNumeric(t LiteralType, v string) (int, error) {
	s := v
	if t == CondPos || t == DeadPos {
		if !strings.HasPrefix(v, trace.PositionPrefix) {
			return 0, fmt.Errorf("position literal %q lacks %q prefix", v, trace.PositionPrefix)
		}
		s = strings.TrimPrefix(v, trace.PositionPrefix)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("literal %s=%q: %w", t, v, err)
	}
	return n, nil
}

// #endregion norm

// #region accessors

func (n *Norm) ID() string           { return n.id }
func (n *Norm) Kind() Kind           { return n.kind }
func (n *Norm) Condition() Formula   { return n.cond.Clone() }
func (n *Norm) Prohibition() Formula { return n.proh.Clone() }
func (n *Norm) Deadline() Formula    { return n.dead.Clone() }

// Formula returns the formula of component c.
func (n *Norm) Formula(c Component) Formula {
	switch c {
	case Condition:
		return n.Condition()
	case Prohibition:
		return n.Prohibition()
	default:
		return n.Deadline()
	}
}

// IsEmpty reports whether the norm is the "could not be constructed" sentinel.
func (n *Norm) IsEmpty() bool {
	return n == nil || n.cond == nil || n.proh == nil || n.dead == nil
}

// IsDisabled reports whether the norm can structurally never be violated.
func (n *Norm) IsDisabled() bool {
	return n.disabled
}

// Key is the structural rendering used for equality.
func (n *Norm) Key() string {
	if n.IsEmpty() {
		return "(,,)"
	}
	return fmt.Sprintf("(%s, P(%s), %s)", n.cond.Key(), n.proh.Key(), n.dead.Key())
}

// Equal compares kind and formulas.
func (n *Norm) Equal(o *Norm) bool {
	if n == nil || o == nil {
		return n == o
	}
	return n.kind == o.kind && n.Key() == o.Key()
}

func (n *Norm) String() string {
	if n.disabled {
		return n.Key() + " [disabled]"
	}
	return n.Key()
}

// #endregion accessors

// #region satisfaction

// computeDisabled applies the highway rules: the condition or the
// prohibition restricts every clause to more than one agent type, no
// (condition, prohibition) clause pair agrees on an agent type, or some
// condition position is at or past some deadline position.
func (n *Norm) computeDisabled() bool {
	if !anyClause(n.condCl, func(c clause) bool { return len(c.appl) <= 1 }) {
		return true
	}
	if !anyClause(n.prohCl, func(c clause) bool { return len(c.appl) <= 1 }) {
		return true
	}
	compatible := false
	for _, c := range n.condCl {
		for _, p := range n.prohCl {
			if c.compatible(p) {
				compatible = true
				break
			}
		}
	}
	if !compatible {
		return true
	}
	for _, c := range n.condCl {
		for _, d := range n.deadCl {
			if c.bound >= d.bound {
				return true
			}
		}
	}
	return false
}

func anyClause(cls []clause, pred func(clause) bool) bool {
	for _, c := range cls {
		if pred(c) {
			return true
		}
	}
	return false
}

// Satisfied evaluates one component against a state. Positions are
// monotonic: "km<k>" holds at any position >= k. The prohibition holds when
// the kind's measure crosses its threshold for an applicable agent type.
func (n *Norm) Satisfied(c Component, s trace.State) bool {
	if n.IsEmpty() {
		return false
	}
	switch c {
	case Condition:
		for _, cl := range n.condCl {
			if float64(s.Position) >= cl.bound && cl.appliesTo(s.AgentType) {
				return true
			}
		}
	case Prohibition:
		m := n.ax.measure(s)
		for _, cl := range n.prohCl {
			if n.ax.holds(m, cl.bound) && cl.appliesTo(s.AgentType) {
				return true
			}
		}
	case Deadline:
		for _, cl := range n.deadCl {
			if float64(s.Position) >= cl.bound {
				return true
			}
		}
	}
	return false
}

// ViolatedAt runs the violation automaton and returns the index of the
// first violating state, or NotViolated.
func (n *Norm) ViolatedAt(t trace.Trace) int {
	if n.IsEmpty() || n.disabled {
		return NotViolated
	}
	detached := false
	for i, s := range t.States {
		if n.Satisfied(Condition, s) {
			detached = true
		}
		if !detached {
			continue
		}
		if n.Satisfied(Deadline, s) {
			detached = false
			continue
		}
		if n.Satisfied(Prohibition, s) {
			return i
		}
	}
	return NotViolated
}

// Violated reports whether ViolatedAt finds a violation.
func (n *Norm) Violated(t trace.Trace) bool {
	return n.ViolatedAt(t) != NotViolated
}

// CurrentlyApplies reports whether the norm is detached at the last state.
func (n *Norm) CurrentlyApplies(t trace.Trace) bool {
	detached := false
	for _, s := range t.States {
		if n.Satisfied(Condition, s) {
			detached = true
		}
		if n.Satisfied(Deadline, s) {
			detached = false
		}
	}
	return detached
}

// AppliesTo reports whether some condition clause and some prohibition
// clause both hold for agentType.
func (n *Norm) AppliesTo(agentType string) bool {
	if n.IsEmpty() || n.disabled {
		return false
	}
	for _, c := range n.condCl {
		if !c.appliesTo(agentType) {
			continue
		}
		for _, p := range n.prohCl {
			if p.appliesTo(agentType) {
				return true
			}
		}
	}
	return false
}

// DetachmentPosition returns the earliest condition position for agentType,
// or MaxPos+1 when no condition clause applies.
func (n *Norm) DetachmentPosition(agentType string) int {
	pos := MaxPos + 1
	for _, c := range n.condCl {
		if c.appliesTo(agentType) && int(c.bound) < pos {
			pos = int(c.bound)
		}
	}
	return pos
}

// DeadlinePosition returns the latest deadline position, or MinPos.
func (n *Norm) DeadlinePosition() int {
	pos := MinPos
	for _, d := range n.deadCl {
		if int(d.bound) > pos {
			pos = int(d.bound)
		}
	}
	return pos
}

// ProhibitionThreshold returns the threshold an agent of agentType must stay
// clear of to avoid every applicable prohibition clause.
func (n *Norm) ProhibitionThreshold(agentType string) (float64, bool) {
	found := false
	var thr float64
	for _, p := range n.prohCl {
		if !p.appliesTo(agentType) {
			continue
		}
		b := int(p.bound)
		if !found || !n.ax.tighter(b, int(thr)) {
			thr = p.bound
		}
		found = true
	}
	return thr, found
}

// #endregion satisfaction
