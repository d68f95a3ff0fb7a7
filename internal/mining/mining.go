package mining

import (
	"github.com/danielpatrickdp/norm-revision/internal/norm"
	"github.com/danielpatrickdp/norm-revision/internal/trace"
)

// #region sets
// Sets are the six state sets mined for one norm over a trace batch. CS, PS
// and CPS come from traces that violate the norm; OPS, IPS and DS from traces
// that do not. CS, PS and DS drive narrowing; OPS, IPS and CPS drive widening.
type Sets struct {
	CS  []trace.State // detachment states followed by a violation before the deadline
	PS  []trace.State // prohibition states while detached, before the deadline
	CPS []trace.State // strictly between a detachment and its violation
	OPS []trace.State // prohibition states on non-violating traces
	IPS []trace.State // strictly after a detachment, before its deadline, on non-violating traces
	DS  []trace.State // deadline states reached while detached, on non-violating traces
}

// Mine extracts the six state sets for n from traces.
func Mine(n *norm.Norm, traces []trace.Trace) Sets {
	var s Sets
	for _, t := range traces {
		if n.Violated(t) {
			s.CS = append(s.CS, DetachmentStates(n, t)...)
			s.PS = append(s.PS, ViolatingStates(n, t)...)
			s.CPS = append(s.CPS, BetweenConditionAndProhibition(n, t)...)
			continue
		}
		s.OPS = append(s.OPS, ProhibitionStatesOutsideWindow(n, t)...)
		s.IPS = append(s.IPS, BetweenConditionAndDeadline(n, t)...)
		s.DS = append(s.DS, DeadlineStates(n, t)...)
	}
	return s
}

// #endregion sets

// #region extractors

// DetachmentStates returns the states where the condition held and a
// prohibition state followed before the next deadline.
func DetachmentStates(n *norm.Norm, t trace.Trace) []trace.State {
	var out, pending []trace.State
	detached := false
	for _, s := range t.States {
		if n.Satisfied(norm.Condition, s) {
			detached = true
			pending = append(pending, s)
		}
		if !detached {
			continue
		}
		dead := n.Satisfied(norm.Deadline, s)
		if !dead && n.Satisfied(norm.Prohibition, s) {
			out = append(out, pending...)
			pending = nil
			detached = false
		}
		if dead {
			pending = nil
			detached = false
		}
	}
	return out
}

// ViolatingStates returns every prohibition state reached while detached and
// before the deadline.
func ViolatingStates(n *norm.Norm, t trace.Trace) []trace.State {
	var out []trace.State
	detached := false
	for _, s := range t.States {
		if n.Satisfied(norm.Condition, s) {
			detached = true
		}
		if !detached {
			continue
		}
		dead := n.Satisfied(norm.Deadline, s)
		if !dead && n.Satisfied(norm.Prohibition, s) {
			out = append(out, s)
		}
		if dead {
			detached = false
		}
	}
	return out
}

// BetweenConditionAndProhibition returns the states strictly after a
// detachment up to and including each subsequent violating state.
func BetweenConditionAndProhibition(n *norm.Norm, t trace.Trace) []trace.State {
	var out, pending []trace.State
	detached := false
	detachedAt := -1
	for i, s := range t.States {
		if !detached && n.Satisfied(norm.Condition, s) {
			detached = true
			detachedAt = i
		}
		if !detached {
			continue
		}
		dead := n.Satisfied(norm.Deadline, s)
		if i > detachedAt {
			pending = append(pending, s)
			if !dead && n.Satisfied(norm.Prohibition, s) {
				out = append(out, pending...)
				pending = nil
			}
		}
		if dead {
			detached = false
			detachedAt = -1
			pending = nil
		}
	}
	return out
}

// BetweenConditionAndDeadline returns the states strictly after a detachment
// and strictly before the deadline that closes it. Windows the trace never
// closes are dropped.
func BetweenConditionAndDeadline(n *norm.Norm, t trace.Trace) []trace.State {
	var out, pending []trace.State
	detached := false
	detachedAt := -1
	for i, s := range t.States {
		if !detached && n.Satisfied(norm.Condition, s) {
			detached = true
			detachedAt = i
		}
		if !detached {
			continue
		}
		if n.Satisfied(norm.Deadline, s) {
			out = append(out, pending...)
			pending = nil
			detached = false
			detachedAt = -1
			continue
		}
		if i > detachedAt {
			pending = append(pending, s)
		}
	}
	return out
}

// ProhibitionStatesOutsideWindow returns every prohibition state of a trace
// that does not violate n; nil when it does.
func ProhibitionStatesOutsideWindow(n *norm.Norm, t trace.Trace) []trace.State {
	if n.Violated(t) {
		return nil
	}
	var out []trace.State
	for _, s := range t.States {
		if n.Satisfied(norm.Prohibition, s) {
			out = append(out, s)
		}
	}
	return out
}

// DeadlineStates returns the states where the deadline closes a detachment.
func DeadlineStates(n *norm.Norm, t trace.Trace) []trace.State {
	var out []trace.State
	detached := false
	for _, s := range t.States {
		if n.Satisfied(norm.Condition, s) {
			detached = true
		}
		if detached && n.Satisfied(norm.Deadline, s) {
			out = append(out, s)
			detached = false
		}
	}
	return out
}

// #endregion extractors
