package norm

import (
	"sort"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/norm-revision/internal/trace"
)

// #region propositions

// Propositions returns the distinct, sorted propositions of states that are
// relevant to component c: positions and agent types for the condition, the
// rounded prohibition measure and agent types for the prohibition, positions
// for the deadline.
func (n *Norm) Propositions(c Component, states []trace.State) []string {
	set := make(map[string]struct{}, len(states)*2)
	for _, s := range states {
		switch c {
		case Condition:
			set[s.Label()] = struct{}{}
			set[s.AgentType] = struct{}{}
		case Prohibition:
			set[n.ax.proposition(s)] = struct{}{}
			set[s.AgentType] = struct{}{}
		case Deadline:
			set[s.Label()] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		if p != "" {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// #endregion propositions

// #region formulas

// MoreSpecific returns candidate formulas for component c that hold in no
// more states than the current one. Each candidate conjunction built from the
// propositions of states is ANDed into every disjunct. The unmodified formula
// is always first.
func (n *Norm) MoreSpecific(c Component, states []trace.State) []Formula {
	if n.IsEmpty() {
		return nil
	}
	base := n.Formula(c)
	numeric, fold := n.numericOf(c)
	out := []Formula{base}
	seen := map[string]bool{base.Key(): true}
	for _, cj := range n.buildConjunctions(c, n.Propositions(c, states), true) {
		f := make(Formula, len(base))
		for i, d := range base {
			f[i] = d.WithAll(cj)
		}
		f, _ = collapse(f, numeric, fold)
		if !seen[f.Key()] {
			seen[f.Key()] = true
			out = append(out, f)
		}
	}
	return out
}

// LessSpecific returns candidate formulas for component c that hold in at
// least as many states as one of the current disjuncts. Each candidate
// conjunction becomes a single-disjunct formula. The unmodified formula is
// always first.
func (n *Norm) LessSpecific(c Component, states []trace.State) []Formula {
	if n.IsEmpty() {
		return nil
	}
	base := n.Formula(c)
	out := []Formula{base}
	seen := map[string]bool{base.Key(): true}
	for _, cj := range n.buildConjunctions(c, n.Propositions(c, states), false) {
		f := Formula{cj}
		if !seen[f.Key()] {
			seen[f.Key()] = true
			out = append(out, f)
		}
	}
	return out
}

func (n *Norm) numericOf(c Component) (LiteralType, func(a, b int) int) {
	switch c {
	case Condition:
		return CondPos, maxPos
	case Prohibition:
		return n.ax.literal, n.ax.fold
	default:
		return DeadPos, maxPos
	}
}

// #endregion formulas

// #region conjunctions

// buildConjunctions builds the bounded candidate conjunctions for component
// c from props, per current disjunct. narrow selects the more-specific
// direction.
func (n *Norm) buildConjunctions(c Component, props []string, narrow bool) []Conjunction {
	var out []Conjunction
	seen := make(map[string]bool)
	add := func(cs []Conjunction) {
		for _, cj := range cs {
			if !seen[cj.Key()] {
				seen[cj.Key()] = true
				out = append(out, cj)
			}
		}
	}

	switch c {
	case Condition:
		nums, appl := splitProps(props, CondPos)
		for _, d := range n.cond {
			cur := mustNumeric(d, CondPos)
			picked := pickClosest(nums, cur, narrow, positionTighter, MinPos, MaxPos)
			add(powerSetConjunctions(d, CondPos, cur, picked, appl, maxPos, renderPosition, narrow))
		}
	case Prohibition:
		nums, appl := splitProps(props, n.ax.literal)
		for _, d := range n.proh {
			cur := mustNumeric(d, n.ax.literal)
			picked := pickClosest(nums, cur, narrow, n.ax.tighter, n.ax.min, n.ax.max)
			add(powerSetConjunctions(d, n.ax.literal, cur, picked, appl, n.ax.fold, strconv.Itoa, narrow))
		}
	case Deadline:
		nums, _ := splitProps(props, DeadPos)
		for _, d := range n.dead {
			cur := mustNumeric(d, DeadPos)
			for _, v := range pickClosest(nums, cur, narrow, positionTighter, MinPos, MaxPos) {
				add([]Conjunction{NewConjunction(Literal{Type: DeadPos, Value: renderPosition(v)})})
			}
		}
	}
	return out
}

// powerSetConjunctions enumerates every subset of picked numeric values plus
// appl values plus the current bound. A subset yields a conjunction only if
// it holds at least one numeric value, folded to its dominant bound. In the
// narrow direction the conjunction extends base. In the wide direction it
// starts empty and must not name an agent type base does not already name.
func powerSetConjunctions(
	base Conjunction,
	numeric LiteralType,
	cur int,
	picked []int,
	appl []string,
	fold func(a, b int) int,
	render func(int) string,
	narrow bool,
) []Conjunction {
	type item struct {
		num   int
		appl  string
		isNum bool
	}
	items := make([]item, 0, len(appl)+len(picked)+1)
	for _, a := range appl {
		items = append(items, item{appl: a})
	}
	for _, v := range picked {
		items = append(items, item{num: v, isNum: true})
	}
	if len(items) == 0 {
		return nil
	}
	items = append(items, item{num: cur, isNum: true})

	baseAppl := base.Values(Appl)
	var out []Conjunction
	for mask := 1; mask < 1<<len(items); mask++ {
		var c Conjunction
		if narrow {
			c = base
		}
		best, have := 0, false
		for i, it := range items {
			if mask&(1<<i) == 0 {
				continue
			}
			if !it.isNum {
				c = c.With(Appl, it.appl)
				continue
			}
			if !have {
				best, have = it.num, true
			} else {
				best = fold(it.num, best)
			}
		}
		if !have {
			continue
		}
		if !narrow && !subsetOf(c.Values(Appl), baseAppl) {
			continue
		}
		if narrow {
			out = append(out, c.With(numeric, render(best)))
		} else {
			out = append(out, c.WithOnly(numeric, render(best)))
		}
	}
	return out
}

// pickClosest keeps the values strictly on the requested side of cur, after
// clamping them to [lo, hi], and returns at most SpaceParam of them closest
// to cur. narrow keeps values tighter than cur.
func pickClosest(nums []int, cur int, narrow bool, tighter func(a, b int) bool, lo, hi int) []int {
	seen := make(map[int]bool, len(nums))
	var kept []int
	for _, v := range nums {
		if v < lo {
			v = lo
		}
		if v > hi {
			v = hi
		}
		if seen[v] {
			continue
		}
		if (narrow && tighter(v, cur)) || (!narrow && tighter(cur, v)) {
			seen[v] = true
			kept = append(kept, v)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		di, dj := abs(kept[i]-cur), abs(kept[j]-cur)
		if di != dj {
			return di < dj
		}
		return kept[i] < kept[j]
	})
	if len(kept) > SpaceParam {
		kept = kept[:SpaceParam]
	}
	return kept
}

// splitProps separates numeric propositions of type t from agent types.
func splitProps(props []string, t LiteralType) ([]int, []string) {
	var nums []int
	var appl []string
	for _, p := range props {
		if t == CondPos || t == DeadPos {
			if strings.HasPrefix(p, trace.PositionPrefix) {
				if v, err := parseNumeric(t, p); err == nil {
					nums = append(nums, v)
				}
				continue
			}
		} else if v, err := strconv.Atoi(p); err == nil {
			nums = append(nums, v)
			continue
		}
		appl = append(appl, p)
	}
	return nums, appl
}

func mustNumeric(c Conjunction, t LiteralType) int {
	v, _ := c.Value(t)
	n, _ := parseNumeric(t, v)
	return n
}

func positionTighter(a, b int) bool { return a > b }

func renderPosition(k int) string { return trace.PositionLabel(k) }

func subsetOf(sub, super []string) bool {
	for _, s := range sub {
		found := false
		for _, x := range super {
			if x == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// #endregion conjunctions
