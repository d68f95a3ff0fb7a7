package norm

import (
	"math/rand/v2"
	"strconv"

	"github.com/danielpatrickdp/norm-revision/internal/trace"
)

// #region factory
// Factory constructs norms of one kind. The synthesizer resolves a Factory
// per norm id from the configuration registry.
type Factory interface {
	Kind() Kind
	// Build constructs a pruned norm; see New.
	Build(id string, cond, proh, dead Formula) (*Norm, error)
	// Sample draws a norm uniformly over the highway domain. The result is
	// not pruned and may be disabled.
	Sample(id string, rng *rand.Rand) *Norm
}

type highwayFactory struct {
	kind Kind
	ax   axis
}

// FactoryFor returns the factory for kind.
func FactoryFor(kind Kind) (Factory, error) {
	ax, err := axisFor(kind)
	if err != nil {
		return nil, err
	}
	return highwayFactory{kind: kind, ax: ax}, nil
}

func (f highwayFactory) Kind() Kind { return f.kind }

func (f highwayFactory) Build(id string, cond, proh, dead Formula) (*Norm, error) {
	return New(id, f.kind, cond, proh, dead)
}

func (f highwayFactory) Sample(id string, rng *rand.Rand) *Norm {
	var cond, proh, dead Conjunction

	switch appl := possibleAppl[rng.IntN(len(possibleAppl))]; appl {
	case ApplBoth:
	case ApplFalse:
		cond = cond.With(Appl, trace.AgentCar).With(Appl, trace.AgentTruck)
		proh = proh.With(Appl, trace.AgentCar).With(Appl, trace.AgentTruck)
	default:
		cond = cond.With(Appl, appl)
		proh = proh.With(Appl, appl)
	}

	condPos := uniform(rng, MinPos, MaxPos-1)
	cond = cond.With(CondPos, trace.PositionLabel(condPos))
	proh = proh.With(f.ax.literal, strconv.Itoa(uniform(rng, f.ax.min, f.ax.max)))
	dead = dead.With(DeadPos, trace.PositionLabel(uniform(rng, condPos+1, MaxPos)))

	// literals are well formed by construction
	n, _ := compile(id, f.kind, f.ax, Formula{cond}, Formula{proh}, Formula{dead})
	return n
}

// uniform draws an integer in [lo, hi].
func uniform(rng *rand.Rand, lo, hi int) int {
	return lo + rng.IntN(hi-lo+1)
}

// #endregion factory

// Must builds a norm from "type:value" token lists and panics on error. It
// is meant for tests and fixtures with literal formulas.
func Must(id string, kind Kind, cond, proh, dead [][]string) *Norm {
	c, err := ParseFormula(cond)
	if err != nil {
		panic(err)
	}
	p, err := ParseFormula(proh)
	if err != nil {
		panic(err)
	}
	d, err := ParseFormula(dead)
	if err != nil {
		panic(err)
	}
	n, err := New(id, kind, c, p, d)
	if err != nil {
		panic(err)
	}
	return n
}
