package synth

import (
	"go.uber.org/zap"

	"github.com/danielpatrickdp/norm-revision/internal/configuration"
	"github.com/danielpatrickdp/norm-revision/internal/mining"
	"github.com/danielpatrickdp/norm-revision/internal/norm"
	"github.com/danielpatrickdp/norm-revision/internal/trace"
)

// #region synthesizer
// Synthesizer mines state sets and builds candidate norms per norm id.
type Synthesizer struct {
	log *zap.Logger
}

// New creates a synthesizer. A nil logger is replaced by a no-op one.
func New(log *zap.Logger) *Synthesizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synthesizer{log: log}
}

// Synthesize returns the candidate norms of every norm in cfg under
// strategy. A norm whose kind cannot be constructed is logged and gets no
// candidates; the other norms are unaffected.
func (s *Synthesizer) Synthesize(strategy Strategy, cfg configuration.Configuration, traces []trace.Trace) (Candidates, error) {
	strategy, err := ParseStrategy(string(strategy))
	if err != nil {
		return nil, err
	}
	reg := cfg.Registry()
	out := make(Candidates, cfg.Len())
	for _, n := range cfg.Norms() {
		if strategy == None {
			out[n.ID()] = []*norm.Norm{n}
			continue
		}

		kind, ok := reg.Kind(n.ID())
		if !ok {
			kind = n.Kind()
		}
		factory, err := norm.FactoryFor(kind)
		if err != nil {
			s.log.Warn("norm construction unavailable",
				zap.String("norm", n.ID()),
				zap.Stringer("kind", kind),
				zap.Error(err),
			)
			out[n.ID()] = nil
			continue
		}

		cands, err := s.reviseNorm(strategy, factory, n, traces)
		if err != nil {
			s.log.Warn("norm construction failed",
				zap.String("norm", n.ID()),
				zap.Error(err),
			)
			out[n.ID()] = nil
			continue
		}
		s.log.Debug("synthesized candidates",
			zap.String("norm", n.ID()),
			zap.String("strategy", string(strategy)),
			zap.Int("count", len(cands)),
		)
		out[n.ID()] = cands
	}
	return out, nil
}

// reviseNorm combines one candidate condition, prohibition and deadline at
// a time and keeps the distinct non-empty results.
func (s *Synthesizer) reviseNorm(strategy Strategy, factory norm.Factory, n *norm.Norm, traces []trace.Trace) ([]*norm.Norm, error) {
	if n.IsEmpty() {
		return nil, nil
	}
	sets := mining.Mine(n, traces)
	conds, prohs, deads := componentCandidates(strategy, n, sets)

	var out []*norm.Norm
	seen := make(map[string]bool)
	for _, c := range conds {
		for _, p := range prohs {
			for _, d := range deads {
				cand, err := factory.Build(n.ID(), c, p, d)
				if err != nil {
					return nil, err
				}
				if cand.IsEmpty() || seen[cand.Key()] {
					continue
				}
				seen[cand.Key()] = true
				out = append(out, cand)
			}
		}
	}
	return out, nil
}

func componentCandidates(strategy Strategy, n *norm.Norm, sets mining.Sets) (conds, prohs, deads []norm.Formula) {
	switch strategy {
	case Weakening:
		return n.MoreSpecific(norm.Condition, sets.CS),
			n.MoreSpecific(norm.Prohibition, sets.PS),
			n.LessSpecific(norm.Deadline, sets.CPS)
	case Strengthening:
		return n.LessSpecific(norm.Condition, sets.OPS),
			n.LessSpecific(norm.Prohibition, sets.IPS),
			n.MoreSpecific(norm.Deadline, sets.DS)
	default:
		return union(n.MoreSpecific(norm.Condition, sets.CS), n.LessSpecific(norm.Condition, sets.OPS)),
			union(n.MoreSpecific(norm.Prohibition, sets.PS), n.LessSpecific(norm.Prohibition, sets.IPS)),
			union(n.LessSpecific(norm.Deadline, sets.CPS), n.MoreSpecific(norm.Deadline, sets.DS))
	}
}

func union(a, b []norm.Formula) []norm.Formula {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]norm.Formula, 0, len(a)+len(b))
	for _, f := range append(append([]norm.Formula(nil), a...), b...) {
		if !seen[f.Key()] {
			seen[f.Key()] = true
			out = append(out, f)
		}
	}
	return out
}

// #endregion synthesizer
