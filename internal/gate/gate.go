package gate

import (
	"fmt"
	"math"
)

// #region gate
// Gate decides whether a revised configuration replaces the current one.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Evaluate checks hard vetoes first, then scores the improvement.
func (g *Gate) Evaluate(p Proposal) GateDecision {
	var vetoes []VetoSignal

	// --- Hard veto pass ---

	if !p.Found {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoNoCandidate,
			Reason: "selection produced no configuration",
		})
	}

	if p.Found && p.Candidate.IsEmpty() {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoEmptyConfig,
			Reason: "selected configuration is empty",
		})
	}

	if p.Found && (math.IsNaN(p.CandidateScore) || p.CandidateScore < 0) {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoUnscored,
			Reason: fmt.Sprintf("candidate score %.4f is not a quality", p.CandidateScore),
		})
	}

	improvement := p.CandidateScore - p.CurrentScore
	if p.Found && g.config.RequireImprovement && improvement < -g.config.Tolerance {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoNoImprovement,
			Reason: fmt.Sprintf("candidate score %.4f below current %.4f", p.CandidateScore, p.CurrentScore),
		})
	}

	if len(vetoes) > 0 {
		return GateDecision{
			Action:      ActionReject,
			Reason:      fmt.Sprintf("hard veto: %s", vetoes[0].Reason),
			Vetoed:      true,
			VetoSignals: vetoes,
		}
	}

	// --- Soft scoring ---
	changed := !p.Candidate.Equal(p.Current)
	reason := fmt.Sprintf("passed gate: improvement=%.4f", improvement)
	if !changed {
		reason = "passed gate: configuration unchanged"
	}
	return GateDecision{
		Action:    ActionCommit,
		Reason:    reason,
		Changed:   changed,
		SoftScore: improvement,
	}
}

// #endregion gate
