package replay

import (
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/norm-revision/internal/configuration"
	"github.com/danielpatrickdp/norm-revision/internal/dnr"
	"github.com/danielpatrickdp/norm-revision/internal/eval"
	"github.com/danielpatrickdp/norm-revision/internal/gate"
	"github.com/danielpatrickdp/norm-revision/internal/synth"
	"github.com/danielpatrickdp/norm-revision/internal/trace"
)

// #region types
// Round actions.
const (
	ActionCommit     = "commit"      // a different configuration was adopted
	ActionNoOp       = "no_op"       // the gate passed the current configuration back
	ActionGateReject = "gate_reject" // the gate kept the current configuration
)

// ReplayConfig bundles the revision, gate and eval settings of a replay run.
type ReplayConfig struct {
	Strategy synth.Strategy
	Rounds   int
	Seed     uint64
	Engine   dnr.Config
	Eval     eval.EvalConfig
}

// DefaultReplayConfig returns four weakening rounds with the default engine.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Strategy: synth.Weakening,
		Rounds:   4,
		Seed:     1,
		Engine:   dnr.DefaultConfig(),
		Eval:     eval.DefaultEvalConfig(),
	}
}

// ReplayResult captures the outcome of one revision round.
type ReplayResult struct {
	Round  int
	Action string
	Reason string

	Candidates   map[string]int // candidate count per norm id
	Ranked       int
	GateDecision gate.GateDecision
	EvalResult   eval.EvalResult

	Score       float64 // quality of the configuration kept after the round
	FinalConfig string  // Key of the configuration kept after the round
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalRounds int
	Commits     int
	NoOps       int
	GateRejects int
	FinalConfig configuration.Configuration
}

// #endregion types

// #region replay
// Session runs repeated revision rounds with one engine and eval harness.
type Session struct {
	config  ReplayConfig
	engine  *dnr.Engine
	harness *eval.EvalHarness
}

// NewSession creates a session. A nil logger is replaced by a no-op one.
func NewSession(config ReplayConfig, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		config:  config,
		engine:  dnr.New(config.Engine, log),
		harness: eval.NewEvalHarness(config.Eval),
	}
}

// Engine returns the revision engine of the session.
func (s *Session) Engine() *dnr.Engine {
	return s.engine
}

// Harness returns the eval harness of the session.
func (s *Session) Harness() *eval.EvalHarness {
	return s.harness
}

// Run feeds each round's kept configuration into the next. independent is
// the optional held-out test set of the eval harness.
func (s *Session) Run(start configuration.Configuration, traces, independent []trace.Trace, rng *rand.Rand) ([]ReplayResult, configuration.Configuration, error) {
	current := start
	results := make([]ReplayResult, 0, max(s.config.Rounds, 0))
	for round := 0; round < s.config.Rounds; round++ {
		// 1. Revise
		res, err := s.engine.Revise(s.config.Strategy, current, traces, rng)
		if err != nil {
			return results, current, fmt.Errorf("round %d: %w", round, err)
		}

		// 2. Evaluate the pair the gate saw
		revised := configuration.Configuration{}
		if res.Found {
			revised = res.Best.Config
		}
		evalResult, err := s.harness.EvaluatePair(current, revised, traces, independent, rng)
		if err != nil {
			return results, current, fmt.Errorf("round %d: evaluate: %w", round, err)
		}

		// 3. Commit or keep
		action := ActionGateReject
		if res.Decision.Action == gate.ActionCommit {
			action = ActionNoOp
			if res.Decision.Changed {
				action = ActionCommit
			}
			current = res.Next
		}

		score, err := eval.Quality(s.config.Engine.Selection.Metric, current, traces)
		if err != nil {
			return results, current, fmt.Errorf("round %d: score: %w", round, err)
		}
		results = append(results, ReplayResult{
			Round:        round,
			Action:       action,
			Reason:       res.Decision.Reason,
			Candidates:   res.Candidates.Sizes(),
			Ranked:       len(res.Ranked),
			GateDecision: res.Decision,
			EvalResult:   evalResult,
			Score:        score,
			FinalConfig:  current.Key(),
		})
	}
	return results, current, nil
}

// Replay runs config.Rounds revision rounds over a fixed trace batch, seeded
// from config.Seed. Operates entirely in-memory and returns the results plus
// the final configuration.
func Replay(start configuration.Configuration, traces []trace.Trace, config ReplayConfig, log *zap.Logger) ([]ReplayResult, configuration.Configuration, error) {
	rng := rand.New(rand.NewPCG(config.Seed, 0))
	return NewSession(config, log).Run(start, traces, nil, rng)
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult, final configuration.Configuration) ReplaySummary {
	s := ReplaySummary{
		TotalRounds: len(results),
		FinalConfig: final,
	}
	for _, r := range results {
		switch r.Action {
		case ActionCommit:
			s.Commits++
		case ActionNoOp:
			s.NoOps++
		case ActionGateReject:
			s.GateRejects++
		}
	}
	return s
}

// #endregion replay
