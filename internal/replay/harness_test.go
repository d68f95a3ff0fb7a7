package replay

import (
	"testing"

	"github.com/danielpatrickdp/norm-revision/internal/configuration"
	"github.com/danielpatrickdp/norm-revision/internal/eval"
	"github.com/danielpatrickdp/norm-revision/internal/norm"
	"github.com/danielpatrickdp/norm-revision/internal/synth"
	"github.com/danielpatrickdp/norm-revision/internal/trace"
)

// helper: car run with one state per segment, starting at km1.
func run(id string, speeds []float64, achieved bool) trace.Trace {
	states := make([]trace.State, len(speeds))
	for i, s := range speeds {
		states[i] = trace.NewState(i+1, s, 50, trace.AgentCar, 0, 0)
	}
	return trace.Trace{ID: id, States: states, ObjectiveAchieved: achieved}
}

// helper: speed limit of 20 from km2 until km6. Flags a, b, c and d below.
func strict() configuration.Configuration {
	return configuration.FromNorms(norm.Must("MSN", norm.KindMaxSpeed,
		[][]string{{"condpos:km2"}},
		[][]string{{"speed:20"}},
		[][]string{{"deadpos:km6"}},
	))
}

// helper: two compliant-looking runs met the objective, two fast ones did not.
func traces() []trace.Trace {
	return []trace.Trace{
		run("a", []float64{10, 22, 24, 12, 10, 10}, true),
		run("b", []float64{10, 25, 12, 12, 10, 10}, true),
		run("c", []float64{10, 12, 35, 34, 10, 10}, false),
		run("d", []float64{10, 33, 31, 12, 10, 10}, false),
		run("e", []float64{10, 12, 12, 12, 10, 10}, true),
	}
}

func withRounds(strategy synth.Strategy, rounds int) ReplayConfig {
	c := DefaultReplayConfig()
	c.Strategy = strategy
	c.Rounds = rounds
	return c
}

// 1. Full commit path: weakening finds a looser limit → action="commit", configuration advances.
func TestReplay_FullCommitPath(t *testing.T) {
	start := strict()
	results, final, err := Replay(start, traces(), withRounds(synth.Weakening, 1), nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	r := results[0]
	if r.Action != ActionCommit {
		t.Errorf("expected action=commit, got %s (reason: %s)", r.Action, r.Reason)
	}
	if final.Equal(start) {
		t.Error("expected configuration to advance")
	}
	if r.FinalConfig != final.Key() {
		t.Errorf("FinalConfig %q does not match returned configuration %q", r.FinalConfig, final.Key())
	}
	if r.Score != 1 {
		t.Errorf("expected score=1, got %v", r.Score)
	}
	if r.Candidates["MSN"] < 2 {
		t.Errorf("expected several MSN candidates, got %d", r.Candidates["MSN"])
	}
	if !r.EvalResult.Revised {
		t.Error("expected EvalResult to carry the revised configuration")
	}
}

// 2. Gate rejection: empty configuration → action="gate_reject", nothing to rank.
func TestReplay_GateRejection(t *testing.T) {
	results, final, err := Replay(configuration.Configuration{}, traces(), withRounds(synth.Weakening, 1), nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	r := results[0]
	if r.Action != ActionGateReject {
		t.Errorf("expected action=gate_reject, got %s", r.Action)
	}
	if !r.GateDecision.Vetoed {
		t.Error("expected a vetoed decision")
	}
	if r.Ranked != 0 {
		t.Errorf("expected 0 ranked, got %d", r.Ranked)
	}
	if !final.IsEmpty() {
		t.Errorf("expected empty configuration, got %s", final)
	}
	if r.Score != eval.Unscored {
		t.Errorf("expected unscored, got %v", r.Score)
	}
}

// 3. Required improvement: a tie with the current score still passes the gate,
// so a perfect configuration survives a second round.
func TestReplay_RequireImprovement(t *testing.T) {
	config := withRounds(synth.Weakening, 2)
	config.Engine.Gate.RequireImprovement = true

	results, _, err := Replay(strict(), traces(), config, nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if results[0].Action != ActionCommit {
		t.Errorf("round 0: expected commit, got %s", results[0].Action)
	}
	if results[1].Action == ActionGateReject {
		t.Errorf("round 1: unexpected gate_reject (reason: %s)", results[1].Reason)
	}
	if results[1].Score != 1 {
		t.Errorf("round 1: expected score=1, got %v", results[1].Score)
	}
}

// 4. No-op: strategy none → action="no_op", configuration unchanged.
func TestReplay_NoOp(t *testing.T) {
	start := strict()
	results, final, err := Replay(start, traces(), withRounds(synth.None, 1), nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	r := results[0]
	if r.Action != ActionNoOp {
		t.Errorf("expected action=no_op, got %s", r.Action)
	}
	if !final.Equal(start) {
		t.Errorf("expected unchanged configuration, got %s", final)
	}
	if r.Score != 0.6 {
		t.Errorf("expected score=0.6, got %v", r.Score)
	}
	// An unchanged configuration scores the same on both sides.
	if r.EvalResult.Improvement() != 0 {
		t.Errorf("expected zero improvement, got %v", r.EvalResult.Improvement())
	}
}

// 5. Multi-round progression: each round starts from the previous kept configuration
// and the kept score never drops.
func TestReplay_MultiRound(t *testing.T) {
	results, final, err := Replay(strict(), traces(), withRounds(synth.Alteration, 3), nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	prev := 0.6
	for i, r := range results {
		if r.Round != i {
			t.Errorf("result %d: expected round=%d, got %d", i, i, r.Round)
		}
		if r.Score < prev {
			t.Errorf("round %d: score dropped from %v to %v", i, prev, r.Score)
		}
		prev = r.Score
	}
	if results[2].FinalConfig != final.Key() {
		t.Error("last result must describe the returned configuration")
	}
}

// 6. Config passthrough: Monte Carlo sampling bounds how many configurations are ranked.
func TestReplay_ConfigPassthrough(t *testing.T) {
	config := withRounds(synth.Alteration, 1)
	config.Engine.Selection.Samples = 2

	results, _, err := Replay(strict(), traces(), config, nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if results[0].Ranked > 2 {
		t.Errorf("expected at most 2 ranked configurations, got %d", results[0].Ranked)
	}

	exhaustive, _, err := Replay(strict(), traces(), withRounds(synth.Alteration, 1), nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if exhaustive[0].Ranked <= results[0].Ranked {
		t.Errorf("expected exhaustive selection to rank more (%d vs %d)", exhaustive[0].Ranked, results[0].Ranked)
	}
}

// 7. Summarize: counts match result actions.
func TestReplay_Summarize(t *testing.T) {
	results := []ReplayResult{
		{Action: ActionCommit},
		{Action: ActionNoOp},
		{Action: ActionGateReject},
		{Action: ActionCommit},
	}
	s := Summarize(results, strict())

	if s.TotalRounds != 4 {
		t.Errorf("expected TotalRounds=4, got %d", s.TotalRounds)
	}
	if s.Commits != 2 {
		t.Errorf("expected Commits=2, got %d", s.Commits)
	}
	if s.NoOps != 1 {
		t.Errorf("expected NoOps=1, got %d", s.NoOps)
	}
	if s.GateRejects != 1 {
		t.Errorf("expected GateRejects=1, got %d", s.GateRejects)
	}
	if !s.FinalConfig.Equal(strict()) {
		t.Error("expected FinalConfig to pass through")
	}
}

// 8. Deterministic: same inputs and seed → same outputs.
func TestReplay_Deterministic(t *testing.T) {
	config := withRounds(synth.Alteration, 3)
	config.Engine.Selection.Samples = 5
	config.Seed = 42

	r1, f1, err := Replay(strict(), traces(), config, nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	r2, f2, err := Replay(strict(), traces(), config, nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if !f1.Equal(f2) {
		t.Errorf("final configurations differ: %s vs %s", f1, f2)
	}
	for i := range r1 {
		if r1[i].Action != r2[i].Action || r1[i].Score != r2[i].Score || r1[i].FinalConfig != r2[i].FinalConfig {
			t.Errorf("round %d differs: %+v vs %+v", i, r1[i], r2[i])
		}
	}
}

// 9. Zero rounds: nothing to replay.
func TestReplay_ZeroRounds(t *testing.T) {
	results, final, err := Replay(strict(), traces(), withRounds(synth.Weakening, 0), nil)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
	if !final.Equal(strict()) {
		t.Error("expected start configuration back")
	}
}
