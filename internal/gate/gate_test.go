package gate

import (
	"testing"

	"github.com/danielpatrickdp/norm-revision/internal/configuration"
	"github.com/danielpatrickdp/norm-revision/internal/norm"
)

func makeConfig(speed string) configuration.Configuration {
	return configuration.FromNorms(norm.Must("MSN", norm.KindMaxSpeed,
		[][]string{{"condpos:km2"}},
		[][]string{{"speed:" + speed}},
		[][]string{{"deadpos:km5"}},
	))
}

func TestGateCommitOnBetterCandidate(t *testing.T) {
	g := NewGate(DefaultGateConfig())

	decision := g.Evaluate(Proposal{
		Current:        makeConfig("20"),
		CurrentScore:   0.5,
		Candidate:      makeConfig("30"),
		CandidateScore: 0.8,
		Found:          true,
	})

	if decision.Action != ActionCommit {
		t.Fatalf("expected commit, got %s: %s", decision.Action, decision.Reason)
	}
	if decision.Vetoed {
		t.Fatal("should not be vetoed")
	}
	if !decision.Changed {
		t.Fatal("expected Changed")
	}
	if d := decision.SoftScore - 0.3; d > 1e-9 || d < -1e-9 {
		t.Fatalf("expected soft score 0.3, got %v", decision.SoftScore)
	}
}

func TestGateRejectOnNoCandidate(t *testing.T) {
	g := NewGate(DefaultGateConfig())

	decision := g.Evaluate(Proposal{Current: makeConfig("20"), CurrentScore: 0.5})

	if decision.Action != ActionReject {
		t.Fatalf("expected reject, got %s", decision.Action)
	}
	if !decision.Vetoed {
		t.Fatal("should be vetoed")
	}
	if len(decision.VetoSignals) != 1 || decision.VetoSignals[0].Type != VetoNoCandidate {
		t.Fatalf("expected a single VetoNoCandidate, got %+v", decision.VetoSignals)
	}
}

func TestGateRejectOnEmptyConfiguration(t *testing.T) {
	g := NewGate(DefaultGateConfig())

	decision := g.Evaluate(Proposal{
		Current:        makeConfig("20"),
		Candidate:      configuration.Configuration{},
		CandidateScore: 0.9,
		Found:          true,
	})

	if decision.Action != ActionReject || decision.VetoSignals[0].Type != VetoEmptyConfig {
		t.Fatalf("expected empty-configuration veto, got %+v", decision)
	}
}

func TestGateRejectOnUnscoredCandidate(t *testing.T) {
	g := NewGate(DefaultGateConfig())

	decision := g.Evaluate(Proposal{
		Current:        makeConfig("20"),
		Candidate:      makeConfig("30"),
		CandidateScore: -1,
		Found:          true,
	})

	if !decision.Vetoed || decision.VetoSignals[0].Type != VetoUnscored {
		t.Fatalf("expected unscored veto, got %+v", decision)
	}
}

func TestGateAdoptsWorseCandidateByDefault(t *testing.T) {
	g := NewGate(DefaultGateConfig())

	decision := g.Evaluate(Proposal{
		Current:        makeConfig("20"),
		CurrentScore:   0.9,
		Candidate:      makeConfig("30"),
		CandidateScore: 0.4,
		Found:          true,
	})

	if decision.Action != ActionCommit {
		t.Fatalf("expected commit, got %s: %s", decision.Action, decision.Reason)
	}
	if decision.SoftScore >= 0 {
		t.Fatalf("expected negative soft score, got %v", decision.SoftScore)
	}
}

func TestGateRequireImprovement(t *testing.T) {
	config := DefaultGateConfig()
	config.RequireImprovement = true
	g := NewGate(config)

	worse := g.Evaluate(Proposal{
		Current:        makeConfig("20"),
		CurrentScore:   0.9,
		Candidate:      makeConfig("30"),
		CandidateScore: 0.4,
		Found:          true,
	})
	if worse.Action != ActionReject || worse.VetoSignals[0].Type != VetoNoImprovement {
		t.Fatalf("expected no-improvement veto, got %+v", worse)
	}

	equal := g.Evaluate(Proposal{
		Current:        makeConfig("20"),
		CurrentScore:   0.9,
		Candidate:      makeConfig("20"),
		CandidateScore: 0.9,
		Found:          true,
	})
	if equal.Action != ActionCommit {
		t.Fatalf("expected commit on equal score, got %s: %s", equal.Action, equal.Reason)
	}
	if equal.Changed {
		t.Fatal("same configuration should not be marked changed")
	}
}
