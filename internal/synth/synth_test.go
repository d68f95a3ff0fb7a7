package synth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/danielpatrickdp/norm-revision/internal/configuration"
	"github.com/danielpatrickdp/norm-revision/internal/norm"
	"github.com/danielpatrickdp/norm-revision/internal/trace"
)

// #region helpers
func speedLimit() *norm.Norm {
	return norm.Must("MSN", norm.KindMaxSpeed,
		[][]string{{"condpos:km2"}},
		[][]string{{"speed:20"}},
		[][]string{{"deadpos:km6"}},
	)
}

func run(id, agent string, points ...[2]float64) trace.Trace {
	states := make([]trace.State, len(points))
	for i, p := range points {
		states[i] = trace.NewState(int(p[0]), p[1], 50, agent, 0, 0)
	}
	return trace.Trace{ID: id, States: states}
}

func batch() []trace.Trace {
	return []trace.Trace{
		run("v1", trace.AgentCar, [2]float64{1, 10}, [2]float64{2, 15}, [2]float64{3, 25}, [2]float64{4, 30}, [2]float64{6, 10}),
		run("v2", trace.AgentTruck, [2]float64{2, 22}, [2]float64{5, 12}, [2]float64{7, 12}),
		run("o1", trace.AgentCar, [2]float64{1, 35}, [2]float64{2, 10}, [2]float64{4, 18}, [2]float64{6, 30}, [2]float64{7, 10}),
		run("o2", trace.AgentTruck, [2]float64{1, 12}, [2]float64{3, 19}, [2]float64{5, 19}, [2]float64{8, 33}),
	}
}

func violatedSet(n *norm.Norm, traces []trace.Trace) map[string]bool {
	out := make(map[string]bool)
	for _, t := range traces {
		if n.Violated(t) {
			out[t.ID] = true
		}
	}
	return out
}

// #endregion helpers

func TestSynthesize_NoneKeepsNorm(t *testing.T) {
	n := speedLimit()
	for _, strategy := range []Strategy{None, "-", ""} {
		got, err := New(nil).Synthesize(strategy, configuration.FromNorms(n), batch())
		require.NoError(t, err, "strategy %q", strategy)
		require.Len(t, got["MSN"], 1, "strategy %q", strategy)
		assert.Same(t, n, got["MSN"][0], "strategy %q", strategy)
	}
}

func TestSynthesize_EveryStrategyIncludesOriginal(t *testing.T) {
	n := speedLimit()
	cfg := configuration.FromNorms(n)
	s := New(nil)

	for _, strategy := range Strategies {
		got, err := s.Synthesize(strategy, cfg, batch())
		require.NoError(t, err, strategy)
		assert.True(t, got.Contains(n), "%s must keep the original norm", strategy)
		assert.Greater(t, len(got["MSN"]), 1, "%s should find revisions", strategy)
		for _, c := range got["MSN"] {
			assert.False(t, c.IsEmpty())
		}
	}
}

func TestSynthesize_StrengthenThenWeakenKeepsOriginal(t *testing.T) {
	n := speedLimit()
	s := New(nil)

	strong, err := s.Synthesize(Strengthening, configuration.FromNorms(n), batch())
	require.NoError(t, err)
	for _, c := range strong["MSN"] {
		weak, err := s.Synthesize(Weakening, configuration.FromNorms(c), batch())
		require.NoError(t, err)
		assert.True(t, weak.Contains(c), "weakening %s must keep it", c)
	}
}

func TestSynthesize_WeakeningNeverAddsViolations(t *testing.T) {
	n := speedLimit()
	traces := batch()
	base := violatedSet(n, traces)

	got, err := New(nil).Synthesize(Weakening, configuration.FromNorms(n), traces)
	require.NoError(t, err)
	for _, c := range got["MSN"] {
		for id := range violatedSet(c, traces) {
			assert.True(t, base[id], "%s violated on %s but the original is not", c, id)
		}
	}
}

func TestSynthesize_StrengtheningNeverRemovesViolations(t *testing.T) {
	n := speedLimit()
	traces := batch()
	base := violatedSet(n, traces)

	got, err := New(nil).Synthesize(Strengthening, configuration.FromNorms(n), traces)
	require.NoError(t, err)
	for _, c := range got["MSN"] {
		vs := violatedSet(c, traces)
		for id := range base {
			assert.True(t, vs[id], "%s no longer violated on %s", c, id)
		}
	}
}

func TestSynthesize_AlterationCoversBothDirections(t *testing.T) {
	n := speedLimit()
	cfg := configuration.FromNorms(n)
	s := New(nil)

	alt, err := s.Synthesize(Alteration, cfg, batch())
	require.NoError(t, err)
	for _, strategy := range []Strategy{Weakening, Strengthening} {
		got, err := s.Synthesize(strategy, cfg, batch())
		require.NoError(t, err)
		for _, c := range got["MSN"] {
			assert.True(t, alt.Contains(c), "alteration misses %s candidate %s", strategy, c)
		}
	}
}

func TestSynthesize_UnknownStrategy(t *testing.T) {
	_, err := New(nil).Synthesize("sideways", configuration.FromNorms(speedLimit()), nil)
	var us *UnknownStrategyError
	require.True(t, errors.As(err, &us))
	assert.Equal(t, "sideways", us.Name)
}

func TestSynthesize_ConstructionFailureIsLoggedNotFatal(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	s := New(zap.New(core))

	msn := speedLimit()
	mdn := norm.Must("MDN", norm.KindMinDistance,
		[][]string{{"condpos:km1"}},
		[][]string{{"dist:5"}},
		[][]string{{"deadpos:km9"}},
	)
	reg := configuration.Registry{
		{ID: "MSN", Kind: norm.Kind(99)},
		{ID: "MDN", Kind: norm.KindMinDistance},
	}
	cfg := configuration.New(reg, map[string]*norm.Norm{"MSN": msn, "MDN": mdn})

	got, err := s.Synthesize(Weakening, cfg, batch())
	require.NoError(t, err)
	assert.Empty(t, got["MSN"])
	assert.NotEmpty(t, got["MDN"])
	require.Equal(t, 1, logs.FilterField(zap.String("norm", "MSN")).Len())
}

func TestParseStrategy(t *testing.T) {
	for in, want := range map[string]Strategy{
		"weakening":     Weakening,
		"strengthening": Strengthening,
		"alteration":    Alteration,
		"none":          None,
		"-":             None,
	} {
		got, err := ParseStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseStrategy("random")
	require.Error(t, err)
}
