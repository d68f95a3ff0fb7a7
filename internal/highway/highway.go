// Package highway generates synthetic vehicle traces on a straight highway
// split into km segments. Vehicles either comply with every applicable norm
// or ignore a norm outright, so the produced batch carries a controlled share
// of violations.
package highway

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/norm-revision/internal/configuration"
	"github.com/danielpatrickdp/norm-revision/internal/norm"
	"github.com/danielpatrickdp/norm-revision/internal/trace"
)

// traceNamespace scopes the name-based trace ids.
var traceNamespace = uuid.MustParse("6f1c3a52-8a0e-4f43-9d2b-3d1f2b7c9e10")

// Simulator produces labeled-ready traces under a configuration.
type Simulator struct {
	config SimConfig
	log    *zap.Logger
}

// NewSimulator creates a simulator. A nil logger is replaced by a no-op one.
func NewSimulator(config SimConfig, log *zap.Logger) *Simulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Simulator{config: config, log: log}
}

// vehicle is one simulated agent: its type and, per norm id, whether it ignores the norm.
type vehicle struct {
	agentType string
	ignores   map[string]bool
}

// Run drives config.Traces vehicles through the highway under cfg. An empty
// configuration imposes no norms. All randomness is drawn from rng.
func (s *Simulator) Run(cfg configuration.Configuration, rng *rand.Rand) []trace.Trace {
	out := make([]trace.Trace, 0, s.config.Traces)
	for i := 0; i < s.config.Traces; i++ {
		v := s.spawn(cfg, rng)
		out = append(out, s.drive(v, cfg, rng))
	}
	s.log.Info("simulation finished",
		zap.Int("traces", len(out)),
		zap.String("config", cfg.String()),
	)
	return out
}

func (s *Simulator) spawn(cfg configuration.Configuration, rng *rand.Rand) vehicle {
	v := vehicle{agentType: trace.AgentCar, ignores: make(map[string]bool)}
	if rng.Float64() < s.config.TruckShare {
		v.agentType = trace.AgentTruck
	}
	for _, n := range cfg.Norms() {
		v.ignores[n.ID()] = rng.Float64() <= s.config.ViolationRate
	}
	return v
}

// drive produces one state per segment.
func (s *Simulator) drive(v vehicle, cfg configuration.Configuration, rng *rand.Rand) trace.Trace {
	p := profiles[v.agentType]
	desired := p.maxSpeed * (0.75 + 0.25*rng.Float64())

	states := make([]trace.State, 0, s.config.Segments)
	var elapsed float64
	for k := 1; k <= s.config.Segments; k++ {
		speedCap, gap := desired, p.minGap
		for _, n := range cfg.Norms() {
			if v.ignores[n.ID()] || !governs(n, v.agentType, k) {
				continue
			}
			thr, ok := n.ProhibitionThreshold(v.agentType)
			if !ok {
				continue
			}
			switch n.Kind() {
			case norm.KindMaxSpeed:
				speedCap = math.Min(speedCap, thr-0.5-rng.Float64())
			case norm.KindMinDistance:
				gap = math.Max(gap, thr+0.5+rng.Float64())
			}
		}

		speed := math.Max(1, speedCap*(0.9+0.1*rng.Float64()))
		dist := -1.0
		if rng.Float64() < s.config.LeaderRate {
			dist = gap + rng.ExpFloat64()*6
		}
		elapsed += s.config.SegmentLength / speed
		emission := p.emissionCoe * speed * speed * (0.9 + 0.2*rng.Float64())

		states = append(states, trace.NewState(k, speed, dist, v.agentType, emission, math.Round(elapsed)))
	}

	return trace.Trace{ID: traceID(rng), States: states}
}

// governs reports whether a complying vehicle restrains itself for n at
// segment k. Vehicles start one segment before detachment so they are
// already compliant when the norm detaches.
func governs(n *norm.Norm, agentType string, k int) bool {
	if !n.AppliesTo(agentType) {
		return false
	}
	return k >= n.DetachmentPosition(agentType)-1 && k < n.DeadlinePosition()
}

func traceID(rng *rand.Rand) string {
	return uuid.NewSHA1(traceNamespace, []byte(fmt.Sprintf("%016x", rng.Uint64()))).String()
}
