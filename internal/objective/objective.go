package objective

import (
	"fmt"

	"github.com/danielpatrickdp/norm-revision/internal/norm"
	"github.com/danielpatrickdp/norm-revision/internal/trace"
)

// #region labeler-config
// Mode selects how a trace's objective is judged.
type Mode string

const (
	// ModeThreshold requires peak emission and travel time under the limits.
	ModeThreshold Mode = "threshold"
	// ModeReferenceNorm requires the trace to obey a fixed reference norm.
	ModeReferenceNorm Mode = "reference_norm"
)

// LabelerConfig holds the objective thresholds.
type LabelerConfig struct {
	Mode          Mode    `yaml:"mode"`
	MaxEmission   float64 `yaml:"max_emission"`    // peak CO2 per trace
	MaxTravelTime float64 `yaml:"max_travel_time"` // elapsed seconds per trace
	TargetRate    float64 `yaml:"target_rate"`     // share of traces that must achieve the objective
}

// DefaultLabelerConfig returns the default objective thresholds.
func DefaultLabelerConfig() LabelerConfig {
	return LabelerConfig{
		Mode:          ModeThreshold,
		MaxEmission:   100,
		MaxTravelTime: 45,
		TargetRate:    1.1,
	}
}

// ReferenceNorm is the hidden rule used in ModeReferenceNorm: trucks past km3
// must stay below 19 until km9.
func ReferenceNorm() *norm.Norm {
	return norm.Must("FMSN", norm.KindMaxSpeed,
		[][]string{{"appl:" + trace.AgentTruck, "condpos:km3"}},
		[][]string{{"appl:" + trace.AgentTruck, "speed:19"}},
		[][]string{{"deadpos:km9"}},
	)
}

// #endregion labeler-config

// #region labeler
// Labeler evaluates traces against the system objective.
type Labeler struct {
	config    LabelerConfig
	reference *norm.Norm
}

// NewLabeler creates a labeler. An unknown mode is an error.
func NewLabeler(config LabelerConfig) (*Labeler, error) {
	l := &Labeler{config: config}
	switch config.Mode {
	case ModeThreshold:
	case ModeReferenceNorm:
		l.reference = ReferenceNorm()
	default:
		return nil, fmt.Errorf("unknown objective mode %q", config.Mode)
	}
	return l, nil
}

// Measure returns the peak emission and the latest elapsed time over every
// state but the last, whose segment the norms do not govern.
func Measure(t trace.Trace) (peakEmission, travelTime float64) {
	for i := 0; i < len(t.States)-1; i++ {
		s := t.States[i]
		peakEmission = max(peakEmission, s.Emission)
		travelTime = max(travelTime, s.Elapsed)
	}
	return peakEmission, travelTime
}

// Achieved reports whether t meets the objective.
func (l *Labeler) Achieved(t trace.Trace) bool {
	if l.reference != nil {
		return !l.reference.Violated(t)
	}
	peak, tt := Measure(t)
	return peak <= l.config.MaxEmission && tt <= l.config.MaxTravelTime
}

// Label returns copies of traces carrying their measures and objective label.
func (l *Labeler) Label(traces []trace.Trace) []trace.Trace {
	out := make([]trace.Trace, len(traces))
	for i, t := range traces {
		peak, tt := Measure(t)
		out[i] = t.WithObjective(peak, tt, l.Achieved(t))
	}
	return out
}

// RateAchieved reports whether the share of achieving traces reaches the
// target rate. A target above 1 is never reached.
func (l *Labeler) RateAchieved(labeled []trace.Trace) bool {
	return trace.ObjectiveRate(labeled) >= l.config.TargetRate
}

// #endregion labeler
