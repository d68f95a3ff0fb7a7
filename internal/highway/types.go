package highway

// #region sim-config
// SimConfig parameterises the synthetic highway.
type SimConfig struct {
	Traces        int     `yaml:"traces"`         // completed vehicle runs to collect
	TruckShare    float64 `yaml:"truck_share"`    // probability a vehicle is a truck
	ViolationRate float64 `yaml:"violation_rate"` // per norm, probability a vehicle ignores it
	Segments      int     `yaml:"segments"`       // highway length in km segments
	SegmentLength float64 `yaml:"segment_length"` // metres per segment
	LeaderRate    float64 `yaml:"leader_rate"`    // probability a vehicle has a leader in a segment
}

// DefaultSimConfig returns the default highway parameters.
func DefaultSimConfig() SimConfig {
	return SimConfig{
		Traces:        1500,
		TruckShare:    0.5,
		ViolationRate: 0.25,
		Segments:      10,
		SegmentLength: 100,
		LeaderRate:    0.7,
	}
}

// #endregion sim-config

// #region vehicle-profile
// profile is the unconstrained behaviour of a vehicle type.
type profile struct {
	maxSpeed    float64 // m/s
	minGap      float64 // m
	emissionCoe float64 // g/s per (m/s)^2
}

var profiles = map[string]profile{
	"car":   {maxSpeed: 36, minGap: 2.5, emissionCoe: 0.09},
	"truck": {maxSpeed: 25, minGap: 4, emissionCoe: 0.16},
}

// #endregion vehicle-profile
