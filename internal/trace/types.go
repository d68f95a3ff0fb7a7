package trace

import "fmt"

// #region agent-types
const (
	AgentCar   = "car"
	AgentTruck = "truck"
)

// AgentTypes lists every agent type a highway state can carry.
var AgentTypes = []string{AgentCar, AgentTruck}

// #endregion agent-types

// NoLeaderDistance replaces a negative distance, which the simulator reports
// when no vehicle is ahead.
const NoLeaderDistance = 1_000_000

// PositionPrefix is the label prefix of a highway segment ("km3").
const PositionPrefix = "km"

// #region state
// State is one observation of an agent. Read-only once created.
type State struct {
	Position  int     `json:"position"`  // ordinal segment k of label "km<k>"
	Speed     float64 `json:"speed"`
	Distance  float64 `json:"distance"`  // gap to the leading vehicle
	AgentType string  `json:"agent_type"`
	Emission  float64 `json:"emission"`
	Elapsed   float64 `json:"elapsed"`
}

// NewState builds a State, mapping a negative distance to NoLeaderDistance.
func NewState(position int, speed, distance float64, agentType string, emission, elapsed float64) State {
	if distance < 0 {
		distance = NoLeaderDistance
	}
	return State{
		Position:  position,
		Speed:     speed,
		Distance:  distance,
		AgentType: agentType,
		Emission:  emission,
		Elapsed:   elapsed,
	}
}

// Label renders the position as "km<k>".
func (s State) Label() string {
	return PositionLabel(s.Position)
}

func (s State) String() string {
	return fmt.Sprintf("(%s, speed=%.1f, dist=%.1f, %s)", s.Label(), s.Speed, s.Distance, s.AgentType)
}

// PositionLabel renders a segment index as "km<k>".
func PositionLabel(k int) string {
	return fmt.Sprintf("%s%d", PositionPrefix, k)
}

// #endregion state

// #region trace
// Trace is the ordered state sequence of one agent run plus its labels.
// PeakEmission, TravelTime and ObjectiveAchieved are set once by the
// objective labeler. NormViolated holds one entry per norm id after a
// configuration labeling pass.
type Trace struct {
	ID                string          `json:"id"`
	States            []State         `json:"states"`
	NormViolated      map[string]bool `json:"norm_violated,omitempty"`
	PeakEmission      float64         `json:"peak_emission"`
	TravelTime        float64         `json:"travel_time"`
	ObjectiveAchieved bool            `json:"objective_achieved"`
}

// Len returns the number of states.
func (t Trace) Len() int {
	return len(t.States)
}

// AgentType returns the type of the agent that produced the trace, or "" when empty.
func (t Trace) AgentType() string {
	if len(t.States) == 0 {
		return ""
	}
	return t.States[0].AgentType
}

// Clone returns a deep copy.
func (t Trace) Clone() Trace {
	c := t
	c.States = append([]State(nil), t.States...)
	if t.NormViolated != nil {
		c.NormViolated = make(map[string]bool, len(t.NormViolated))
		for k, v := range t.NormViolated {
			c.NormViolated[k] = v
		}
	}
	return c
}

// WithNormLabel returns a copy carrying the violation label for normID.
func (t Trace) WithNormLabel(normID string, violated bool) Trace {
	c := t.Clone()
	if c.NormViolated == nil {
		c.NormViolated = make(map[string]bool, 1)
	}
	c.NormViolated[normID] = violated
	return c
}

// WithObjective returns a copy carrying the objective evaluation.
func (t Trace) WithObjective(peakEmission, travelTime float64, achieved bool) Trace {
	c := t.Clone()
	c.PeakEmission = peakEmission
	c.TravelTime = travelTime
	c.ObjectiveAchieved = achieved
	return c
}

// #endregion trace
