package norm

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/norm-revision/internal/trace"
)

// #region domain-bounds
const (
	SpaceParam = 8 // cap on numeric propositions fed to a power set

	MinSpeed = 10
	MaxSpeed = 40
	MinDist  = 0
	MaxDist  = 15
	MinPos   = 1
	MaxPos   = 10
)

// Applicability choices drawn when sampling a norm. "both" leaves the norm
// unrestricted; "false" restricts it to car and truck at once, which yields a
// norm that can never detach.
const (
	ApplBoth  = "both"
	ApplFalse = "false"
)

var possibleAppl = []string{ApplBoth, ApplFalse, trace.AgentCar, trace.AgentTruck}

// #endregion domain-bounds

// #region kind
// Kind selects the rule family of a norm.
type Kind int

const (
	KindMaxSpeed Kind = iota + 1
	KindMinDistance
)

func (k Kind) String() string {
	switch k {
	case KindMaxSpeed:
		return "max_speed"
	case KindMinDistance:
		return "min_distance"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// UnknownKindError is returned for a kind name or value with no semantics.
type UnknownKindError struct {
	Name string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown norm kind %q", e.Name)
}

// ParseKind maps "max_speed" and "min_distance" to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "max_speed", "MaxSpeed", "msn":
		return KindMaxSpeed, nil
	case "min_distance", "MinDistance", "mdn":
		return KindMinDistance, nil
	}
	return 0, &UnknownKindError{Name: s}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if _, err := axisFor(k); err != nil {
		return nil, err
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// #endregion kind

// #region axis
// axis is the prohibition dimension of a highway norm. Both kinds share the
// position semantics of condition and deadline and differ only here.
type axis struct {
	literal  LiteralType
	min, max int
	measure  func(trace.State) float64
	// holds reports whether a state measure satisfies a prohibition threshold.
	holds func(measure, threshold float64) bool
	// tighter reports whether threshold a is satisfied in fewer states than b.
	tighter func(a, b int) bool
}

var (
	speedAxis = axis{
		literal: Speed,
		min:     MinSpeed,
		max:     MaxSpeed,
		measure: func(s trace.State) float64 { return s.Speed },
		holds:   func(m, thr float64) bool { return m >= thr },
		tighter: func(a, b int) bool { return a > b },
	}
	distAxis = axis{
		literal: Dist,
		min:     MinDist,
		max:     MaxDist,
		measure: func(s trace.State) float64 { return s.Distance },
		holds:   func(m, thr float64) bool { return m <= thr },
		tighter: func(a, b int) bool { return a < b },
	}
)

func axisFor(k Kind) (axis, error) {
	switch k {
	case KindMaxSpeed:
		return speedAxis, nil
	case KindMinDistance:
		return distAxis, nil
	}
	return axis{}, &UnknownKindError{Name: k.String()}
}

// fold returns the tighter of a and b, i.e. the value an AND of both collapses to.
func (a axis) fold(x, y int) int {
	if a.tighter(x, y) {
		return x
	}
	return y
}

// proposition renders a state measure as the integer literal value mined from it.
func (a axis) proposition(s trace.State) string {
	return fmt.Sprintf("%d", int(math.Round(a.measure(s))))
}

// #endregion axis
