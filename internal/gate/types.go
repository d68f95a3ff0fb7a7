package gate

import "github.com/danielpatrickdp/norm-revision/internal/configuration"

// #region veto-type
// VetoType enumerates hard veto categories.
type VetoType string

const (
	VetoNoCandidate   VetoType = "no_candidate"
	VetoEmptyConfig   VetoType = "empty_configuration"
	VetoUnscored      VetoType = "unscored"
	VetoNoImprovement VetoType = "no_improvement"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal represents a detected hard veto condition.
type VetoSignal struct {
	Type   VetoType
	Reason string
}

// #endregion veto-signal

// #region gate-config
// GateConfig holds the acceptance rules for a revised configuration.
type GateConfig struct {
	RequireImprovement bool    // veto a proposal scoring below the current configuration
	Tolerance          float64 // score slack allowed when RequireImprovement is set
}

// DefaultGateConfig always adopts the best selected configuration.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		RequireImprovement: false,
		Tolerance:          1e-9,
	}
}

// #endregion gate-config

// #region proposal
// Proposal is the outcome of one revision pass offered to the gate.
type Proposal struct {
	Current        configuration.Configuration
	CurrentScore   float64
	Candidate      configuration.Configuration
	CandidateScore float64
	Found          bool // false when selection ranked nothing
}

// #endregion proposal

// #region gate-decision
// Actions of a gate decision.
const (
	ActionCommit = "commit"
	ActionReject = "reject"
)

// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Action      string // ActionCommit | ActionReject
	Reason      string
	Vetoed      bool
	VetoSignals []VetoSignal // non-empty if vetoed
	Changed     bool         // the committed configuration differs from the current one
	SoftScore   float64      // candidate minus current score (for logging)
}

// #endregion gate-decision
