package campaign

// CampaignState is the lifecycle state of a campaign.
type CampaignState string

const (
	StateForming   CampaignState = "FORMING"
	StateActive    CampaignState = "ACTIVE"
	StateCompleted CampaignState = "COMPLETED"
	StateFailed    CampaignState = "FAILED"
	StateExpired   CampaignState = "EXPIRED"
)

// ValidTransitions is the directed lifecycle graph. Transitions never move
// backward and terminal states have no outgoing edges.
var ValidTransitions = map[CampaignState][]CampaignState{
	StateForming: {StateActive, StateFailed, StateExpired},
	StateActive:  {StateCompleted, StateFailed},
}

// CanTransition reports whether from → to is a legal lifecycle step.
func CanTransition(from, to CampaignState) bool {
	for _, s := range ValidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state has no outgoing transitions.
func (s CampaignState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateExpired:
		return true
	}
	return false
}

// StateInfo returns a human-readable description for notifications and the UI.
func StateInfo(s CampaignState) string {
	switch s {
	case StateForming:
		return "first pattern observed, awaiting confirmation"
	case StateActive:
		return "risk-validated, tradable"
	case StateCompleted:
		return "all positions closed per plan"
	case StateFailed:
		return "invalidated (stop level breached or structure broken)"
	case StateExpired:
		return "confirmation window lapsed"
	default:
		return "unknown state"
	}
}
