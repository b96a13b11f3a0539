package engine

import (
	"errors"
	"fmt"

	"wyckoff/internal/campaign"
)

// ErrCampaignNotFound is returned when a caller addresses a campaign id the
// engine does not own. This is a contract violation, not a business rejection.
var ErrCampaignNotFound = errors.New("campaign not found")

// StateTransitionError reports an illegal lifecycle transition request. It is
// surfaced to the caller, never silently coerced.
type StateTransitionError struct {
	CampaignID string
	From, To   campaign.CampaignState
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("illegal state transition %s -> %s for campaign %s", e.From, e.To, e.CampaignID)
}

// ReasonCode classifies why a pattern was not accepted.
type ReasonCode string

const (
	ReasonSequenceInvalid ReasonCode = "sequence-invalid"
	ReasonRiskRejected    ReasonCode = "risk-rejected"
	ReasonExpired         ReasonCode = "expired"
	ReasonDuplicate       ReasonCode = "duplicate"
)

// Result is the outcome of an AddPattern call. Rejections are business
// results, not errors: Code and Reason carry enough detail for downstream
// audit logging.
type Result struct {
	Accepted bool               `json:"accepted"`
	Campaign *campaign.Campaign `json:"campaign,omitempty"`
	Code     ReasonCode         `json:"code,omitempty"`
	Reason   string             `json:"reason,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
}
