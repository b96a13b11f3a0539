package eventbus

import (
	"time"

	"wyckoff/internal/campaign"
	"wyckoff/internal/risk"
)

// EventType classifies lifecycle notifications.
type EventType string

const (
	// EventAny subscribes a handler to every event type.
	EventAny EventType = "*"

	EventCampaignFormed    EventType = "CAMPAIGN_FORMED"
	EventPatternAdded      EventType = "PATTERN_ADDED"
	EventCampaignActivated EventType = "CAMPAIGN_ACTIVATED"
	EventCampaignCompleted EventType = "CAMPAIGN_COMPLETED"
	EventCampaignFailed    EventType = "CAMPAIGN_FAILED"
	EventCampaignExpired   EventType = "CAMPAIGN_EXPIRED"
	EventPatternRejected   EventType = "PATTERN_REJECTED"
	EventHeatAlert         EventType = "HEAT_ALERT"
	EventCascadeAlert      EventType = "CASCADE_ALERT"
)

// Event is a lifecycle notification. The campaign payload is a snapshot
// sufficient to reconstruct state downstream without calling back into the
// engine; subscribers must treat it as read-only.
type Event struct {
	ID         string     `json:"id"`
	Type       EventType  `json:"type"`
	CampaignID string     `json:"campaign_id,omitempty"`
	Symbol     string     `json:"symbol,omitempty"`
	// CorrelationID links back to the pattern event that triggered the
	// notification.
	CorrelationID string              `json:"correlation_id,omitempty"`
	Campaign      *campaign.Campaign  `json:"campaign,omitempty"`
	Pattern       *campaign.PatternEvent `json:"pattern,omitempty"`
	Reason        string              `json:"reason,omitempty"`
	Warnings      []string            `json:"warnings,omitempty"`
	Cascade       *risk.CascadeSignal `json:"cascade,omitempty"`
	At            time.Time           `json:"at"`
}
