package campaign

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PatternType is the closed set of Wyckoff pattern detections the engine accepts.
type PatternType string

const (
	PatternSellingClimax      PatternType = "SELLING_CLIMAX"
	PatternAutomaticRally     PatternType = "AUTOMATIC_RALLY"
	PatternSecondaryTest      PatternType = "SECONDARY_TEST"
	PatternSpring             PatternType = "SPRING"
	PatternSignOfStrength     PatternType = "SIGN_OF_STRENGTH"
	PatternLastPointOfSupport PatternType = "LAST_POINT_OF_SUPPORT"
	PatternUpthrust           PatternType = "UPTHRUST_AFTER_DISTRIBUTION"
)

// KnownPattern reports whether the detector-supplied type is part of the closed set.
func KnownPattern(t PatternType) bool {
	switch t {
	case PatternSellingClimax, PatternAutomaticRally, PatternSecondaryTest,
		PatternSpring, PatternSignOfStrength, PatternLastPointOfSupport, PatternUpthrust:
		return true
	}
	return false
}

// VolumeLevel summarizes the volume evidence attached to a detection.
type VolumeLevel string

const (
	VolumeLow    VolumeLevel = "LOW"
	VolumeNormal VolumeLevel = "NORMAL"
	VolumeHigh   VolumeLevel = "HIGH"
)

// VolumeEvidence carries the detector's volume context for a pattern bar.
// Ratio is bar volume relative to its lookback average.
type VolumeEvidence struct {
	Level VolumeLevel     `json:"level"`
	Ratio decimal.Decimal `json:"ratio"`
}

// TradingRange anchors a campaign to the price structure the patterns belong to.
type TradingRange struct {
	Low  decimal.Decimal `json:"low"`
	High decimal.Decimal `json:"high"`
}

// Key returns a stable identifier for the range, used to key campaigns per
// (symbol, range).
func (r TradingRange) Key() string {
	return r.Low.String() + "-" + r.High.String()
}

func (r TradingRange) IsZero() bool {
	return r.Low.IsZero() && r.High.IsZero()
}

// PatternEvent is a single detection pushed by the pattern-recognition
// collaborator. Immutable once created; the engine never mutates it.
type PatternEvent struct {
	ID         string          `json:"id"`
	Symbol     string          `json:"symbol"`
	Timeframe  string          `json:"timeframe"`
	Type       PatternType     `json:"type"`
	Range      TradingRange    `json:"range"`
	Price      decimal.Decimal `json:"price"`
	Volume     VolumeEvidence  `json:"volume"`
	Confidence float64         `json:"confidence"`
	// RiskPct is the risk-at-stake the detector sizes for this entry,
	// expressed as a percentage of account equity.
	RiskPct    decimal.Decimal `json:"risk_pct"`
	DetectedAt time.Time       `json:"detected_at"`
}

// CampaignKey identifies the single non-terminal campaign slot for the event.
func (e PatternEvent) CampaignKey() string {
	return strings.ToUpper(strings.TrimSpace(e.Symbol)) + "|" + e.Range.Key()
}

// Validate checks the structural fields an event must carry before the engine
// will even look at it.
func (e PatternEvent) Validate() error {
	if strings.TrimSpace(e.Symbol) == "" {
		return fmt.Errorf("pattern event missing symbol")
	}
	if !KnownPattern(e.Type) {
		return fmt.Errorf("unknown pattern type: %s", e.Type)
	}
	if e.Price.IsNegative() || e.Price.IsZero() {
		return fmt.Errorf("pattern event requires positive price, got %s", e.Price)
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("confidence must be within [0,1], got %.4f", e.Confidence)
	}
	if e.RiskPct.IsNegative() {
		return fmt.Errorf("risk_pct cannot be negative, got %s", e.RiskPct)
	}
	return nil
}
