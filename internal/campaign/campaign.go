package campaign

import (
	"time"

	"github.com/shopspring/decimal"
)

// Campaign is a tracked sequence of related pattern detections on one
// (symbol, trading range). Owned by the engine: no other component mutates
// a campaign in place, everyone else works on clones.
type Campaign struct {
	ID     string        `json:"id"`
	Symbol string        `json:"symbol"`
	Range  TradingRange  `json:"range"`
	State  CampaignState `json:"state"`
	Phase  Phase         `json:"phase"`

	Events []PatternEvent `json:"events"`

	// WeightedEntry is the risk-weighted average entry price across accepted
	// events; falls back to a simple average when no event carries risk.
	WeightedEntry decimal.Decimal `json:"weighted_entry"`
	// HeatPct is the campaign's risk-at-stake as a percentage of account
	// equity. It only ever grows while a campaign is non-terminal.
	HeatPct decimal.Decimal `json:"heat_pct"`

	CorrelationGroup string `json:"correlation_group"`
	Currency         string `json:"currency"`
	Category         string `json:"category"`

	// Failing marks an active campaign on a failing trajectory (price against
	// the structure while not yet stopped out). Feeds the correlation cascade.
	Failing bool `json:"failing"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	fingerprints map[string]struct{}
}

// New opens a FORMING campaign anchored to the event's symbol and range.
// The event itself is not appended; the engine does that after validation.
// Timestamps come from the caller's clock, never from the event: detectors
// may replay historical detections, and the confirmation window is measured
// against the clock the expiry sweep uses.
func New(id string, e PatternEvent, group, currency, category string, now time.Time) *Campaign {
	if now.IsZero() {
		now = time.Now()
	}
	return &Campaign{
		ID:               id,
		Symbol:           e.Symbol,
		Range:            e.Range,
		State:            StateForming,
		Phase:            PhaseNone,
		CorrelationGroup: group,
		Currency:         currency,
		Category:         category,
		CreatedAt:        now,
		UpdatedAt:        now,
		fingerprints:     make(map[string]struct{}),
	}
}

// Key returns the (symbol, range) identity used to enforce the
// one-non-terminal-campaign-per-slot invariant.
func (c *Campaign) Key() string {
	return c.Symbol + "|" + c.Range.Key()
}

// HasFingerprint reports whether an event with the given fingerprint has
// already been accepted. Re-applying an identical event never double-counts.
func (c *Campaign) HasFingerprint(fp string) bool {
	_, ok := c.fingerprints[fp]
	return ok
}

// TargetPhase resolves the phase the campaign would move to by accepting the
// pattern: the most advanced structurally valid phase reachable by a legal
// step (stay or advance one). Returns PhaseNone when no legal placement
// exists, which is a hard sequence rejection.
func (c *Campaign) TargetPhase(t PatternType) Phase {
	allowed := PatternPhases[t]
	if c.Phase == PhaseNone {
		// First pattern: place at the earliest phase the type may appear in.
		if len(allowed) == 0 {
			return PhaseNone
		}
		return allowed[0]
	}
	best := PhaseNone
	for _, p := range allowed {
		if !PhaseStepAllowed(c.Phase, p, false) {
			continue
		}
		if p.Rank() > best.Rank() {
			best = p
		}
	}
	return best
}

// Apply appends an accepted event and recomputes phase, weighted entry and
// heat in one step. Callers (the engine, under the campaign's lock) must have
// validated the event first; Apply never rejects. UpdatedAt moves on the
// caller's clock, same timeline as CreatedAt.
func (c *Campaign) Apply(e PatternEvent, fp string, phase Phase, now time.Time) {
	c.Events = append(c.Events, e)
	if c.fingerprints == nil {
		c.fingerprints = make(map[string]struct{})
	}
	c.fingerprints[fp] = struct{}{}
	c.Phase = phase
	c.HeatPct = c.HeatPct.Add(e.RiskPct)
	c.recomputeWeightedEntry()
	if now.IsZero() {
		now = time.Now()
	}
	c.UpdatedAt = now
}

func (c *Campaign) recomputeWeightedEntry() {
	var weighted, totalWeight decimal.Decimal
	for _, e := range c.Events {
		weighted = weighted.Add(e.Price.Mul(e.RiskPct))
		totalWeight = totalWeight.Add(e.RiskPct)
	}
	if totalWeight.IsPositive() {
		c.WeightedEntry = weighted.DivRound(totalWeight, 8)
		return
	}
	// No sized events yet: simple average keeps the field meaningful.
	var sum decimal.Decimal
	for _, e := range c.Events {
		sum = sum.Add(e.Price)
	}
	if len(c.Events) > 0 {
		c.WeightedEntry = sum.DivRound(decimal.NewFromInt(int64(len(c.Events))), 8)
	}
}

// Clone returns a deep copy safe to hand to subscribers and the risk gate.
func (c *Campaign) Clone() *Campaign {
	cp := *c
	cp.Events = append([]PatternEvent(nil), c.Events...)
	cp.fingerprints = make(map[string]struct{}, len(c.fingerprints))
	for fp := range c.fingerprints {
		cp.fingerprints[fp] = struct{}{}
	}
	return &cp
}

// LastEvent returns the most recently accepted event, or a zero value when
// the campaign is still empty.
func (c *Campaign) LastEvent() (PatternEvent, bool) {
	if len(c.Events) == 0 {
		return PatternEvent{}, false
	}
	return c.Events[len(c.Events)-1], true
}
