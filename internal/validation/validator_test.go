package validation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"wyckoff/internal/campaign"
	"wyckoff/internal/validation/cache"
)

func newValidator(t *testing.T, tuner Tuner) (*SequenceValidator, *cache.Cache) {
	t.Helper()
	c := cache.New(64, 15*time.Minute)
	reg := NewRegistry()
	RegisterDefaults(reg)
	return NewSequenceValidator(reg, c, Config{MinConfidence: 0.3, CacheTTL: 15 * time.Minute}, tuner), c
}

func event(pt campaign.PatternType, conf float64, level campaign.VolumeLevel) campaign.PatternEvent {
	return campaign.PatternEvent{
		ID:         "evt-1",
		Symbol:     "BTCUSDT",
		Type:       pt,
		Range:      campaign.TradingRange{Low: decimal.NewFromInt(90), High: decimal.NewFromInt(120)},
		Price:      decimal.NewFromInt(100),
		Volume:     campaign.VolumeEvidence{Level: level, Ratio: decimal.NewFromFloat(1.0)},
		Confidence: conf,
		RiskPct:    decimal.NewFromInt(1),
		DetectedAt: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
	}
}

func emptyCampaign() *campaign.Campaign {
	return campaign.New("c-1", event(campaign.PatternSpring, 0.8, campaign.VolumeLow),
		"majors", "BTC", "layer1", time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
}

func TestValidateFirstPatternPlacesEarliestPhase(t *testing.T) {
	v, _ := newValidator(t, nil)

	d := v.Validate(emptyCampaign(), event(campaign.PatternSpring, 0.8, campaign.VolumeLow))
	assert.True(t, d.OK)
	assert.Equal(t, campaign.PhaseC, d.Phase)
	assert.InDelta(t, 0.8, d.AdjustedConfidence, 1e-9, "low volume fully confirms a spring")
}

func TestValidateRejectsPhasePatternMismatch(t *testing.T) {
	v, _ := newValidator(t, nil)

	c := emptyCampaign()
	c.Phase = campaign.PhaseE
	d := v.Validate(c, event(campaign.PatternUpthrust, 0.9, campaign.VolumeHigh))
	assert.False(t, d.OK)
	assert.Contains(t, d.Reason, "not valid in phase E")
}

func TestValidateRejectsUnknownPattern(t *testing.T) {
	v, _ := newValidator(t, nil)

	e := event(campaign.PatternSpring, 0.9, campaign.VolumeLow)
	e.Type = "CUP_AND_HANDLE"
	d := v.Validate(emptyCampaign(), e)
	assert.False(t, d.OK)
	assert.Contains(t, d.Reason, "unknown pattern type")
}

func TestVolumeDownWeighting(t *testing.T) {
	v, _ := newValidator(t, nil)

	// A spring on heavy volume is suspect: 0.9 weight drops to 0.63.
	d := v.Validate(emptyCampaign(), event(campaign.PatternSpring, 0.9, campaign.VolumeHigh))
	assert.True(t, d.OK)
	assert.InDelta(t, 0.63, d.AdjustedConfidence, 1e-9)

	// Down-weighting below the floor rejects with the adjusted value reported.
	d = v.Validate(emptyCampaign(), event(campaign.PatternSignOfStrength, 0.4, campaign.VolumeLow))
	assert.False(t, d.OK)
	assert.InDelta(t, 0.26, d.AdjustedConfidence, 1e-9)
	assert.Contains(t, d.Reason, "below threshold")
}

func TestValidateMemoizesByFingerprint(t *testing.T) {
	v, c := newValidator(t, nil)

	evt := event(campaign.PatternSpring, 0.8, campaign.VolumeLow)
	camp := emptyCampaign()

	first := v.Validate(camp, evt)
	second := v.Validate(camp, evt)

	assert.Equal(t, first, second)
	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestCacheInconsistencyTreatedAsMiss(t *testing.T) {
	v, c := newValidator(t, nil)

	evt := event(campaign.PatternSpring, 0.8, campaign.VolumeLow)
	camp := emptyCampaign()
	key := cacheKey(camp, evt, 0.3)
	c.Put(key, "not a decision", 0)

	d := v.Validate(camp, evt)
	assert.True(t, d.OK, "corrupt cache entry recomputed, not surfaced")
	assert.Equal(t, EventFingerprint(evt), d.Fingerprint)

	cached, ok := c.Get(key)
	assert.True(t, ok)
	assert.IsType(t, Decision{}, cached, "bad entry replaced by the recomputed decision")
}

type fixedTuner struct{ scale float64 }

func (f fixedTuner) ConfidenceScale() float64 { return f.scale }

func TestTunerScalesThresholdAndCacheKey(t *testing.T) {
	evt := event(campaign.PatternSignOfStrength, 0.4, campaign.VolumeNormal) // adjusted 0.34

	strict, _ := newValidator(t, fixedTuner{scale: 1.15}) // floor 0.345
	d := strict.Validate(emptyCampaign(), evt)
	assert.False(t, d.OK)

	loose, _ := newValidator(t, fixedTuner{scale: 0.9}) // floor 0.27
	d = loose.Validate(emptyCampaign(), evt)
	assert.True(t, d.OK)

	// Threshold participates in the memoization key: different floors never
	// share entries.
	camp := emptyCampaign()
	assert.NotEqual(t, cacheKey(camp, evt, 0.345), cacheKey(camp, evt, 0.27))
}

func TestEventFingerprintExcludesTimestamps(t *testing.T) {
	e1 := event(campaign.PatternSpring, 0.8, campaign.VolumeLow)
	e2 := e1
	e2.ID = "evt-2"
	e2.DetectedAt = e1.DetectedAt.Add(3 * time.Hour)

	assert.Equal(t, EventFingerprint(e1), EventFingerprint(e2),
		"identical detection content lands on the same fingerprint")
}

func TestEventFingerprintIgnoresCampaignPhase(t *testing.T) {
	evt := event(campaign.PatternSpring, 0.8, campaign.VolumeLow)

	before := emptyCampaign()
	after := emptyCampaign()
	after.Phase = campaign.PhaseC

	// Idempotence keys on event content alone; a retransmit after the first
	// apply advanced the phase must still collide with the original.
	assert.Equal(t, EventFingerprint(evt), EventFingerprint(evt))
	assert.NotEqual(t, cacheKey(before, evt, 0.3), cacheKey(after, evt, 0.3),
		"memoized decisions stay phase-specific")

	d1 := NewSequenceValidator(nil, nil, Config{MinConfidence: 0.3}, nil).Validate(before, evt)
	d2 := NewSequenceValidator(nil, nil, Config{MinConfidence: 0.3}, nil).Validate(after, evt)
	assert.Equal(t, d1.Fingerprint, d2.Fingerprint)
}
