package validation

import (
	"sync"

	"wyckoff/internal/campaign"
)

// Context carries everything a pattern strategy may inspect. Campaign is a
// clone; strategies never mutate engine state.
type Context struct {
	Campaign *campaign.Campaign
	Event    campaign.PatternEvent
	// Phase is the phase the campaign would move to by accepting the event.
	Phase campaign.Phase
}

// PatternValidator scores a single pattern type. New pattern types plug in
// via Registry.Register without touching dispatch logic.
type PatternValidator interface {
	Validate(ctx Context) Decision
}

// Registry maps pattern types to their validator implementation.
type Registry struct {
	mu         sync.RWMutex
	validators map[campaign.PatternType]PatternValidator
}

func NewRegistry() *Registry {
	return &Registry{validators: make(map[campaign.PatternType]PatternValidator)}
}

// Register adds or replaces the validator for a pattern type.
func (r *Registry) Register(t campaign.PatternType, v PatternValidator) {
	if v == nil {
		return
	}
	r.mu.Lock()
	r.validators[t] = v
	r.mu.Unlock()
}

// For returns the validator for the pattern type.
func (r *Registry) For(t campaign.PatternType) (PatternValidator, bool) {
	r.mu.RLock()
	v, ok := r.validators[t]
	r.mu.RUnlock()
	return v, ok
}

// VolumeWeights are the graduated confidence multipliers a strategy applies
// per observed volume level. Weak context down-weights, it never rejects.
type VolumeWeights struct {
	Low    float64
	Normal float64
	High   float64
}

func (w VolumeWeights) factor(level campaign.VolumeLevel) float64 {
	switch level {
	case campaign.VolumeLow:
		return w.Low
	case campaign.VolumeHigh:
		return w.High
	default:
		return w.Normal
	}
}

// volumeWeighted is the shared strategy shape: the detector confidence is
// scaled by how well the bar's volume matches what the pattern calls for.
type volumeWeighted struct {
	weights VolumeWeights
}

func (s volumeWeighted) Validate(ctx Context) Decision {
	adjusted := ctx.Event.Confidence * s.weights.factor(ctx.Event.Volume.Level)
	if adjusted > 1 {
		adjusted = 1
	}
	return Decision{OK: true, AdjustedConfidence: adjusted, Phase: ctx.Phase}
}

// RegisterDefaults installs the built-in strategies. A spring is confirmed by
// drying-up volume on the shakeout; strength, climax and rally patterns want
// expanding volume behind the move; tests and last points of support read
// best on quiet bars.
func RegisterDefaults(r *Registry) {
	r.Register(campaign.PatternSpring, volumeWeighted{VolumeWeights{Low: 1.0, Normal: 0.9, High: 0.7}})
	r.Register(campaign.PatternSignOfStrength, volumeWeighted{VolumeWeights{Low: 0.65, Normal: 0.85, High: 1.0}})
	r.Register(campaign.PatternSellingClimax, volumeWeighted{VolumeWeights{Low: 0.6, Normal: 0.8, High: 1.0}})
	r.Register(campaign.PatternAutomaticRally, volumeWeighted{VolumeWeights{Low: 0.75, Normal: 1.0, High: 0.9}})
	r.Register(campaign.PatternSecondaryTest, volumeWeighted{VolumeWeights{Low: 1.0, Normal: 0.9, High: 0.7}})
	r.Register(campaign.PatternLastPointOfSupport, volumeWeighted{VolumeWeights{Low: 0.95, Normal: 1.0, High: 0.85}})
	r.Register(campaign.PatternUpthrust, volumeWeighted{VolumeWeights{Low: 0.75, Normal: 0.9, High: 1.0}})
}
