// Package validation decides whether a pattern event may legally extend a
// campaign: phase progression, pattern-to-phase compatibility and graduated
// volume weighting, memoized through the fingerprint cache.
package validation

import (
	"fmt"
	"time"

	"wyckoff/internal/campaign"
	"wyckoff/internal/logger"
	"wyckoff/internal/validation/cache"
)

// Decision is the validator's verdict for one candidate event.
type Decision struct {
	OK                 bool           `json:"ok"`
	AdjustedConfidence float64        `json:"adjusted_confidence"`
	Reason             string         `json:"reason,omitempty"`
	Phase              campaign.Phase `json:"phase,omitempty"`
	Fingerprint        string         `json:"fingerprint"`
}

// Tuner supplies regime-driven threshold adjustments. Implementations must be
// safe for concurrent use; a nil Tuner means no adjustment.
type Tuner interface {
	// ConfidenceScale multiplies the configured minimum confidence. Values
	// below 1 loosen admission after strong recent performance, above 1
	// tighten it.
	ConfidenceScale() float64
}

// Config are the validator tunables, supplied at construction.
type Config struct {
	MinConfidence float64
	CacheTTL      time.Duration
}

// SequenceValidator validates candidate events against the phase model.
// Pure with respect to campaign state: it reads a clone and mutates nothing.
type SequenceValidator struct {
	registry *Registry
	cache    *cache.Cache
	cfg      Config
	tuner    Tuner
}

func NewSequenceValidator(registry *Registry, c *cache.Cache, cfg Config, tuner Tuner) *SequenceValidator {
	if registry == nil {
		registry = NewRegistry()
		RegisterDefaults(registry)
	}
	return &SequenceValidator{registry: registry, cache: c, cfg: cfg, tuner: tuner}
}

// Validate checks whether the event may extend the campaign. Structural
// phase/pattern conflicts are hard rejections; weak volume context only
// down-weights confidence. Decisions are memoized per campaign phase and
// active threshold; the returned Fingerprint identifies the event content
// alone and keys the engine's idempotence check.
func (v *SequenceValidator) Validate(c *campaign.Campaign, e campaign.PatternEvent) Decision {
	if !campaign.KnownPattern(e.Type) {
		return Decision{Reason: fmt.Sprintf("unknown pattern type %q", e.Type)}
	}

	target := c.TargetPhase(e.Type)
	if target == campaign.PhaseNone {
		return Decision{Reason: fmt.Sprintf("pattern %s not valid in phase %s (allowed: %v)",
			e.Type, c.Phase, campaign.PatternPhases[e.Type])}
	}

	minConf := v.minConfidence()
	key := cacheKey(c, e, minConf)
	if v.cache != nil {
		if cached, ok := v.cache.Get(key); ok {
			if d, ok := cached.(Decision); ok {
				return d
			}
			// Inconsistent cache content is treated as a miss, never an error.
			v.cache.Invalidate(key)
		}
	}

	d := v.compute(c, e, target, minConf)
	d.Fingerprint = EventFingerprint(e)
	if v.cache != nil {
		v.cache.Put(key, d, v.cfg.CacheTTL)
	}
	return d
}

func (v *SequenceValidator) compute(c *campaign.Campaign, e campaign.PatternEvent, target campaign.Phase, minConf float64) Decision {
	strategy, ok := v.registry.For(e.Type)
	if !ok {
		logger.Warnf("validator: no strategy registered for %s, using detector confidence as-is", e.Type)
		return Decision{OK: true, AdjustedConfidence: e.Confidence, Phase: target}
	}

	d := strategy.Validate(Context{Campaign: c, Event: e, Phase: target})
	if !d.OK {
		return d
	}
	if d.AdjustedConfidence < minConf {
		return Decision{
			AdjustedConfidence: d.AdjustedConfidence,
			Reason: fmt.Sprintf("adjusted confidence %.3f below threshold %.3f",
				d.AdjustedConfidence, minConf),
		}
	}
	return d
}

func (v *SequenceValidator) minConfidence() float64 {
	min := v.cfg.MinConfidence
	if v.tuner != nil {
		if scale := v.tuner.ConfidenceScale(); scale > 0 {
			min *= scale
		}
	}
	return min
}

// CacheStats exposes the memoization counters for observability endpoints.
func (v *SequenceValidator) CacheStats() cache.Stats {
	if v.cache == nil {
		return cache.Stats{}
	}
	return v.cache.Stats()
}
