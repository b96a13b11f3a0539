package config

import "fmt"

// validate performs basic sanity checks on the loaded configuration.
func validate(c *Config) error {
	if err := c.Risk.validate(); err != nil {
		return err
	}
	if err := c.Validation.validate(); err != nil {
		return err
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache.capacity must be positive")
	}
	if c.Engine.ExpiryWindow <= 0 {
		return fmt.Errorf("engine.expiry_window must be positive")
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.HeatCeilingPct <= 0 || r.HeatCeilingPct > 100 {
		return fmt.Errorf("risk.heat_ceiling_pct must be within (0,100], got %.2f", r.HeatCeilingPct)
	}
	if r.CampaignHeatCapPct <= 0 || r.CampaignHeatCapPct > r.HeatCeilingPct {
		return fmt.Errorf("risk.campaign_heat_cap_pct must be within (0, heat_ceiling_pct], got %.2f", r.CampaignHeatCapPct)
	}
	for phase, w := range r.PhaseWeights {
		if !validPhaseKey(phase) {
			return fmt.Errorf("risk.phase_weights: unknown phase %q", phase)
		}
		if w <= 0 || w > 1 {
			return fmt.Errorf("risk.phase_weights.%s must be within (0,1], got %.2f", phase, w)
		}
	}
	for phase, s := range r.PhaseSlack {
		if !validPhaseKey(phase) {
			return fmt.Errorf("risk.phase_slack: unknown phase %q", phase)
		}
		if s < 1 {
			return fmt.Errorf("risk.phase_slack.%s must be >= 1, got %.2f", phase, s)
		}
	}
	if r.CascadeThreshold < 2 {
		return fmt.Errorf("risk.cascade_threshold must be >= 2, got %d", r.CascadeThreshold)
	}
	return nil
}

func validPhaseKey(p string) bool {
	switch p {
	case "A", "B", "C", "D", "E":
		return true
	}
	return false
}

func (v *ValidationConfig) validate() error {
	if v.MinConfidence < 0 || v.MinConfidence >= 1 {
		return fmt.Errorf("validation.min_confidence must be within [0,1), got %.3f", v.MinConfidence)
	}
	return nil
}
