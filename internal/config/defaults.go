package config

import "time"

const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9980"

	defaultExpiryWindow  = 48 * time.Hour
	defaultSweepInterval = time.Minute

	defaultHeatCeilingPct         = 10.0
	defaultCampaignHeatCapPct     = 5.0
	defaultCurrencyExposureCapPct = 6.0
	defaultCurrencyCampaignCap    = 3
	defaultCategoryWarnSharePct   = 40.0
	defaultCascadeThreshold       = 3

	defaultMinConfidence = 0.3

	defaultCacheCapacity  = 512
	defaultCacheTTL       = 15 * time.Minute
	defaultCacheSweep     = 5 * time.Minute
	defaultRegimeWindow   = 50
	defaultStorePath      = "/data/db/campaigns.db"
	defaultAuditPath      = "/data/db/rejections.db"
)

// applyDefaults fills every unset calibration value. Maps only default when
// entirely absent so a partial override in the file wins as written.
func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = defaultAppEnv
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = defaultAppLogLevel
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = defaultAppHTTPAddr
	}

	if c.Engine.ExpiryWindow <= 0 {
		c.Engine.ExpiryWindow = defaultExpiryWindow
	}
	if c.Engine.SweepInterval <= 0 {
		c.Engine.SweepInterval = defaultSweepInterval
	}

	if c.Risk.HeatCeilingPct <= 0 {
		c.Risk.HeatCeilingPct = defaultHeatCeilingPct
	}
	if c.Risk.CampaignHeatCapPct <= 0 {
		c.Risk.CampaignHeatCapPct = defaultCampaignHeatCapPct
	}
	if c.Risk.CurrencyExposureCapPct <= 0 {
		c.Risk.CurrencyExposureCapPct = defaultCurrencyExposureCapPct
	}
	if c.Risk.CurrencyCampaignCap <= 0 {
		c.Risk.CurrencyCampaignCap = defaultCurrencyCampaignCap
	}
	if c.Risk.CategoryWarnSharePct <= 0 {
		c.Risk.CategoryWarnSharePct = defaultCategoryWarnSharePct
	}
	if c.Risk.CascadeThreshold <= 0 {
		c.Risk.CascadeThreshold = defaultCascadeThreshold
	}
	if len(c.Risk.PhaseWeights) == 0 {
		// Advanced phases carry less marginal risk once the setup is validated.
		c.Risk.PhaseWeights = map[string]float64{"D": 0.75, "E": 0.5}
	}
	if len(c.Risk.PhaseSlack) == 0 {
		c.Risk.PhaseSlack = map[string]float64{"D": 1.2, "E": 1.2}
	}

	if c.Validation.MinConfidence <= 0 {
		c.Validation.MinConfidence = defaultMinConfidence
	}

	if c.Cache.Capacity <= 0 {
		c.Cache.Capacity = defaultCacheCapacity
	}
	if c.Cache.TTL <= 0 {
		c.Cache.TTL = defaultCacheTTL
	}
	if c.Cache.SweepInterval <= 0 {
		c.Cache.SweepInterval = defaultCacheSweep
	}

	if c.Regime.WindowSize <= 0 {
		c.Regime.WindowSize = defaultRegimeWindow
	}

	if c.Store.Enabled && c.Store.Path == "" {
		c.Store.Path = defaultStorePath
	}
	if c.Store.Enabled && c.Store.AuditPath == "" {
		c.Store.AuditPath = defaultAuditPath
	}
}
