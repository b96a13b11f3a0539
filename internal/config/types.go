package config

import "time"

// Config is the full configuration of the campaign engine process. It is
// loaded once at startup and treated as immutable afterwards; components
// receive the sub-config they need at construction time.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Risk       RiskConfig       `mapstructure:"risk"`
	Validation ValidationConfig `mapstructure:"validation"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Regime     RegimeConfig     `mapstructure:"regime"`
	Store      StoreConfig      `mapstructure:"store"`
	Notify     NotifyConfig     `mapstructure:"notify"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	HTTPAddr string `mapstructure:"http_addr"`
	LogPath  string `mapstructure:"log_path"`
}

// SymbolMeta tags a symbol for portfolio aggregation.
type SymbolMeta struct {
	CorrelationGroup string `mapstructure:"correlation_group"`
	Currency         string `mapstructure:"currency"`
	Category         string `mapstructure:"category"`
}

type EngineConfig struct {
	// ExpiryWindow is how long a FORMING campaign may wait for confirmation
	// before the sweep moves it to EXPIRED.
	ExpiryWindow time.Duration `mapstructure:"expiry_window"`
	// SweepInterval is how often the expiration sweep runs.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// Symbols maps symbol → portfolio tags. Unknown symbols fall back to the
	// symbol itself as correlation group and empty currency/category.
	Symbols map[string]SymbolMeta `mapstructure:"symbols"`
}

// RiskConfig carries the portfolio limit calibration. The numbers are
// configuration defaults, not load-bearing invariants.
type RiskConfig struct {
	HeatCeilingPct         float64            `mapstructure:"heat_ceiling_pct"`
	CampaignHeatCapPct     float64            `mapstructure:"campaign_heat_cap_pct"`
	PhaseSlack             map[string]float64 `mapstructure:"phase_slack"`
	PhaseWeights           map[string]float64 `mapstructure:"phase_weights"`
	CurrencyExposureCapPct float64            `mapstructure:"currency_exposure_cap_pct"`
	CurrencyCampaignCap    int                `mapstructure:"currency_campaign_cap"`
	CategoryWarnSharePct   float64            `mapstructure:"category_warn_share_pct"`
	CascadeThreshold       int                `mapstructure:"cascade_threshold"`
}

type ValidationConfig struct {
	MinConfidence float64 `mapstructure:"min_confidence"`
}

type CacheConfig struct {
	Capacity      int           `mapstructure:"capacity"`
	TTL           time.Duration `mapstructure:"ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type RegimeConfig struct {
	// CalibrationPath points at the hot-reloadable thresholds file; empty
	// disables regime tuning.
	CalibrationPath string `mapstructure:"calibration_path"`
	WindowSize      int    `mapstructure:"window_size"`
}

type StoreConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Path is the campaign snapshot database; AuditPath the rejection log.
	Path      string `mapstructure:"path"`
	AuditPath string `mapstructure:"audit_path"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}
