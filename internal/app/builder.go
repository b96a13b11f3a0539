package app

import (
	"fmt"

	"github.com/shopspring/decimal"

	"wyckoff/internal/campaign"
	"wyckoff/internal/config"
	"wyckoff/internal/engine"
	"wyckoff/internal/eventbus"
	"wyckoff/internal/logger"
	"wyckoff/internal/notifier"
	"wyckoff/internal/regime"
	"wyckoff/internal/risk"
	"wyckoff/internal/store"
	"wyckoff/internal/store/audit"
	"wyckoff/internal/store/sqlite"
	httpapi "wyckoff/internal/transport/http"
	"wyckoff/internal/validation"
	"wyckoff/internal/validation/cache"
)

// build assembles the dependency graph bottom-up: cache and calibration
// first, then validator and gate, then the engine, and finally the
// subscribers and HTTP surface on top.
func build(cfg *config.Config) (*App, error) {
	bus := eventbus.New()

	var calSource regime.CalibrationSource
	var calRegistry *regime.CalibrationRegistry
	if cfg.Regime.CalibrationPath != "" {
		reg, err := regime.NewCalibrationRegistry(cfg.Regime.CalibrationPath)
		if err != nil {
			return nil, fmt.Errorf("load calibration: %w", err)
		}
		calRegistry = reg
		calSource = reg
	} else {
		calSource = regime.FixedCalibration(regime.DefaultCalibration())
	}
	analyzer := regime.NewAnalyzer(cfg.Regime.WindowSize, calSource)

	registry := validation.NewRegistry()
	validation.RegisterDefaults(registry)
	decisionCache := cache.New(cfg.Cache.Capacity, cfg.Cache.TTL)
	validator := validation.NewSequenceValidator(registry, decisionCache, validation.Config{
		MinConfidence: cfg.Validation.MinConfidence,
		CacheTTL:      cfg.Cache.TTL,
	}, analyzer)

	gate := risk.NewGate(riskConfigFrom(cfg.Risk), analyzer)
	mgr := engine.NewManager(cfg.Engine, validator, gate, bus)

	a := &App{
		cfg:       cfg,
		bus:       bus,
		analyzer:  analyzer,
		registry:  calRegistry,
		validator: validator,
		cache:     decisionCache,
		engine:    mgr,
	}

	if cfg.Store.Enabled {
		snapshots, err := sqlite.NewStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open snapshot store: %w", err)
		}
		rejects, err := audit.NewLog(cfg.Store.AuditPath)
		if err != nil {
			snapshots.Close()
			return nil, fmt.Errorf("open rejection log: %w", err)
		}
		a.snapshots = snapshots
		a.rejects = rejects
		if _, err := store.NewSubscriber(snapshots, rejects).Attach(bus); err != nil {
			return nil, fmt.Errorf("attach store subscriber: %w", err)
		}
	}

	if _, err := regime.NewOutcomeSubscriber(analyzer).Attach(bus); err != nil {
		return nil, fmt.Errorf("attach regime subscriber: %w", err)
	}

	if cfg.Notify.Telegram.Enabled {
		tg := notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
		if _, err := notifier.NewSubscriber(tg).Attach(bus); err != nil {
			return nil, fmt.Errorf("attach notifier: %w", err)
		}
		logger.Infof("telegram notifications enabled chat=%s", cfg.Notify.Telegram.ChatID)
	}

	server, err := httpapi.NewServer(httpapi.ServerConfig{
		Addr: cfg.App.HTTPAddr,
		Router: httpapi.Router{
			Engine:    mgr,
			Validator: validator,
			Analyzer:  analyzer,
			Snapshots: a.snapshots,
			Rejects:   a.rejects,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build http server: %w", err)
	}
	a.http = server

	return a, nil
}

// riskConfigFrom converts the file-level calibration (floats, string-keyed
// maps) into the gate's decimal form.
func riskConfigFrom(rc config.RiskConfig) risk.Config {
	return risk.Config{
		HeatCeilingPct:         decimal.NewFromFloat(rc.HeatCeilingPct),
		CampaignHeatCapPct:     decimal.NewFromFloat(rc.CampaignHeatCapPct),
		PhaseSlack:             phaseDecimals(rc.PhaseSlack),
		PhaseWeights:           phaseDecimals(rc.PhaseWeights),
		CurrencyExposureCapPct: decimal.NewFromFloat(rc.CurrencyExposureCapPct),
		CurrencyCampaignCap:    rc.CurrencyCampaignCap,
		CategoryWarnSharePct:   decimal.NewFromFloat(rc.CategoryWarnSharePct),
		CascadeThreshold:       rc.CascadeThreshold,
	}
}

func phaseDecimals(m map[string]float64) map[campaign.Phase]decimal.Decimal {
	out := make(map[campaign.Phase]decimal.Decimal, len(m))
	for k, v := range m {
		out[campaign.Phase(k)] = decimal.NewFromFloat(v)
	}
	return out
}
