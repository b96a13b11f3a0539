// Package risk gates admission and growth of campaigns against
// portfolio-wide exposure limits. The gate owns no state: every check runs
// against a frozen snapshot of the active campaign set handed in by the
// engine.
package risk

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"wyckoff/internal/campaign"
)

// Admission is the gate's verdict for one candidate.
type Admission struct {
	Allowed  bool     `json:"allowed"`
	Reason   string   `json:"reason,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Candidate describes the admission request: the campaign as it stands (nil
// for a brand-new one), the heat the accepted event would add, and the phase
// the campaign would land in.
type Candidate struct {
	Campaign  *campaign.Campaign
	Symbol    string
	Currency  string
	Category  string
	Group     string
	AddedHeat decimal.Decimal
	Phase     campaign.Phase
	New       bool
}

// Config are the portfolio limits, supplied immutable at construction.
// All values are calibration defaults, never structural constants.
type Config struct {
	// HeatCeilingPct is the hard cap on summed risk-at-stake, in percent of
	// account equity. Exactly at the ceiling is allowed.
	HeatCeilingPct decimal.Decimal
	// CampaignHeatCapPct caps a single campaign's heat.
	CampaignHeatCapPct decimal.Decimal
	// PhaseSlack loosens the portfolio ceiling for candidates in advanced
	// phases (closer to statistically validated outcomes).
	PhaseSlack map[campaign.Phase]decimal.Decimal
	// PhaseWeights discount exposure of advanced-phase campaigns when
	// aggregating per-currency concentration.
	PhaseWeights map[campaign.Phase]decimal.Decimal
	// CurrencyExposureCapPct caps phase-weighted exposure per currency.
	CurrencyExposureCapPct decimal.Decimal
	// CurrencyCampaignCap independently caps campaign count per currency.
	CurrencyCampaignCap int
	// CategoryWarnSharePct is informational only: exceeding it warns,
	// never rejects.
	CategoryWarnSharePct decimal.Decimal
	// CascadeThreshold is the number of concurrently failing correlated
	// campaigns that fires the portfolio defensive signal.
	CascadeThreshold int
}

// Tuner supplies regime-driven scaling of the heat ceiling. Nil means no
// adjustment.
type Tuner interface {
	HeatScale() float64
}

// Gate evaluates admission against the configured limits.
type Gate struct {
	cfg   Config
	tuner Tuner
}

func NewGate(cfg Config, tuner Tuner) *Gate {
	if cfg.CascadeThreshold <= 0 {
		cfg.CascadeThreshold = 3
	}
	return &Gate{cfg: cfg, tuner: tuner}
}

// CheckAdmission decides whether the candidate may be admitted or grow given
// the active campaign set. Rejections carry the specific limit breached;
// warnings flag capacity dropping to a single admission slot and
// informational category concentration.
func (g *Gate) CheckAdmission(cand Candidate, active []*campaign.Campaign) Admission {
	var warnings []string

	// Per-campaign heat cap.
	current := decimal.Zero
	if cand.Campaign != nil {
		current = cand.Campaign.HeatPct
	}
	campaignHeat := current.Add(cand.AddedHeat)
	if g.cfg.CampaignHeatCapPct.IsPositive() && campaignHeat.GreaterThan(g.cfg.CampaignHeatCapPct) {
		return Admission{Reason: fmt.Sprintf("campaign heat %s%% exceeds per-campaign cap %s%%",
			campaignHeat, g.cfg.CampaignHeatCapPct)}
	}

	// Portfolio heat with phase-aware slack.
	total := PortfolioHeat(active)
	ceiling := g.effectiveCeiling(cand.Phase)
	prospective := total.Add(cand.AddedHeat)
	if prospective.GreaterThan(ceiling) {
		return Admission{Reason: fmt.Sprintf("portfolio heat %s%% would exceed ceiling %s%% (current %s%%, adding %s%%)",
			prospective, ceiling, total, cand.AddedHeat)}
	}
	if remaining := ceiling.Sub(prospective); remaining.LessThan(cand.AddedHeat) && cand.AddedHeat.IsPositive() {
		warnings = append(warnings, fmt.Sprintf("heat capacity down to a single admission slot: %s%% remaining of %s%% ceiling",
			remaining, ceiling))
	}

	// Phase-weighted currency concentration, plus the independent count cap.
	if reason, warn := g.checkCurrency(cand, active); reason != "" {
		return Admission{Reason: reason, Warnings: warnings}
	} else if warn != "" {
		warnings = append(warnings, warn)
	}

	// Category concentration is informational only.
	if warn := g.checkCategory(cand, active, prospective); warn != "" {
		warnings = append(warnings, warn)
	}

	if g.cfg.CascadeThreshold > 0 && cand.Group != "" {
		if failing := failingInGroup(active, cand.Group); failing >= g.cfg.CascadeThreshold {
			warnings = append(warnings, fmt.Sprintf("correlation group %s is cascading (%d failing campaigns)",
				cand.Group, failing))
		}
	}

	return Admission{Allowed: true, Warnings: warnings}
}

func (g *Gate) effectiveCeiling(phase campaign.Phase) decimal.Decimal {
	ceiling := g.cfg.HeatCeilingPct
	if slack, ok := g.cfg.PhaseSlack[phase]; ok && slack.IsPositive() {
		ceiling = ceiling.Mul(slack)
	}
	if g.tuner != nil {
		if scale := g.tuner.HeatScale(); scale > 0 {
			ceiling = ceiling.Mul(decimal.NewFromFloat(scale))
		}
	}
	return ceiling
}

func (g *Gate) checkCurrency(cand Candidate, active []*campaign.Campaign) (reason, warning string) {
	currency := strings.ToUpper(strings.TrimSpace(cand.Currency))
	if currency == "" {
		return "", ""
	}

	exposure := decimal.Zero
	count := 0
	for _, c := range active {
		if !strings.EqualFold(c.Currency, currency) {
			continue
		}
		count++
		exposure = exposure.Add(c.HeatPct.Mul(g.phaseWeight(c.Phase)))
	}
	exposure = exposure.Add(cand.AddedHeat.Mul(g.phaseWeight(cand.Phase)))

	if g.cfg.CurrencyExposureCapPct.IsPositive() && exposure.GreaterThan(g.cfg.CurrencyExposureCapPct) {
		return fmt.Sprintf("weighted %s exposure %s%% exceeds cap %s%%",
			currency, exposure, g.cfg.CurrencyExposureCapPct), ""
	}
	if cand.New {
		count++
	}
	if g.cfg.CurrencyCampaignCap > 0 {
		if count > g.cfg.CurrencyCampaignCap {
			return fmt.Sprintf("%s campaign count %d exceeds cap %d",
				currency, count, g.cfg.CurrencyCampaignCap), ""
		}
		if count == g.cfg.CurrencyCampaignCap {
			warning = fmt.Sprintf("%s at campaign-count cap %d, no further slots", currency, count)
		}
	}
	return "", warning
}

func (g *Gate) checkCategory(cand Candidate, active []*campaign.Campaign, totalHeat decimal.Decimal) string {
	category := strings.TrimSpace(cand.Category)
	if category == "" || !g.cfg.CategoryWarnSharePct.IsPositive() || !totalHeat.IsPositive() {
		return ""
	}
	catHeat := cand.AddedHeat
	for _, c := range active {
		if strings.EqualFold(c.Category, category) {
			catHeat = catHeat.Add(c.HeatPct)
		}
	}
	share := catHeat.Div(totalHeat).Mul(decimal.NewFromInt(100))
	if share.GreaterThan(g.cfg.CategoryWarnSharePct) {
		return fmt.Sprintf("category %s holds %s%% of portfolio heat (watch level %s%%)",
			category, share.Round(2), g.cfg.CategoryWarnSharePct)
	}
	return ""
}

func (g *Gate) phaseWeight(p campaign.Phase) decimal.Decimal {
	if w, ok := g.cfg.PhaseWeights[p]; ok && w.IsPositive() {
		return w
	}
	return decimal.NewFromInt(1)
}

// PortfolioHeat sums risk-at-stake across the given campaigns.
func PortfolioHeat(active []*campaign.Campaign) decimal.Decimal {
	total := decimal.Zero
	for _, c := range active {
		total = total.Add(c.HeatPct)
	}
	return total
}
