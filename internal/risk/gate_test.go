package risk

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"wyckoff/internal/campaign"
)

func testConfig() Config {
	return Config{
		HeatCeilingPct:         decimal.NewFromInt(10),
		CampaignHeatCapPct:     decimal.NewFromInt(5),
		PhaseSlack:             map[campaign.Phase]decimal.Decimal{},
		PhaseWeights:           map[campaign.Phase]decimal.Decimal{campaign.PhaseD: decimal.RequireFromString("0.75")},
		CurrencyExposureCapPct: decimal.NewFromInt(6),
		CurrencyCampaignCap:    3,
		CategoryWarnSharePct:   decimal.NewFromInt(40),
		CascadeThreshold:       3,
	}
}

func activeCampaign(id, currency, group string, heat string, phase campaign.Phase) *campaign.Campaign {
	return &campaign.Campaign{
		ID:               id,
		Symbol:           id,
		State:            campaign.StateActive,
		Phase:            phase,
		HeatPct:          decimal.RequireFromString(heat),
		Currency:         currency,
		CorrelationGroup: group,
	}
}

func TestPortfolioHeatSumsContributions(t *testing.T) {
	var active []*campaign.Campaign
	for i := 0; i < 4; i++ {
		active = append(active, activeCampaign(fmt.Sprintf("c%d", i), "", "", "1.25", campaign.PhaseC))
	}
	assert.True(t, PortfolioHeat(active).Equal(decimal.NewFromInt(5)))
}

func TestHeatCeilingBoundary(t *testing.T) {
	g := NewGate(testConfig(), nil)

	active := []*campaign.Campaign{activeCampaign("c1", "", "", "9.5", campaign.PhaseC)}

	t.Run("exactly at ceiling is allowed", func(t *testing.T) {
		adm := g.CheckAdmission(Candidate{AddedHeat: decimal.RequireFromString("0.5"), Phase: campaign.PhaseC, New: true}, active)
		assert.True(t, adm.Allowed)
	})

	t.Run("any excess is blocked", func(t *testing.T) {
		adm := g.CheckAdmission(Candidate{AddedHeat: decimal.RequireFromString("0.51"), Phase: campaign.PhaseC, New: true}, active)
		assert.False(t, adm.Allowed)
		assert.Contains(t, adm.Reason, "exceed ceiling")
	})
}

func TestNinthCampaignScenario(t *testing.T) {
	g := NewGate(testConfig(), nil)

	// Nine campaigns at 1.2% each: 10.8% already past the 10% ceiling, so any
	// positive candidate is rejected.
	var hot []*campaign.Campaign
	for i := 0; i < 9; i++ {
		hot = append(hot, activeCampaign(fmt.Sprintf("c%d", i), "", "", "1.2", campaign.PhaseC))
	}
	cand := Candidate{AddedHeat: decimal.RequireFromString("0.5"), Phase: campaign.PhaseC, New: true}

	adm := g.CheckAdmission(cand, hot)
	assert.False(t, adm.Allowed)
	assert.Contains(t, adm.Reason, "exceed ceiling")

	// Contracting the book to 9.0% admits the same candidate.
	var cooled []*campaign.Campaign
	for i := 0; i < 9; i++ {
		cooled = append(cooled, activeCampaign(fmt.Sprintf("c%d", i), "", "", "1.0", campaign.PhaseC))
	}
	adm = g.CheckAdmission(cand, cooled)
	assert.True(t, adm.Allowed)
}

func TestPerCampaignHeatCap(t *testing.T) {
	g := NewGate(testConfig(), nil)

	existing := activeCampaign("c1", "", "", "4.8", campaign.PhaseC)
	adm := g.CheckAdmission(Candidate{
		Campaign:  existing,
		AddedHeat: decimal.RequireFromString("0.3"),
		Phase:     campaign.PhaseC,
	}, []*campaign.Campaign{existing})

	assert.False(t, adm.Allowed)
	assert.Contains(t, adm.Reason, "per-campaign cap")
}

func TestPhaseSlackLoosensCeiling(t *testing.T) {
	cfg := testConfig()
	cfg.PhaseSlack[campaign.PhaseD] = decimal.RequireFromString("1.2")
	g := NewGate(cfg, nil)

	active := []*campaign.Campaign{activeCampaign("c1", "", "", "9.5", campaign.PhaseC)}
	cand := Candidate{AddedHeat: decimal.NewFromInt(2), Phase: campaign.PhaseD, New: true}

	adm := g.CheckAdmission(cand, active)
	assert.True(t, adm.Allowed, "phase D candidate runs against a 12%% ceiling")

	cand.Phase = campaign.PhaseC
	adm = g.CheckAdmission(cand, active)
	assert.False(t, adm.Allowed)
}

type fixedHeatTuner struct{ scale float64 }

func (f fixedHeatTuner) HeatScale() float64 { return f.scale }

func TestTunerScalesCeiling(t *testing.T) {
	g := NewGate(testConfig(), fixedHeatTuner{scale: 0.85})

	// Effective ceiling 8.5%: a book at 8% rejects a 1% candidate.
	active := []*campaign.Campaign{activeCampaign("c1", "", "", "8", campaign.PhaseC)}
	adm := g.CheckAdmission(Candidate{AddedHeat: decimal.NewFromInt(1), Phase: campaign.PhaseC, New: true}, active)
	assert.False(t, adm.Allowed)
}

func TestSingleSlotWarning(t *testing.T) {
	g := NewGate(testConfig(), nil)

	active := []*campaign.Campaign{activeCampaign("c1", "", "", "7", campaign.PhaseC)}
	adm := g.CheckAdmission(Candidate{AddedHeat: decimal.NewFromInt(2), Phase: campaign.PhaseC, New: true}, active)

	assert.True(t, adm.Allowed)
	assert.NotEmpty(t, adm.Warnings)
	assert.Contains(t, adm.Warnings[0], "single admission slot")
}

func TestCurrencyExposureUsesPhaseWeights(t *testing.T) {
	g := NewGate(testConfig(), nil)

	// Two phase-D ETH campaigns at 3% weigh in at 0.75 each: 4.5% weighted.
	active := []*campaign.Campaign{
		activeCampaign("c1", "ETH", "", "3", campaign.PhaseD),
		activeCampaign("c2", "ETH", "", "3", campaign.PhaseD),
	}

	adm := g.CheckAdmission(Candidate{Currency: "ETH", AddedHeat: decimal.NewFromInt(1), Phase: campaign.PhaseC, New: true}, active)
	assert.True(t, adm.Allowed, "weighted 5.5%% under the 6%% cap")

	adm = g.CheckAdmission(Candidate{Currency: "ETH", AddedHeat: decimal.NewFromInt(2), Phase: campaign.PhaseC, New: true}, active)
	assert.False(t, adm.Allowed)
	assert.Contains(t, adm.Reason, "ETH exposure")
}

func TestCurrencyCampaignCountCap(t *testing.T) {
	g := NewGate(testConfig(), nil)

	active := []*campaign.Campaign{
		activeCampaign("c1", "SOL", "", "0.5", campaign.PhaseC),
		activeCampaign("c2", "SOL", "", "0.5", campaign.PhaseC),
		activeCampaign("c3", "SOL", "", "0.5", campaign.PhaseC),
	}

	adm := g.CheckAdmission(Candidate{Currency: "SOL", AddedHeat: decimal.RequireFromString("0.5"), Phase: campaign.PhaseC, New: true}, active)
	assert.False(t, adm.Allowed)
	assert.Contains(t, adm.Reason, "count 4 exceeds cap 3")

	// Growing an existing campaign does not add a slot; it warns at the cap.
	adm = g.CheckAdmission(Candidate{
		Campaign:  active[0],
		Currency:  "SOL",
		AddedHeat: decimal.RequireFromString("0.5"),
		Phase:     campaign.PhaseC,
	}, active)
	assert.True(t, adm.Allowed)
	assert.Contains(t, adm.Warnings[0], "campaign-count cap")
}

func TestCategoryShareWarnsOnly(t *testing.T) {
	cfg := testConfig()
	g := NewGate(cfg, nil)

	l1 := activeCampaign("c1", "BTC", "", "4", campaign.PhaseC)
	l1.Category = "layer1"
	other := activeCampaign("c2", "XRP", "", "4", campaign.PhaseC)
	other.Category = "payments"

	adm := g.CheckAdmission(Candidate{
		Category:  "layer1",
		AddedHeat: decimal.NewFromInt(1),
		Phase:     campaign.PhaseC,
		New:       true,
	}, []*campaign.Campaign{l1, other})

	assert.True(t, adm.Allowed, "category concentration never rejects")
	assert.NotEmpty(t, adm.Warnings)
	assert.Contains(t, adm.Warnings[0], "category layer1")
}

func TestCascadeThreshold(t *testing.T) {
	g := NewGate(testConfig(), nil)

	failing := func(id string) *campaign.Campaign {
		c := activeCampaign(id, "BTC", "majors", "1", campaign.PhaseC)
		c.Failing = true
		return c
	}

	t.Run("two failing does not fire", func(t *testing.T) {
		active := []*campaign.Campaign{
			failing("c1"), failing("c2"),
			activeCampaign("c3", "BTC", "majors", "1", campaign.PhaseC),
		}
		assert.Empty(t, g.Cascades(active))
	})

	t.Run("three failing fires", func(t *testing.T) {
		active := []*campaign.Campaign{failing("c1"), failing("c2"), failing("c3")}
		signals := g.Cascades(active)
		assert.Len(t, signals, 1)
		assert.Equal(t, "majors", signals[0].Group)
		assert.Equal(t, 3, signals[0].Failing)
		assert.Equal(t, []string{"c1", "c2", "c3"}, signals[0].CampaignIDs)
	})
}

func TestExitPriorityOrdersByPhaseThenRecency(t *testing.T) {
	old := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	recent := old.Add(2 * time.Hour)

	cB := activeCampaign("b", "", "", "1", campaign.PhaseB)
	cB.UpdatedAt = recent
	cDold := activeCampaign("d-old", "", "", "1", campaign.PhaseD)
	cDold.UpdatedAt = old
	cDnew := activeCampaign("d-new", "", "", "1", campaign.PhaseD)
	cDnew.UpdatedAt = recent

	ordered := ExitPriority([]*campaign.Campaign{cB, cDold, cDnew})

	assert.Equal(t, "d-new", ordered[0].ID)
	assert.Equal(t, "d-old", ordered[1].ID)
	assert.Equal(t, "b", ordered[2].ID)
}
