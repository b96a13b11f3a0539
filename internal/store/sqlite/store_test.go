package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wyckoff/internal/campaign"
)

func testCampaign(id string, state campaign.CampaignState) *campaign.Campaign {
	return &campaign.Campaign{
		ID:            id,
		Symbol:        "BTCUSDT",
		Range:         campaign.TradingRange{Low: decimal.NewFromInt(90), High: decimal.NewFromInt(120)},
		State:         state,
		Phase:         campaign.PhaseC,
		WeightedEntry: decimal.NewFromInt(100),
		HeatPct:       decimal.NewFromInt(1),
		CreatedAt:     time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
		UpdatedAt:     time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestSaveCampaignUpserts(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "campaigns.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	c := testCampaign("c1", campaign.StateForming)
	require.NoError(t, s.SaveCampaign(ctx, c))

	c.State = campaign.StateActive
	c.Phase = campaign.PhaseD
	c.UpdatedAt = c.UpdatedAt.Add(time.Hour)
	require.NoError(t, s.SaveCampaign(ctx, c))

	rows, err := s.ListCampaigns(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1, "same id updates in place")
	assert.Equal(t, "ACTIVE", rows[0].State)
	assert.Equal(t, "D", rows[0].Phase)
	assert.Equal(t, "1", rows[0].HeatPct)
}

func TestListCampaignsFiltersByState(t *testing.T) {
	s, err := NewStore(filepath.Join(t.TempDir(), "campaigns.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.SaveCampaign(ctx, testCampaign("c1", campaign.StateActive)))
	require.NoError(t, s.SaveCampaign(ctx, testCampaign("c2", campaign.StateFailed)))

	rows, err := s.ListCampaigns(ctx, "failed", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c2", rows[0].ID)

	rows, err = s.ListCampaigns(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
