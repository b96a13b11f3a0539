package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wyckoff/internal/campaign"
)

func TestAppendAndList(t *testing.T) {
	l, err := NewLog(filepath.Join(t.TempDir(), "rejections.db"))
	require.NoError(t, err)
	defer l.Close()

	ctx := context.Background()
	pattern := &campaign.PatternEvent{
		ID:     "e1",
		Symbol: "BTCUSDT",
		Type:   campaign.PatternUpthrust,
		Price:  decimal.NewFromInt(119),
	}
	require.NoError(t, l.Append(ctx, "BTCUSDT", "c1", "sequence-invalid", "pattern not valid in phase E", pattern))
	require.NoError(t, l.Append(ctx, "ETHUSDT", "", "risk-rejected", "portfolio heat exceeded", nil))

	all, err := l.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 2)

	btc, err := l.List(ctx, "btcusdt", 10)
	require.NoError(t, err)
	require.Len(t, btc, 1)
	assert.Equal(t, "sequence-invalid", btc[0].Code)
	assert.Equal(t, "c1", btc[0].CampaignID)
	assert.Contains(t, btc[0].PatternRaw, `"UPTHRUST_AFTER_DISTRIBUTION"`)

	eth, err := l.List(ctx, "ETHUSDT", 10)
	require.NoError(t, err)
	require.Len(t, eth, 1)
	assert.Empty(t, eth[0].PatternRaw)
}

func TestNewLogRejectsEmptyPath(t *testing.T) {
	_, err := NewLog("  ")
	assert.Error(t, err)
}
