package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"wyckoff/internal/config"
	"wyckoff/internal/engine"
	"wyckoff/internal/regime"
	"wyckoff/internal/risk"
	"wyckoff/internal/validation"
	"wyckoff/internal/validation/cache"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	reg := validation.NewRegistry()
	validation.RegisterDefaults(reg)
	v := validation.NewSequenceValidator(reg, cache.New(64, 15*time.Minute),
		validation.Config{MinConfidence: 0.3, CacheTTL: 15 * time.Minute}, nil)
	g := risk.NewGate(risk.Config{
		HeatCeilingPct:     decimal.NewFromInt(10),
		CampaignHeatCapPct: decimal.NewFromInt(5),
		CascadeThreshold:   3,
	}, nil)
	mgr := engine.NewManager(config.EngineConfig{ExpiryWindow: 48 * time.Hour}, v, g, nil)

	srv, err := NewServer(ServerConfig{
		Addr: ":0",
		Router: Router{
			Engine:    mgr,
			Validator: v,
			Analyzer:  regime.NewAnalyzer(50, nil),
		},
	})
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIngestAndQueryFlow(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/patterns", `{
		"symbol": "BTCUSDT", "type": "SPRING",
		"range": {"low": 90, "high": 120}, "price": 100,
		"volume": {"level": "LOW", "ratio": 0.6},
		"confidence": 0.8, "risk_pct": 1.0
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := gjson.Parse(w.Body.String())
	assert.Equal(t, int64(1), body.Get("accepted").Int())
	campaignID := body.Get("results.0.campaign_id").String()
	require.NotEmpty(t, campaignID)
	assert.Equal(t, "FORMING", body.Get("results.0.state").String())

	w = do(t, srv, http.MethodGet, "/api/campaigns/"+campaignID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "BTCUSDT", gjson.Get(w.Body.String(), "symbol").String())

	w = do(t, srv, http.MethodGet, "/api/campaigns/active?symbol=BTCUSDT", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "count").Int())

	w = do(t, srv, http.MethodGet, "/api/cache/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "misses").Int())
}

func TestIngestBatchRejectionDetail(t *testing.T) {
	srv := newTestServer(t)

	// A spring followed by an upthrust that cannot extend the same campaign.
	w := do(t, srv, http.MethodPost, "/api/patterns", `[
		{"symbol": "X", "type": "SPRING", "range": {"low": 90, "high": 120}, "price": 100, "volume": {"level": "LOW"}, "confidence": 0.8, "risk_pct": 1.0},
		{"symbol": "X", "type": "SECONDARY_TEST", "range": {"low": 90, "high": 120}, "price": 95, "confidence": 0.8, "risk_pct": 1.0}
	]`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := gjson.Parse(w.Body.String())
	assert.Equal(t, int64(1), body.Get("accepted").Int())
	assert.True(t, body.Get("results.0.accepted").Bool())
	assert.False(t, body.Get("results.1.accepted").Bool())
	assert.Equal(t, "sequence-invalid", body.Get("results.1.code").String())
	assert.Contains(t, body.Get("results.1.reason").String(), "not valid in phase")
}

func TestIngestRejectsMalformedPayload(t *testing.T) {
	srv := newTestServer(t)
	w := do(t, srv, http.MethodPost, "/api/patterns", `{"type": "SPRING"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransitionEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/patterns", `{
		"symbol": "X", "type": "SPRING", "range": {"low": 90, "high": 120},
		"price": 100, "volume": {"level": "LOW"}, "confidence": 0.8, "risk_pct": 1.0
	}`)
	require.Equal(t, http.StatusOK, w.Code)
	id := gjson.Get(w.Body.String(), "results.0.campaign_id").String()

	w = do(t, srv, http.MethodPost, "/api/campaigns/"+id+"/transition", `{"state": "completed"}`)
	assert.Equal(t, http.StatusConflict, w.Code, "FORMING cannot complete directly")

	w = do(t, srv, http.MethodPost, "/api/campaigns/"+id+"/transition", `{"state": "failed"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "FAILED", gjson.Get(w.Body.String(), "state").String())

	w = do(t, srv, http.MethodPost, "/api/campaigns/no-such-id/transition", `{"state": "failed"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegimeEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/api/regime", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "RANGING", gjson.Get(w.Body.String(), "regime").String())

	w = do(t, srv, http.MethodPut, "/api/regime", `{"regime": "trending"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "TRENDING", gjson.Get(w.Body.String(), "regime").String())

	w = do(t, srv, http.MethodPut, "/api/regime", `{"regime": "sideways"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
