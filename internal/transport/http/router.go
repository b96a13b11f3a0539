package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"wyckoff/internal/campaign"
	"wyckoff/internal/engine"
	"wyckoff/internal/logger"
	"wyckoff/internal/regime"
	"wyckoff/internal/risk"
	"wyckoff/internal/store/audit"
	"wyckoff/internal/store/sqlite"
	"wyckoff/internal/validation"
)

const maxIngestBody = 1 << 20 // 1 MiB per ingest request

// Router exposes the campaign engine over HTTP: the detector ingest endpoint
// plus the query surface for campaigns, risk, cache and regime.
type Router struct {
	Engine    *engine.Manager
	Validator *validation.SequenceValidator
	Analyzer  *regime.Analyzer
	Snapshots *sqlite.Store
	Rejects   *audit.Log
}

// Register mounts the API under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/patterns", r.handleIngest)
	group.GET("/campaigns", r.handleListCampaigns)
	group.GET("/campaigns/active", r.handleActiveCampaigns)
	group.GET("/campaigns/exit-priority", r.handleExitPriority)
	group.GET("/campaigns/:id", r.handleCampaignByID)
	group.POST("/campaigns/:id/transition", r.handleTransition)
	group.POST("/campaigns/:id/failing", r.handleSetFailing)
	group.GET("/risk/heat", r.handleHeat)
	group.GET("/cache/stats", r.handleCacheStats)
	group.GET("/regime", r.handleGetRegime)
	group.PUT("/regime", r.handleSetRegime)
	if r.Snapshots != nil {
		group.GET("/history", r.handleHistory)
	}
	if r.Rejects != nil {
		group.GET("/rejections", r.handleRejections)
	}
}

func (r *Router) handleIngest(c *gin.Context) {
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIngestBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}
	events, err := ParsePatternBatch(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(events) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty pattern batch"})
		return
	}

	results, err := r.Engine.AddPatternsBatch(events)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	accepted := 0
	out := make([]gin.H, 0, len(results))
	for i, res := range results {
		item := gin.H{
			"pattern_id": events[i].ID,
			"accepted":   res.Accepted,
		}
		if res.Campaign != nil {
			item["campaign_id"] = res.Campaign.ID
			item["state"] = res.Campaign.State
			item["phase"] = res.Campaign.Phase
		}
		if !res.Accepted {
			item["code"] = res.Code
			item["reason"] = res.Reason
		}
		if len(res.Warnings) > 0 {
			item["warnings"] = res.Warnings
		}
		if res.Accepted {
			accepted++
		}
		out = append(out, item)
	}
	status := http.StatusOK
	if accepted == 0 {
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"accepted": accepted, "total": len(results), "results": out})
}

func (r *Router) handleListCampaigns(c *gin.Context) {
	state := campaign.CampaignState(strings.ToUpper(strings.TrimSpace(c.Query("state"))))
	list := r.Engine.ListCampaigns(state)
	c.JSON(http.StatusOK, gin.H{"count": len(list), "campaigns": list})
}

func (r *Router) handleActiveCampaigns(c *gin.Context) {
	list := r.Engine.GetActiveCampaigns(c.Query("symbol"))
	c.JSON(http.StatusOK, gin.H{"count": len(list), "campaigns": list})
}

func (r *Router) handleExitPriority(c *gin.Context) {
	list := r.Engine.ExitPriority()
	c.JSON(http.StatusOK, gin.H{"count": len(list), "campaigns": list})
}

func (r *Router) handleCampaignByID(c *gin.Context) {
	cp, ok := r.Engine.GetCampaign(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}
	c.JSON(http.StatusOK, cp)
}

func (r *Router) handleTransition(c *gin.Context) {
	var req struct {
		State string `json:"state"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	target := campaign.CampaignState(strings.ToUpper(strings.TrimSpace(req.State)))

	cp, err := r.Engine.Transition(c.Param("id"), target)
	if err != nil {
		var stErr *engine.StateTransitionError
		switch {
		case errors.Is(err, engine.ErrCampaignNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.As(err, &stErr):
			c.JSON(http.StatusConflict, gin.H{"error": stErr.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, cp)
}

func (r *Router) handleSetFailing(c *gin.Context) {
	var req struct {
		Failing bool `json:"failing"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := r.Engine.SetFailing(c.Param("id"), req.Failing); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (r *Router) handleHeat(c *gin.Context) {
	active := r.Engine.ActiveSnapshot()
	c.JSON(http.StatusOK, gin.H{
		"portfolio_heat_pct": risk.PortfolioHeat(active),
		"campaigns":          len(active),
	})
}

func (r *Router) handleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, r.Validator.CacheStats())
}

func (r *Router) handleGetRegime(c *gin.Context) {
	if r.Analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "regime analyzer disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"regime":           r.Analyzer.CurrentRegime(),
		"confidence_scale": r.Analyzer.ConfidenceScale(),
		"heat_scale":       r.Analyzer.HeatScale(),
	})
}

func (r *Router) handleSetRegime(c *gin.Context) {
	if r.Analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "regime analyzer disabled"})
		return
	}
	var req struct {
		Regime string `json:"regime"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reg, ok := regime.ParseRegime(req.Regime)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown regime: " + req.Regime})
		return
	}
	r.Analyzer.SetRegime(reg)
	logger.Infof("[api] regime set to %s ip=%s", reg, c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"regime": reg})
}

func (r *Router) handleHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	rows, err := r.Snapshots.ListCampaigns(ctx, strings.ToUpper(c.Query("state")), limit)
	if err != nil {
		logger.Errorf("[api] history query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(rows), "campaigns": rows})
}

func (r *Router) handleRejections(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	rows, err := r.Rejects.List(ctx, c.Query("symbol"), limit)
	if err != nil {
		logger.Errorf("[api] rejections query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(rows), "rejections": rows})
}
