package controllers

import (
	"net/http"
	"time"

	"civicguardian-be/services"

	"github.com/gin-gonic/gin"
)

// AnalyticsController serves the authority dashboard.
type AnalyticsController struct {
	analytics *services.Analytics
	users     UserLookup
	timeout   time.Duration
}

func NewAnalyticsController(analytics *services.Analytics, users UserLookup, timeout time.Duration) *AnalyticsController {
	return &AnalyticsController{analytics: analytics, users: users, timeout: timeout}
}

type limitQuery struct {
	Limit int `form:"limit"`
}

func (h *AnalyticsController) GetStats(c *gin.Context) {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	stats, err := h.analytics.Stats(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetPriorityQueue returns outstanding issues ranked by urgency
func (h *AnalyticsController) GetPriorityQueue(c *gin.Context) {
	var query limitQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, bindError(err))
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	queue, err := h.analytics.PriorityQueue(ctx, query.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	pop, err := newPopulator(ctx, h.users, queue, false)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pop.views(queue))
}

func (h *AnalyticsController) GetRecentActivity(c *gin.Context) {
	var query limitQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, bindError(err))
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	issues, err := h.analytics.RecentActivity(ctx, query.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	pop, err := newPopulator(ctx, h.users, issues, false)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pop.views(issues))
}

func (h *AnalyticsController) GetDepartmentPerformance(c *gin.Context) {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	departments, err := h.analytics.DepartmentPerformance(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, departments)
}

// GetHeatmap returns raw points plus grid hotspots
func (h *AnalyticsController) GetHeatmap(c *gin.Context) {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	heatmap, err := h.analytics.Heatmap(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, heatmap)
}
