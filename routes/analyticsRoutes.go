package routes

import (
	"civicguardian-be/controllers"
	"civicguardian-be/middlewares"
	"civicguardian-be/models"

	"github.com/gin-gonic/gin"
)

// AnalyticsRoutes mounts the dashboard endpoints. Stats and heatmap are
// public; the triage views need an authority or admin.
func AnalyticsRoutes(r *gin.Engine, h *controllers.AnalyticsController, auth gin.HandlerFunc) {
	analytics := r.Group("/api/analytics")
	{
		analytics.GET("/stats", h.GetStats)
		analytics.GET("/heatmap", h.GetHeatmap)
		analytics.GET("/activity", h.GetRecentActivity)

		triage := analytics.Group("", auth, middlewares.RequireRole(models.RoleAuthority, models.RoleAdmin))
		triage.GET("/priority-queue", h.GetPriorityQueue)
		triage.GET("/departments", h.GetDepartmentPerformance)
	}
}
