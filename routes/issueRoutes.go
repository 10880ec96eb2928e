package routes

import (
	"civicguardian-be/controllers"
	"civicguardian-be/middlewares"
	"civicguardian-be/models"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes
func IssueRoutes(r *gin.Engine, d Deps, auth gin.HandlerFunc) {
	h := controllers.NewIssueController(d.Engine, d.Identity, d.RequestTimeout)

	create := []gin.HandlerFunc{auth}
	if d.Redis != nil && d.DailyIssueLimit > 0 {
		create = append(create, middlewares.IssueRateLimiter(d.Redis, d.IssueLimitPrefix, d.DailyIssueLimit))
	}
	create = append(create, h.CreateIssue)

	engagement := []gin.HandlerFunc{auth}
	if d.EngagementRate > 0 {
		engagement = append(engagement, middlewares.NewThrottle(d.EngagementRate, d.EngagementBurst).Handler())
	}
	with := func(handler gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, engagement...), handler)
	}

	issue := r.Group("/api/issues")
	{
		issue.GET("", h.GetAllIssues)
		issue.POST("", create...)
		issue.GET("/user/my-issues", auth, h.GetMyIssues)
		issue.GET("/:id", h.GetIssue)
		issue.PUT("/:id/status", auth, middlewares.RequireRole(models.RoleAuthority, models.RoleAdmin), h.UpdateIssueStatus)
		issue.POST("/:id/upvote", with(h.UpvoteIssue)...)
		issue.POST("/:id/verify", with(h.VerifyIssue)...)
		issue.POST("/:id/comment", with(h.CommentOnIssue)...)
	}
}
