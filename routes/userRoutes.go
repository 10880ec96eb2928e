package routes

import (
	"civicguardian-be/controllers"

	"github.com/gin-gonic/gin"
)

func UserRoutes(r *gin.Engine, h *controllers.UserController) {
	users := r.Group("/api/users")
	{
		users.GET("/leaderboard", h.GetLeaderboard)
	}
}
