package routes

import (
	"civicguardian-be/controllers"

	"github.com/gin-gonic/gin"
)

// AuthRoutes sets up the authentication routes
func AuthRoutes(r *gin.Engine, h *controllers.AuthController, auth gin.HandlerFunc) {
	group := r.Group("/api/auth")
	{
		group.POST("/register", h.RegisterUser)
		group.POST("/login", h.LoginUser)
		group.GET("/me", auth, h.GetMe)
	}
}
