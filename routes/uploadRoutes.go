package routes

import (
	"civicguardian-be/controllers"

	"github.com/gin-gonic/gin"
)

func UploadRoutes(r *gin.Engine, h *controllers.UploadController, auth gin.HandlerFunc) {
	r.POST("/api/uploads", auth, h.UploadImages)
}
