package controllers

import (
	"net/http"
	"time"

	"civicguardian-be/services"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	identity *services.Identity
	timeout  time.Duration
}

func NewUserController(identity *services.Identity, timeout time.Duration) *UserController {
	return &UserController{identity: identity, timeout: timeout}
}

// GetLeaderboard returns the top citizens by civic points
func (h *UserController) GetLeaderboard(c *gin.Context) {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	users, err := h.identity.Leaderboard(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}
