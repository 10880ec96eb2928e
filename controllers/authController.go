package controllers

import (
	"net/http"
	"time"

	"civicguardian-be/middlewares"
	"civicguardian-be/models"
	"civicguardian-be/services"

	"github.com/gin-gonic/gin"
)

type AuthController struct {
	identity *services.Identity
	timeout  time.Duration
}

func NewAuthController(identity *services.Identity, timeout time.Duration) *AuthController {
	return &AuthController{identity: identity, timeout: timeout}
}

// RegisterUser handles user registration
func (h *AuthController) RegisterUser(c *gin.Context) {
	var input struct {
		Name       string `json:"name" binding:"required"`
		Email      string `json:"email" binding:"required,email"`
		Password   string `json:"password" binding:"required,min=6"`
		Role       string `json:"role" binding:"omitempty,role"`
		Department string `json:"department"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, bindError(err))
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	result, err := h.identity.Register(ctx, services.RegisterCommand{
		Name:       input.Name,
		Email:      input.Email,
		Password:   input.Password,
		Role:       models.Role(input.Role),
		Department: input.Department,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// LoginUser handles user login
func (h *AuthController) LoginUser(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, bindError(err))
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	result, err := h.identity.Login(ctx, input.Email, input.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetMe returns the authenticated user's profile
func (h *AuthController) GetMe(c *gin.Context) {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	user, err := h.identity.Profile(ctx, middlewares.ActorFrom(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
