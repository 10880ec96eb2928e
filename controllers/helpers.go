package controllers

import (
	"context"
	"sync"
	"time"

	"civicguardian-be/apperrors"
	"civicguardian-be/middlewares"
	"civicguardian-be/models"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultRequestTimeout = 10 * time.Second

var registerOnce sync.Once

// RegisterValidators adds the domain enum checks to gin's binding engine so
// request structs can say `binding:"issuecategory"`.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("issuecategory", func(fl validator.FieldLevel) bool {
			return models.IssueCategory(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("issuestatus", func(fl validator.FieldLevel) bool {
			return models.IssueStatus(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return models.Role(fl.Field().String()).Valid()
		})
	})
}

func respondError(c *gin.Context, err error) {
	middlewares.AbortWithError(c, err)
}

func bindError(err error) error {
	return apperrors.Validation("%s", err.Error())
}

// parseObjectID reads a hex ObjectID path parameter.
func parseObjectID(c *gin.Context, param string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		respondError(c, apperrors.Validation("invalid %s", param))
		return primitive.NilObjectID, false
	}
	return id, true
}

func requestContext(c *gin.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}
