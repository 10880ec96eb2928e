package routes

import (
	"net/http"
	"time"

	"civicguardian-be/controllers"
	"civicguardian-be/middlewares"
	"civicguardian-be/services"
	"civicguardian-be/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Deps carries everything the HTTP layer needs. Redis and UploadDir are
// optional; without Redis the daily report quota is not enforced.
type Deps struct {
	Engine    *services.Engine
	Analytics *services.Analytics
	Identity  *services.Identity
	Tokens    middlewares.TokenParser
	Uploader  storage.Uploader

	Redis            *redis.Client
	IssueLimitPrefix string
	DailyIssueLimit  int

	EngagementRate  float64
	EngagementBurst int

	AllowOrigins   []string
	UploadDir      string
	RequestTimeout time.Duration
}

// NewRouter builds the gin engine with every route group mounted.
func NewRouter(d Deps) *gin.Engine {
	controllers.RegisterValidators()

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery(), middlewares.RequestID(), middlewares.AccessLogger(), middlewares.Metrics())
	r.Use(cors.New(corsConfig(d.AllowOrigins)))

	r.GET("/metrics", middlewares.MetricsHandler())
	r.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
	})
	if d.UploadDir != "" {
		r.Static("/uploads", d.UploadDir)
	}

	auth := middlewares.AuthMiddleware(d.Tokens, d.Identity)

	AuthRoutes(r, controllers.NewAuthController(d.Identity, d.RequestTimeout), auth)
	UserRoutes(r, controllers.NewUserController(d.Identity, d.RequestTimeout))
	IssueRoutes(r, d, auth)
	AnalyticsRoutes(r, controllers.NewAnalyticsController(d.Analytics, d.Identity, d.RequestTimeout), auth)
	if d.Uploader != nil {
		UploadRoutes(r, controllers.NewUploadController(d.Uploader, d.RequestTimeout), auth)
	}
	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
