package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Config holds everything read from the environment. It is built once in
// main and passed down explicitly.
type Config struct {
	Port           int
	Env            string
	LogLevel       string
	RequestTimeout time.Duration

	StoreDriver   string
	MongoURI      string
	MongoDatabase string

	RedisAddress     string
	RedisPassword    string
	IssueLimitPrefix string
	DailyIssueLimit  int

	JWTSecret    string
	JWTTTL       time.Duration
	AllowOrigins []string

	AMQPURL   string
	AMQPQueue string

	Minio     MinioConfig
	UploadDir string

	EngagementRate  float64
	EngagementBurst int
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

func (c *Config) IsProduction() bool { return c.Env == "production" }

// QuotaEnabled reports whether the daily report quota has a Redis backend.
func (c *Config) QuotaEnabled() bool { return c.RedisAddress != "" }

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8080)
	v.SetDefault("GO_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REQUEST_TIMEOUT", "10s")
	v.SetDefault("STORE_DRIVER", StoreMongo)
	v.SetDefault("MONGODB_DATABASE", "civicguardian")
	v.SetDefault("REDIS_QUEUE_FOR_ISSUE_LIMIT", "issue_limit")
	v.SetDefault("DAILY_ISSUE_LIMIT", 20)
	v.SetDefault("JWT_TTL", "168h")
	v.SetDefault("ALLOW_ORIGINS", "*")
	v.SetDefault("AMQP_QUEUE", "issue_events")
	v.SetDefault("MINIO_BUCKET", "issue-images")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("UPLOAD_DIR", "uploads")
	v.SetDefault("ENGAGEMENT_RATE", 2.0)
	v.SetDefault("ENGAGEMENT_BURST", 10)
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:             v.GetInt("PORT"),
		Env:              strings.ToLower(strings.TrimSpace(v.GetString("GO_ENV"))),
		LogLevel:         strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		RequestTimeout:   v.GetDuration("REQUEST_TIMEOUT"),
		StoreDriver:      strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
		MongoURI:         strings.TrimSpace(v.GetString("MONGODB_URI")),
		MongoDatabase:    strings.TrimSpace(v.GetString("MONGODB_DATABASE")),
		RedisAddress:     strings.TrimSpace(v.GetString("REDIS_ADDRESS")),
		RedisPassword:    v.GetString("REDIS_PASSWORD"),
		IssueLimitPrefix: strings.TrimSpace(v.GetString("REDIS_QUEUE_FOR_ISSUE_LIMIT")),
		DailyIssueLimit:  v.GetInt("DAILY_ISSUE_LIMIT"),
		JWTSecret:        strings.TrimSpace(v.GetString("JWT_SECRET")),
		JWTTTL:           v.GetDuration("JWT_TTL"),
		AMQPURL:          strings.TrimSpace(v.GetString("AMQP_URL")),
		AMQPQueue:        strings.TrimSpace(v.GetString("AMQP_QUEUE")),
		Minio: MinioConfig{
			Endpoint:  strings.TrimSpace(v.GetString("MINIO_ENDPOINT")),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			Bucket:    strings.TrimSpace(v.GetString("MINIO_BUCKET")),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			PublicURL: strings.TrimSpace(v.GetString("MINIO_PUBLIC_URL")),
		},
		UploadDir:       strings.TrimSpace(v.GetString("UPLOAD_DIR")),
		EngagementRate:  v.GetFloat64("ENGAGEMENT_RATE"),
		EngagementBurst: v.GetInt("ENGAGEMENT_BURST"),
	}

	for _, origin := range strings.Split(v.GetString("ALLOW_ORIGINS"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("invalid PORT %d", c.Port)
	case c.StoreDriver != StoreMongo && c.StoreDriver != StoreMemory:
		return fmt.Errorf("STORE_DRIVER must be %q or %q", StoreMongo, StoreMemory)
	case c.StoreDriver == StoreMongo && c.MongoURI == "":
		return errors.New("please define the MONGODB_URI environment variable")
	case len(c.JWTSecret) < 16:
		return errors.New("JWT_SECRET must be at least 16 characters")
	case c.JWTTTL <= 0:
		return errors.New("JWT_TTL must be positive")
	case c.RequestTimeout <= 0:
		return errors.New("REQUEST_TIMEOUT must be positive")
	case c.DailyIssueLimit < 1:
		return errors.New("DAILY_ISSUE_LIMIT must be at least 1")
	case c.QuotaEnabled() && c.IssueLimitPrefix == "":
		return errors.New("REDIS_QUEUE_FOR_ISSUE_LIMIT must not be empty")
	case c.EngagementRate <= 0 || c.EngagementBurst < 1:
		return errors.New("ENGAGEMENT_RATE and ENGAGEMENT_BURST must be positive")
	case len(c.AllowOrigins) == 0:
		return errors.New("ALLOW_ORIGINS must list at least one origin")
	}
	return nil
}
