package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicguardian-be/config"
	"civicguardian-be/events"
	"civicguardian-be/repository"
	"civicguardian-be/routes"
	"civicguardian-be/services"
	"civicguardian-be/storage"
	authUtils "civicguardian-be/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := config.SetupLogger(cfg, os.Stdout)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	issues, users, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	var quota *redis.Client
	if cfg.QuotaEnabled() {
		quota, err = config.ConnectRedis(ctx, cfg)
		if err != nil {
			return err
		}
		defer quota.Close()
	} else {
		log.Warn().Msg("REDIS_ADDRESS not set, daily issue quota disabled")
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return err
		}
		publisher = amqpPublisher
	}
	defer publisher.Close()

	uploader, err := openUploader(ctx, cfg)
	if err != nil {
		return err
	}

	tokens := authUtils.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	ledger := services.NewLedger(users, time.Now)
	engine := services.NewEngine(issues, ledger,
		services.WithPublisher(publisher),
		services.WithLogger(logger.With().Str("component", "lifecycle").Logger()),
	)

	router := routes.NewRouter(routes.Deps{
		Engine:           engine,
		Analytics:        services.NewAnalytics(issues, users, time.Now),
		Identity:         services.NewIdentity(users, ledger, tokens, time.Now),
		Tokens:           tokens,
		Uploader:         uploader,
		Redis:            quota,
		IssueLimitPrefix: cfg.IssueLimitPrefix,
		DailyIssueLimit:  cfg.DailyIssueLimit,
		EngagementRate:   cfg.EngagementRate,
		EngagementBurst:  cfg.EngagementBurst,
		AllowOrigins:     cfg.AllowOrigins,
		UploadDir:        uploadDir(cfg),
		RequestTimeout:   cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config) (repository.IssueRepository, repository.UserRepository, func(), error) {
	if cfg.StoreDriver == config.StoreMemory {
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return repository.NewMemoryIssueRepository(), repository.NewMemoryUserRepository(), func() {}, nil
	}

	client, db, err := config.ConnectDB(ctx, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	issues := repository.NewMongoIssueRepository(db)
	users := repository.NewMongoUserRepository(db)
	if err := issues.EnsureIndexes(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("ensure issue indexes: %w", err)
	}
	if err := users.EnsureIndexes(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("ensure user indexes: %w", err)
	}

	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Disconnect(ctx); err != nil {
			log.Error().Err(err).Msg("failed to disconnect from MongoDB")
		}
	}
	return issues, users, closeFn, nil
}

func openUploader(ctx context.Context, cfg *config.Config) (storage.Uploader, error) {
	if cfg.Minio.Endpoint != "" {
		return storage.NewMinioUploader(ctx, storage.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
			PublicURL: cfg.Minio.PublicURL,
		})
	}
	return storage.NewDiskUploader(cfg.UploadDir, "/uploads")
}

// uploadDir is served statically only when images live on local disk.
func uploadDir(cfg *config.Config) string {
	if cfg.Minio.Endpoint != "" {
		return ""
	}
	return cfg.UploadDir
}
