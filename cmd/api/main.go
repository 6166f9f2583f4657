package main

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/richxcame/returnguard/internal/cases"
	"github.com/richxcame/returnguard/internal/riskmodel"
	"github.com/richxcame/returnguard/internal/scoring"
	"github.com/richxcame/returnguard/internal/textanalysis"
	"github.com/richxcame/returnguard/internal/vision"
	"github.com/richxcame/returnguard/pkg/common"
	"github.com/richxcame/returnguard/pkg/config"
	"github.com/richxcame/returnguard/pkg/database"
	"github.com/richxcame/returnguard/pkg/events"
	"github.com/richxcame/returnguard/pkg/logger"
	"github.com/richxcame/returnguard/pkg/middleware"
	"github.com/richxcame/returnguard/pkg/redis"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load("api")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Server.Environment); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	// Initialize Sentry when a DSN is configured
	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Server.Environment,
			Release:     version,
		}); err != nil {
			logger.Fatal("Failed to initialize Sentry", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	// Connect to PostgreSQL
	pool, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(pool)
	logger.Info("Connected to PostgreSQL database")

	// Connect to Redis
	redisClient, err := redis.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()
	logger.Info("Connected to Redis")

	// Event publisher (no-op unless NATS is enabled)
	publisher, err := events.NewPublisher(&cfg.Events)
	if err != nil {
		logger.Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer publisher.Close()

	// Load the risk model, training a bootstrap model when no blob exists yet
	model := riskmodel.NewEngine()
	if err := model.Load(cfg.Scoring.ModelPath); err != nil {
		if !errors.Is(err, riskmodel.ErrModelFileNotFound) {
			logger.Fatal("Failed to load risk model", zap.Error(err))
		}

		logger.Warn("No model blob found, training bootstrap model",
			zap.String("path", cfg.Scoring.ModelPath))
		if err := model.Train(nil); err != nil {
			logger.Fatal("Failed to train risk model", zap.Error(err))
		}
		if err := model.Save(cfg.Scoring.ModelPath); err != nil {
			logger.Warn("Failed to persist bootstrap model", zap.Error(err))
		}
	}
	logger.Info("Risk model ready", zap.String("path", cfg.Scoring.ModelPath))

	// Wire services and handlers
	policy := scoring.PolicyFromConfig(&cfg.Scoring)
	analyzer := textanalysis.NewAnalyzer()
	inspector := vision.NewInspector(cfg.Scoring.SimilarityThreshold)

	scoringService := scoring.NewService(analyzer, inspector, model, policy, cfg.Scoring.Workers)
	scoringHandler := scoring.NewHandler(scoringService)

	caseRepository := cases.NewRepository(pool)
	caseService := cases.NewService(caseRepository, scoringService, redisClient, publisher, policy)
	caseHandler := cases.NewHandler(caseService)

	// Set up Gin router
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics(cfg.Server.ServiceName))
	router.Use(middleware.SecurityHeaders())
	if cfg.Sentry.DSN != "" {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.Server.CORSOrigins, ",")
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Correlation-ID"}
	router.Use(cors.New(corsConfig))

	// Health check and metrics (no auth required)
	router.GET("/healthz", common.HealthCheck(cfg.Server.ServiceName, version))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api/v1")
	authenticated := api.Group("")
	authenticated.Use(middleware.AuthMiddleware(cfg.JWT.Secret))

	scoringHandler.RegisterRoutes(authenticated)
	caseHandler.RegisterRoutes(api, authenticated)

	// Start server
	addr := ":" + cfg.Server.Port
	logger.Info("Return fraud scoring API starting", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
