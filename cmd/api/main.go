package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sma-results-api/internal/config"
	"github.com/noah-isme/sma-results-api/internal/database"
	"github.com/noah-isme/sma-results-api/internal/handler"
	"github.com/noah-isme/sma-results-api/internal/middleware"
	"github.com/noah-isme/sma-results-api/internal/models"
	"github.com/noah-isme/sma-results-api/internal/repository"
	"github.com/noah-isme/sma-results-api/internal/router"
	"github.com/noah-isme/sma-results-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Student{},
		&models.Subject{},
		&models.Exam{},
		&models.GradeBand{},
		&models.Result{},
		&models.ResultUpdateRequest{},
		&models.AuditEntry{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	resultRepo := repository.NewResultRepository(db)
	updateRequestRepo := repository.NewUpdateRequestRepository(db)
	gradeBandRepo := repository.NewGradeBandRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	if cfg.SeedGradeBands {
		if err := gradeBandRepo.SeedDefaults(context.Background()); err != nil {
			log.Fatalf("failed to seed grade bands: %v", err)
		}
	}

	auditService := service.NewAuditService(auditRepo, logger)
	events := service.NewEventPublisher(redisClient, natsConn, cfg.EventChannelBase, logger)

	resultService := service.NewResultService(resultRepo, gradeBandRepo, redisClient, cfg.ResultsCacheTTL, validate, auditService, events, logger)
	approvalService := service.NewApprovalService(resultRepo, resultService, auditService, events, logger)
	updateRequestService := service.NewUpdateRequestService(updateRequestRepo, resultRepo, gradeBandRepo, resultService, validate, auditService, events, logger)
	publicationService := service.NewPublicationService(resultRepo, resultService, validate, auditService, events, logger)

	resultHandler := handler.NewResultHandler(resultService, logger)
	managementHandler := handler.NewResultManagementHandler(approvalService, updateRequestService, publicationService, resultService, auditService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger, EnableRequestLogs: cfg.EnableRequestLogs})
	router.Register(app, cfg, router.Dependencies{
		ResultHandler:           resultHandler,
		ResultManagementHandler: managementHandler,
		JWTMiddleware:           middleware.JWTProtected(cfg.JWTSecret),
		SubmitRateLimiter:       middleware.RateLimit("submit", cfg.SubmitRateLimit, cfg.SubmitRateWindow),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
