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

	"github.com/unza-cs/grading-api/internal/config"
	"github.com/unza-cs/grading-api/internal/database"
	"github.com/unza-cs/grading-api/internal/handler"
	"github.com/unza-cs/grading-api/internal/middleware"
	"github.com/unza-cs/grading-api/internal/models"
	"github.com/unza-cs/grading-api/internal/repository"
	"github.com/unza-cs/grading-api/internal/router"
	"github.com/unza-cs/grading-api/internal/service"
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
		&models.AssignmentSchema{},
		&models.VariantConfig{},
		&models.TestResult{},
		&models.SimilarityPair{},
		&models.RosterEntry{},
		&models.GradeRecord{},
		&models.GradeOverrideHistory{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	// Redis and NATS are optional side channels; the core pipeline runs
	// without them.
	redisClient, err := database.ConnectRedis(context.Background(), cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, summary caching disabled")
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			logger.Warn().Err(err).Msg("nats unavailable, review events disabled")
			natsConn = nil
		} else {
			defer natsConn.Close()
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	schemaRepo := repository.NewSchemaRepository(db)
	variantRepo := repository.NewVariantRepository(db)
	resultRepo := repository.NewTestResultRepository(db)
	similarityRepo := repository.NewSimilarityRepository(db)
	gradeRepo := repository.NewGradeRepository(db)

	schemaService := service.NewSchemaService(schemaRepo, logger)
	variantService := service.NewVariantService(schemaRepo, variantRepo, cfg.SemesterSalt, logger)
	reportService := service.NewReportService(resultRepo, validate, cfg.IngestTimeout, logger)
	similarityService := service.NewSimilarityService(similarityRepo, cfg.Penalty, validate, logger)
	gradingService := service.NewGradingService(gradeRepo, resultRepo, similarityService, redisClient, natsConn, cfg.SummaryCacheTTL, validate, logger)
	batchService := service.NewBatchService(variantService, gradingService, cfg.BatchWorkers, validate, logger)

	policy := service.PolicyFromConfig(cfg)
	if err := policy.Validate(); err != nil {
		log.Fatalf("invalid grading policy: %v", err)
	}

	schemaHandler := handler.NewSchemaHandler(schemaService, logger)
	variantHandler := handler.NewVariantHandler(variantService, validate, logger)
	reportHandler := handler.NewReportHandler(reportService, similarityService, validate, logger)
	gradeHandler := handler.NewGradeHandler(gradingService, batchService, policy, validate, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SchemaHandler:  schemaHandler,
		VariantHandler: variantHandler,
		ReportHandler:  reportHandler,
		GradeHandler:   gradeHandler,
		JWTMiddleware:  middleware.JWTProtected(cfg.JWTSecret),
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
