package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-price-watcher/internal/tracker/config"
	delivery "golang-price-watcher/internal/tracker/delivery/http"
	"golang-price-watcher/internal/tracker/extractor"
	"golang-price-watcher/internal/tracker/fetcher"
	"golang-price-watcher/internal/tracker/repository"
	"golang-price-watcher/internal/tracker/service"
	"golang-price-watcher/pkg/browser"
	"golang-price-watcher/pkg/logger"
	"golang-price-watcher/pkg/postgres"
	"golang-price-watcher/pkg/redis"
	"golang-price-watcher/pkg/telegram"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"google.golang.org/genai"
)

var configPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Starts the price tracker service",
	Run:   runServe,
}

func runServe(cmd *cobra.Command, args []string) {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger, err := logger.New(cfg.Logger.Level, cfg.Logger.Encoding)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = appLogger.Sync() }()

	appLogger.Info("Starting Price Tracker Service", logger.Field("name", cfg.App.Name))

	// Initialize database
	postgresCfg := postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
	db, err := postgres.NewDB(postgresCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize database", logger.ErrorField(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		defer sqlDB.Close()
	}

	// Initialize Redis
	redisCfg := redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	redisClient, err := redis.NewClient(redisCfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize Redis", logger.ErrorField(err))
	}
	defer redisClient.Close()

	// Initialize repositories
	itemRepo := repository.NewTrackedItemRepository(db.DB)
	priceRepo := repository.NewPriceObservationRepository(db.DB)
	stockRepo := repository.NewStockStatusObservationRepository(db.DB)

	// Initialize AI oracle
	var oracleRepo repository.OracleRepository
	switch cfg.AI.Provider {
	case "gemini":
		genAiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{
			APIKey: cfg.Gemini.APIKey,
		})
		if err != nil {
			appLogger.Fatal("Failed to initialize Gemini AI client", logger.ErrorField(err))
		}
		oracleRepo, err = repository.NewGeminiOracleRepository(cfg, appLogger, genAiClient)
		if err != nil {
			appLogger.Fatal("Failed to initialize Gemini oracle", logger.ErrorField(err))
		}
	case "none", "":
		appLogger.Info("AI oracle disabled")
	default:
		appLogger.Fatal("Unknown AI provider", logger.StringField("provider", cfg.AI.Provider))
	}

	// Initialize headless renderer
	renderer, err := browser.NewRodRenderer(cfg.Renderer, appLogger)
	if err != nil {
		appLogger.Warn("Headless renderer unavailable, rendered fetches disabled", logger.ErrorField(err))
		renderer = nil
	}
	if renderer != nil {
		defer renderer.Close()
	}

	// Initialize Telegram notifier
	var notifier telegram.Notifier
	if cfg.Telegram.BotToken != "" {
		notifier, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
		if err != nil {
			appLogger.Fatal("Failed to initialize Telegram notifier", logger.ErrorField(err))
		}
	} else {
		appLogger.Info("Telegram notifier disabled")
	}

	// Initialize the check pipeline
	pageFetcher := fetcher.New(cfg.Tracker, renderer, appLogger)
	registry := extractor.NewRegistry(appLogger)
	stockInferencer := extractor.NewStockInferencer(appLogger)

	checkerSvc := service.NewCheckerService(
		cfg, appLogger, pageFetcher, registry, stockInferencer,
		oracleRepo, itemRepo, priceRepo, stockRepo, notifier, redisClient,
	)
	schedulerSvc := service.NewSchedulerService(cfg, appLogger, itemRepo, checkerSvc)

	// Start scheduler service
	if err := schedulerSvc.Start(ctx); err != nil {
		appLogger.Fatal("Failed to start scheduler", logger.ErrorField(err))
	}
	defer schedulerSvc.Stop()

	// Initialize Echo server
	e := echo.New()
	e.HideBanner = true

	// Initialize handlers and routes
	itemHandler := delivery.NewItemHandler(itemRepo, priceRepo, checkerSvc, appLogger)
	apiV1 := e.Group("/api/v1")
	itemsGroup := apiV1.Group("/items")
	itemHandler.RegisterRoutes(itemsGroup)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.API.Port)
		appLogger.Info("HTTP server starting", logger.Field("address", addr))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			appLogger.Error("HTTP server failed to start", logger.ErrorField(err))
			stop() // trigger shutdown
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	appLogger.Info("Shutting down server...")

	// Gracefully shutdown the server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	appLogger.Info("Server exiting")
}

func main() {
	rootCmd := &cobra.Command{Use: "tracker-service"}

	serveCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")

	rootCmd.AddCommand(serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing tracker-service CLI: %s\n", err)
		os.Exit(1)
	}
}
