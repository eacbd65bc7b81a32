package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/slipledger/server/internal/backend"
	"github.com/slipledger/server/internal/backend/dedup"
	"github.com/slipledger/server/internal/backend/imagestore"
	"github.com/slipledger/server/internal/backend/messaging"
	"github.com/slipledger/server/internal/backend/ocr"
	"github.com/slipledger/server/internal/backend/preprocess"
	"github.com/slipledger/server/internal/backend/slip"
	"github.com/slipledger/server/internal/common"
	"github.com/slipledger/server/internal/core"
	"github.com/slipledger/server/internal/frontend"
)

const dedupTTL = 24 * time.Hour

func getConfigPath() string {
	// First check if config path is provided via environment variable
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		return configPath
	}

	// Default to config.yaml in current working directory
	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	return filepath.Join(cwd, "config.yaml")
}

func setupLogger(environment string) {
	if environment == "production" {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
		return
	}
	log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger().Level(zerolog.DebugLevel)
}

func main() {
	// Load .env for local runs; deployments set real environment variables
	if err := godotenv.Load(".env"); err != nil {
		log.Debug().Msg("no .env file loaded")
	}

	secrets, err := core.LoadSecrets()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load secrets from environment")
	}
	setupLogger(secrets.Environment)

	configPath := getConfigPath()
	config, err := core.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("failed to load config")
	}

	coreService, err := core.NewCoreService(config)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize core service")
	}

	lineClient, err := messaging.NewClient(secrets.ChannelAccessToken, secrets.ChannelSecret)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize messaging client")
	}

	var guard *dedup.Guard
	if secrets.RedisURL != "" {
		guard, err = dedup.NewFromURL(secrets.RedisURL, dedupTTL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize redelivery guard")
		}
		log.Info().Msg("redelivery guard enabled")
	}

	pipeline, err := preprocess.NewPipeline(preprocess.DefaultRegistry, config.Preprocess)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build preprocessing pipeline")
	}

	images, err := imagestore.New(config.ImageDirectory)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize image store")
	}

	workflow := slip.NewWorkflow(slip.WorkflowConfig{
		Store:      coreService.Database(),
		Contents:   lineClient,
		Replier:    lineClient,
		Extractor:  ocr.New(),
		Images:     images,
		Preprocess: pipeline,
		Language:   config.OCR.Language,
	})

	server := defineServer()

	apiService := backend.NewAPIService(coreService, lineClient, workflow, guard)
	apiService.SetRoutes(server)
	frontendService := frontend.NewFrontendService(config, coreService)
	frontendService.SetRoutes(server)

	portString := fmt.Sprintf(":%d", config.Port)

	// Start HTTP server in a goroutine to allow graceful shutdown
	go func() {
		if err := server.Start(portString); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	if err := coreService.Close(); err != nil {
		log.Error().Err(err).Msg("core service close error")
	}
	if err := guard.Close(); err != nil {
		log.Error().Err(err).Msg("redelivery guard close error")
	}
}

func defineServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Configure request logger to skip the probe endpoint
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/probe"
		},
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogError:     true,
		LogRemoteIP:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := log.Info()
			if v.Error != nil {
				event = log.Error().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	}))

	e.Use(middleware.Recover())
	e.Pre(middleware.RemoveTrailingSlash())

	e.Validator = common.NewRequestValidator()

	return e
}
