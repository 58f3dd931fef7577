package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mise-app/mise-api/internal/config"
	"github.com/mise-app/mise-api/internal/db"
	"github.com/mise-app/mise-api/internal/logger"
	"github.com/mise-app/mise-api/internal/router"
	"go.uber.org/zap"
)

// init is called before the main function.
func init() {
	// Initialize structured logger (dev mode if GIN_MODE != release)
	isDev := os.Getenv("GIN_MODE") != "release"
	logger.Init(isDev)

	// Configure the runtime
	ConfigureRuntime()
}

// Entry point for the API.
func main() {
	defer logger.Sync()

	// Load the config
	var cfg *config.Config
	if c, err := config.LoadConfig(); err != nil {
		logger.Get().Fatal("failed to load config", zap.Error(err))
	} else {
		cfg = c
	}

	// Check that all ENV variables are set
	if err := cfg.CheckConfigEnvFields(); err != nil {
		logger.Get().Fatal("missing required config fields", zap.Error(err))
	}

	// Load prompts from YAML
	prompts, err := config.LoadPrompts("configs/prompts.yaml")
	if err != nil {
		logger.Get().Fatal("failed to load prompts", zap.Error(err))
	}
	cfg.Prompts = prompts

	// Connect to the database
	database, err := db.New(cfg)
	if err != nil {
		logger.Get().Fatal("failed to connect to database", zap.Error(err))
	}
	sqlDB, err := database.DB()
	if err != nil {
		logger.Get().Fatal("failed to get underlying sql.DB", zap.Error(err))
	}
	defer sqlDB.Close()

	// Create a new gin router
	gin.SetMode(gin.ReleaseMode)
	r, hub := router.SetupRouter(cfg, database)

	srv := &http.Server{
		Addr:    ":" + cfg.EnvVars.Port,
		Handler: r,
	}

	go func() {
		logger.Get().Info("starting server", zap.String("port", cfg.EnvVars.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Get().Fatal("server stopped", zap.Error(err))
		}
	}()

	// Wait for a shutdown signal, then close the live cook sessions
	// before draining in-flight HTTP requests.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Get().Info("shutting down")
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Get().Error("forced shutdown", zap.Error(err))
	}
}

// ConfigureRuntime sets the number of operating system threads.
func ConfigureRuntime() {
	nuCPU := runtime.NumCPU()
	runtime.GOMAXPROCS(nuCPU)
	logger.Get().Info("runtime configured", zap.Int("cpus", nuCPU))
}
