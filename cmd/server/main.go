package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dbmcp/pg-mcp-server/internal/config"
	"github.com/dbmcp/pg-mcp-server/internal/logger"
	"github.com/dbmcp/pg-mcp-server/internal/mcp"
	"github.com/dbmcp/pg-mcp-server/pkg/db"
	"github.com/dbmcp/pg-mcp-server/pkg/dbtools"
)

func main() {
	// Parse command line flags
	transportMode := flag.String("t", "stdio", "Transport mode (stdio)")
	dsn := flag.String("dsn", "", "PostgreSQL connection string (overrides environment)")
	flag.Parse()

	// Load .env file if present, then configuration
	_ = godotenv.Load()
	cfg := config.LoadConfig()

	// Override config with command line flags if provided
	if *dsn != "" {
		cfg.DB.URL = *dsn
	}

	// Initialize logger
	logger.Initialize(cfg.LogLevel)

	if *transportMode != "stdio" {
		logger.Error("Unknown transport mode: %s", *transportMode)
		os.Exit(1)
	}

	connStr := cfg.DB.DSN()

	base, err := db.BaseURL(connStr)
	if err != nil {
		logger.Error("Invalid connection string: %v", err)
		os.Exit(1)
	}

	database, err := db.NewDatabase(db.Config{DSN: connStr})
	if err != nil {
		logger.Error("Failed to configure database: %v", err)
		os.Exit(1)
	}
	if err := database.Connect(); err != nil {
		logger.Error("Failed to connect to database: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("Error closing database connection: %v", err)
		}
	}()
	logger.Info("Connected to database at %s", base.Host)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := mcp.New(dbtools.NewExecutor(database), base)
	if err := srv.RegisterResources(ctx); err != nil {
		// The server is still usable for tool calls without resources.
		logger.Warn("Resource discovery failed: %v", err)
	}

	if err := srv.ServeStdio(ctx); err != nil {
		logger.ErrorWithStack(err)
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
