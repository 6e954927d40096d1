package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ridopark/chanlun-engine/internal/config"
	"github.com/ridopark/chanlun-engine/internal/database"
	"github.com/ridopark/chanlun-engine/internal/logger"
)

var (
	rootCmd = &cobra.Command{
		Use:   "chanlun",
		Short: "Chan-theory structural decomposition CLI",
		Long:  `Submit candle batches to a running engine, inspect tracked series, probe its health, and manage the confirmed-record sink's schema.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return validateOutputFormat(format)
		},
	}

	// Global flags
	configFile string
	logLevel   string
	format     string
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is config/.env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "output format (table, json, csv); only the series command reads it: json prints JSON, anything else a table")

	// Add subcommands
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(seriesCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// initializeApp initializes configuration and, when the sink is enabled, a
// database connection. It never starts an HTTP server.
func initializeApp() (*config.Config, *database.DB, error) {
	if configFile != "" {
		if err := godotenv.Load(configFile); err != nil {
			return nil, nil, fmt.Errorf("failed to load config file %s: %w", configFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger.InitLogger(cfg.LogLevel, cfg.Environment)

	if !cfg.Database.Enabled {
		return cfg, nil, nil
	}

	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return cfg, db, nil
}

// validateDateString validates a date string in YYYY-MM-DD format
func validateDateString(dateStr string) (time.Time, error) {
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("date cannot be empty")
	}

	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format: use YYYY-MM-DD")
	}

	return date, nil
}
