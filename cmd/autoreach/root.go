package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/autoreach-api/internal/config"
	"github.com/jmylchreest/autoreach-api/internal/logging"
	"github.com/jmylchreest/autoreach-api/internal/service"
	"github.com/jmylchreest/autoreach-api/internal/version"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "autoreach",
	Short: "AutoReach Monitor command line",
	Long: `Runs brand visibility analyses and AEO audits locally.

Provider keys and analysis settings are read from the environment
(and an optional .env file), exactly as the API server reads them.`,
	Version: version.Get().String(),
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		}
		// Logs go to stderr so stdout stays machine readable.
		slog.SetDefault(logging.NewWithWriter(os.Stderr))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading configuration")

	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(aeoCmd)
	rootCmd.AddCommand(tokenCmd)
}

// loadServices builds the service graph without persistence.
func loadServices() (*config.Config, *service.Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	svcs, err := service.NewServices(cfg, nil, slog.Default())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return cfg, svcs, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
