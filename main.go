package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-questionnaire/pkg/config"
	"github.com/ekaya-inc/ekaya-questionnaire/pkg/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "ekaya-questionnaire",
	Short:         "Answer security questionnaires from your policy documents",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath, "path to config.yaml")
}

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and builds the process logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFrom(configPath, Version)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.NewLogger(cfg.LogLevel, cfg.Env)
	if err != nil {
		return nil, nil, err
	}

	return cfg, logger, nil
}
