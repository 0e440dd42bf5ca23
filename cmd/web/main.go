package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/de-tools/pivot-reports/pkg/app"
	"github.com/de-tools/pivot-reports/pkg/services/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfgPath string

func main() {
	var rootCmd = &cobra.Command{
		Use:   "web",
		Short: "Start the web server for pivot reports",
		RunE:  runServer,
	}

	rootCmd.Flags().StringVarP(&cfgPath, "config", "c", "",
		"Path to the configuration file (PIVOT_* environment variables override it)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Error loading .env file: %v\n", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger := app.NewLogger(cfg.Log, os.Stdout)
	ctx, stop := signal.NotifyContext(logger.WithContext(cmd.Context()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	profiles, _ := application.Profiles().GetProfiles(ctx)
	logger.Info().
		Str("store", cfg.Store.Backend).
		Str("storage_root", cfg.Storage.Root).
		Int("profiles", len(profiles)).
		Msg("configuration loaded")

	if err := application.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
