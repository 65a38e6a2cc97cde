package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/MuiGoku123432/adoflow"
	"github.com/MuiGoku123432/adoflow/internal/config"
	"github.com/MuiGoku123432/adoflow/internal/logging"
	"github.com/MuiGoku123432/adoflow/pkg/adapters/azuredevops"
	redisAdapter "github.com/MuiGoku123432/adoflow/pkg/adapters/redis"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "adoflow",
	Short: "adoflow advances Azure DevOps work items through their workflow",
	Long: `adoflow discovers the next workflow state of an Azure DevOps work item,
collects any fields the process requires, and applies the transition.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "adoflow.yaml", "Path to the configuration file")
}

// loadConfig reads the config file named by the persistent flag and validates
// the ADO connection settings.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if cfg.Log.Format == "json" {
		return logging.NewJSON(level)
	}
	return logging.New(level)
}

// buildEngine wires the provider, store and locker described by the config
// into an engine. The returned cleanup releases backend connections.
func buildEngine(cfg *config.Config, logger *slog.Logger, extra ...adoflow.Option) (*adoflow.Engine, func(), error) {
	provider := azuredevops.NewClient(azuredevops.Config{
		Organization: cfg.Organization,
		Project:      cfg.Project,
		PAT:          cfg.PAT,
		BaseURL:      cfg.BaseURL,
	}, azuredevops.WithLogger(logger))

	opts := []adoflow.Option{
		adoflow.WithLogger(logger),
		adoflow.WithIdentityResolver(provider),
	}
	if cfg.PreviewTTL > 0 {
		opts = append(opts, adoflow.WithPreviewTTL(cfg.PreviewTTL))
	}

	cleanup := func() {}
	if cfg.Store.Type == "redis" {
		var storeOpts []redisAdapter.Option
		if cfg.Store.Redis.TTL > 0 {
			storeOpts = append(storeOpts, redisAdapter.WithTTL(cfg.Store.Redis.TTL))
		}
		store := redisAdapter.New(cfg.Store.Redis.Addr, cfg.Store.Redis.Password, cfg.Store.Redis.DB, storeOpts...)
		locker := redisAdapter.NewLocker(store.Client(), "adoflow:")

		opts = append(opts, adoflow.WithPendingStore(store), adoflow.WithLocker(locker))
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Warn("failed to close redis store", "err", err)
			}
		}
	}
	opts = append(opts, extra...)

	engine, err := adoflow.New(provider, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return engine, cleanup, nil
}
