package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display comprehensive environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()

		identity := GetAppIdentity()
		observability.CLILogger.Info("=== ChatRelay Environment Information ===")
		observability.CLILogger.Info("")

		// Application Info
		observability.CLILogger.Info("Application:")
		observability.CLILogger.Info("  Name:       " + identity.BinaryName)
		observability.CLILogger.Info("  Version:    " + versionInfo.Version)
		observability.CLILogger.Info("  Commit:     " + versionInfo.Commit)
		observability.CLILogger.Info("  Built:      " + versionInfo.BuildDate)
		observability.CLILogger.Info("")

		// SSOT Info
		observability.CLILogger.Info("SSOT:")
		observability.CLILogger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		observability.CLILogger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		observability.CLILogger.Info("")

		// Runtime Info
		observability.CLILogger.Info("Runtime:")
		observability.CLILogger.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		observability.CLILogger.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		observability.CLILogger.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		observability.CLILogger.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		observability.CLILogger.Info("")

		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			observability.CLILogger.Warn("Config load failed", zap.Error(err))
			return
		}

		// Configuration
		observability.CLILogger.Info("Configuration:")
		observability.CLILogger.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		observability.CLILogger.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		observability.CLILogger.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		observability.CLILogger.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		observability.CLILogger.Info("  DB Driver:      "+cfg.Store.Driver, zap.String("db_driver", cfg.Store.Driver))
		if strings.TrimSpace(cfg.Store.URL) != "" {
			observability.CLILogger.Info("  DB URL:         "+cfg.Store.URL, zap.String("db_url", cfg.Store.URL))
		} else {
			observability.CLILogger.Info("  DB Path:        "+cfg.Store.Path, zap.String("db_path", cfg.Store.Path))
		}
		observability.CLILogger.Info(fmt.Sprintf("  Metrics Port:   %d", cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		observability.CLILogger.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		observability.CLILogger.Info("")

		// Upstream Configuration
		observability.CLILogger.Info("Upstream:")
		observability.CLILogger.Info("  Base URL:       " + cfg.Upstream.BaseURL)
		observability.CLILogger.Info("  Model:          " + cfg.Upstream.Model)
		observability.CLILogger.Info("  Image Model:    " + cfg.Upstream.ImageModel)
		if strings.TrimSpace(cfg.Upstream.APIKey) != "" {
			observability.CLILogger.Info("  API Key:        (set)")
		} else {
			observability.CLILogger.Info("  API Key:        (not set)")
		}
		observability.CLILogger.Info(fmt.Sprintf("  Max Concurrent: %d", cfg.Upstream.MaxConcurrent))
		observability.CLILogger.Info(fmt.Sprintf("  Max Attempts:   %d", cfg.Upstream.MaxAttempts))
		observability.CLILogger.Info("  Attempt Timeout: " + cfg.Upstream.AttemptTimeout.String())
		observability.CLILogger.Info("")

		// Image Queue Configuration
		observability.CLILogger.Info("Image Queue:")
		observability.CLILogger.Info(fmt.Sprintf("  Capacity:       %d", cfg.Queue.Capacity))
		observability.CLILogger.Info(fmt.Sprintf("  Max Attempts:   %d", cfg.Queue.MaxAttempts))
		observability.CLILogger.Info("  Attempt Timeout: " + cfg.Queue.AttemptTimeout.String())
		observability.CLILogger.Info("  Stale Age:      " + cfg.Queue.StaleAge.String())
		observability.CLILogger.Info("  Shutdown Grace: " + cfg.Queue.ShutdownGrace.String())
		observability.CLILogger.Info("")

		// Engine Configuration
		observability.CLILogger.Info("Engine:")
		observability.CLILogger.Info(fmt.Sprintf("  History Limit:  %d", cfg.Engine.HistoryLimit))
		observability.CLILogger.Info(fmt.Sprintf("  Max Image Bytes: %d", cfg.Engine.MaxImageBytes))
		observability.CLILogger.Info(fmt.Sprintf("  Page Length:    %d", cfg.Engine.PageLength))
		observability.CLILogger.Info(fmt.Sprintf("  Page Cache:     %d", cfg.Engine.PageCacheSize))
		observability.CLILogger.Info(fmt.Sprintf("  Admin IDs:      %v", cfg.Engine.AdminIDs))
		observability.CLILogger.Info("")

		observability.CLILogger.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
