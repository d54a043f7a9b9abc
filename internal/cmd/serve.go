package cmd

import (
	"context"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/chatrelay/chatrelay/internal/config"
	errwrap "github.com/chatrelay/chatrelay/internal/errors"
	"github.com/chatrelay/chatrelay/internal/metrics"
	"github.com/chatrelay/chatrelay/internal/observability"
	"github.com/chatrelay/chatrelay/internal/relay/engine"
	"github.com/chatrelay/chatrelay/internal/relay/flight"
	"github.com/chatrelay/chatrelay/internal/relay/history"
	"github.com/chatrelay/chatrelay/internal/relay/imagequeue"
	"github.com/chatrelay/chatrelay/internal/relay/ratelimit"
	"github.com/chatrelay/chatrelay/internal/relay/upstream"
	"github.com/chatrelay/chatrelay/internal/server"
	"github.com/chatrelay/chatrelay/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// storeHealthChecker pings the history database.
type storeHealthChecker struct {
	store *history.Store
}

func (s storeHealthChecker) CheckHealth(ctx context.Context) error {
	if s.store == nil || s.store.DB == nil {
		return errwrap.NewDatabaseError("history store not initialized")
	}
	if err := s.store.DB.PingContext(ctx); err != nil {
		return errwrap.WrapDatabase(ctx, err, "history store unreachable")
	}
	return nil
}

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// upstreamHealthChecker validates the upstream configuration without
// spending a completion call.
type upstreamHealthChecker struct {
	baseURL string
	model   string
}

func (u upstreamHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case u.baseURL == "":
		return errwrap.NewConfigInvalidError("upstream base URL not configured")
	case u.model == "":
		return errwrap.NewConfigInvalidError("upstream model not configured")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay HTTP server",
	Long: `Start the relay HTTP server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Config reload (re-applies rate-limit rules)

Shutdown drains the image queue within its grace period, flushes
buffered history rows, and stops the HTTP server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		identity := GetAppIdentity()
		namespace := identity.TelemetryNamespace()

		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "config load failed")
		}

		observability.InitServerLogger(identity.BinaryName, cfg.Logging.Level, namespace)

		metricsPort := cfg.Metrics.Port
		if metricsPort == 0 {
			metricsPort = 9090
		}
		if err := observability.InitMetrics(identity.BinaryName, metricsPort, namespace); err != nil {
			observability.ServerLogger.Error("Failed to initialize metrics", zap.Error(err))
			return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
		}

		observability.ServerLogger.Info("Initializing relay",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Int("metrics_port", metricsPort))

		relayLogger := observability.ComponentLogger(cfg.Logging.Level)

		store, err := history.Open(cmd.Context(), cfg.Store, relayLogger)
		if err != nil {
			return errwrap.WrapDatabase(cmd.Context(), err, "open history store")
		}
		if err := store.Migrate(cmd.Context()); err != nil {
			_ = store.Close()
			return errwrap.WrapDatabase(cmd.Context(), err, "migrate history store")
		}

		limiter := ratelimit.New(buildRules(cfg.RateLimit))
		for _, id := range cfg.RateLimit.VIPs {
			limiter.AddVIP(id)
		}
		if stored, err := store.VIPs(cmd.Context()); err != nil {
			observability.ServerLogger.Warn("Failed to load persisted VIPs", zap.Error(err))
		} else {
			for _, id := range stored {
				limiter.AddVIP(id)
			}
		}

		gate := flight.New(0, relayLogger)

		client := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.APIKey)
		pool := upstream.NewPool(client, upstream.PoolConfig{
			MaxConcurrent:  cfg.Upstream.MaxConcurrent,
			MaxAttempts:    cfg.Upstream.MaxAttempts,
			AttemptTimeout: cfg.Upstream.AttemptTimeout,
			BackoffBase:    cfg.Upstream.BackoffBase,
		}, relayLogger)

		eng := engine.New(engine.Config{
			Model:         cfg.Upstream.Model,
			ImageModel:    cfg.Upstream.ImageModel,
			Temperature:   cfg.Upstream.Temperature,
			MaxTokens:     cfg.Upstream.MaxTokens,
			SystemPrompt:  cfg.Engine.SystemPrompt,
			HistoryLimit:  cfg.Engine.HistoryLimit,
			MaxImageBytes: int(cfg.Engine.MaxImageBytes),
			PageLength:    cfg.Engine.PageLength,
			PageCacheSize: cfg.Engine.PageCacheSize,
			AdminIDs:      cfg.Engine.AdminIDs,
			Queue: imagequeue.Config{
				Capacity:       cfg.Queue.Capacity,
				MaxAttempts:    cfg.Queue.MaxAttempts,
				AttemptTimeout: cfg.Queue.AttemptTimeout,
				BackoffBase:    cfg.Queue.BackoffBase,
				StaleAge:       cfg.Queue.StaleAge,
				ShutdownGrace:  cfg.Queue.ShutdownGrace,
			},
		}, limiter, gate, pool, store, relayLogger)

		// Queued image jobs count as in-flight work for the busy check.
		gate.RegisterProbe(eng.Queue().HasActiveJob)

		// Initialize health manager
		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("history_store", storeHealthChecker{store: store})
		hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		hm.RegisterChecker("upstream_config", upstreamHealthChecker{
			baseURL: cfg.Upstream.BaseURL,
			model:   cfg.Upstream.Model,
		})

		relay := &handlers.Relay{
			Engine:  eng,
			Limiter: limiter,
			VIPs:    store,
			History: store,
		}

		srv := server.New(cfg.Server, relay)
		handlers.SetAppIdentity(identity)

		metrics.SetServerStartTime(time.Now().Unix())

		// Pipeline gauge pump
		gaugeStop := make(chan struct{})
		go func() {
			ticker := time.NewTicker(10 * time.Second)
			defer ticker.Stop()
			start := time.Now()
			for {
				select {
				case <-gaugeStop:
					return
				case <-ticker.C:
					stats := eng.Stats()
					metrics.SetPipelineGauges(pool.QueueDepth(), stats.ImageQueue.Active, stats.ActiveRequests)
					metrics.SetServerUptime(int64(time.Since(start).Seconds()))
				}
			}
		}()

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})

		// Handler 2: Flush and close the history store
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Closing history store...")
			if err := store.Close(); err != nil {
				observability.ServerLogger.Warn("History store close returned error", zap.Error(err))
			}
			return nil
		})

		// Handler 3: Drain the engine (image queue grace period applies)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Draining relay engine...")
			close(gaugeStop)
			eng.Close()
			gate.Close()
			return nil
		})

		// Handler 4: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		// Register config reload handler (SIGHUP)
		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: attempting config reload")

			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); ok {
					observability.ServerLogger.Info("No config file found - using defaults and environment variables")
					return nil
				}
				observability.ServerLogger.Error("Failed to reload config file",
					zap.String("file", viper.ConfigFileUsed()),
					zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			reloaded, err := config.Load(viper.GetViper())
			if err != nil {
				observability.ServerLogger.Error("Reloaded config is invalid", zap.Error(err))
				return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
			}

			// Rate-limit rules take effect immediately; anything wired at
			// startup (store, upstream, queue sizing) needs a restart.
			for kind, rule := range buildRules(reloaded.RateLimit) {
				limiter.ReplaceRule(kind, rule)
			}

			observability.ServerLogger.Info("Configuration reloaded",
				zap.String("file", viper.ConfigFileUsed()))
			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		// Start server in background goroutine
		errChan := make(chan error, 1)
		go func() {
			observability.ServerLogger.Info("Starting HTTP server...",
				zap.String("host", cfg.Server.Host),
				zap.Int("port", cfg.Server.Port))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

// buildRules overlays configured rules on the shipped defaults.
func buildRules(cfg config.RateLimitConfig) map[ratelimit.ActionKind]ratelimit.Rule {
	rules := ratelimit.DefaultRules()
	for kind, rule := range cfg.Rules {
		rules[ratelimit.ActionKind(kind)] = rule
	}
	return rules
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
