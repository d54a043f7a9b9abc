package observability_test

import (
	"testing"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chatrelay/chatrelay/internal/observability"
)

// TestGofulmenIntegration verifies the logging profiles are wired correctly
func TestGofulmenIntegration(t *testing.T) {
	t.Run("CLI logger creation", func(t *testing.T) {
		observability.InitCLILogger("test-service", false)

		if observability.CLILogger == nil {
			t.Fatal("CLI logger should not be nil after initialization")
		}

		// Verify we can log messages
		observability.CLILogger.Info("Test CLI log message",
			zap.String("test", "value"))
	})

	t.Run("Structured logger creation", func(t *testing.T) {
		observability.InitServerLogger("test-service", "info")

		if observability.ServerLogger == nil {
			t.Fatal("Server logger should not be nil after initialization")
		}

		// Verify we can log messages with structured data
		observability.ServerLogger.Info("Test structured log message",
			zap.String("component", "test"),
			zap.Int("request_id", 123))
	})

	t.Run("Logger with verbose mode", func(t *testing.T) {
		logger, err := logging.NewCLI("verbose-test")
		if err != nil {
			t.Fatalf("Failed to create verbose logger: %v", err)
		}

		logger.SetLevel(logging.DEBUG)

		logger.Debug("Debug message",
			zap.String("mode", "verbose"))
	})

	t.Run("Structured profile with correlation middleware", func(t *testing.T) {
		config := &logging.LoggerConfig{
			Profile:      logging.ProfileStructured,
			DefaultLevel: "INFO",
			Service:      "correlation-test",
			Environment:  "test",
			Middleware: []logging.MiddlewareConfig{
				{
					Name:    "correlation",
					Enabled: true,
					Order:   100,
					Config:  make(map[string]any),
				},
			},
			Sinks: []logging.SinkConfig{
				{
					Type:   "console",
					Format: "json",
					Console: &logging.ConsoleSinkConfig{
						Stream:   "stderr",
						Colorize: false,
					},
				},
			},
		}

		logger, err := logging.New(config)
		if err != nil {
			t.Fatalf("Failed to create structured logger: %v", err)
		}

		// Log a message - should include correlation ID automatically
		logger.Info("Test message with correlation",
			zap.String("feature", "correlation"))
	})
}

// TestComponentLogger verifies the plain zap logger used by relay internals
func TestComponentLogger(t *testing.T) {
	t.Run("Default level is info", func(t *testing.T) {
		logger := observability.ComponentLogger("info")
		if logger == nil {
			t.Fatal("component logger should not be nil")
		}
		if logger.Core().Enabled(zapcore.DebugLevel) {
			t.Error("debug should be disabled at info level")
		}
		if !logger.Core().Enabled(zapcore.InfoLevel) {
			t.Error("info should be enabled at info level")
		}
	})

	t.Run("Debug level enables debug", func(t *testing.T) {
		logger := observability.ComponentLogger("debug")
		if !logger.Core().Enabled(zapcore.DebugLevel) {
			t.Error("debug should be enabled at debug level")
		}
	})

	t.Run("Unknown level falls back to info", func(t *testing.T) {
		logger := observability.ComponentLogger("chatty")
		if logger.Core().Enabled(zapcore.DebugLevel) {
			t.Error("unknown level should fall back to info")
		}
	})
}
