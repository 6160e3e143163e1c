package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/edgecomet/telemetry/internal/common/config"
	"github.com/edgecomet/telemetry/internal/common/logger"
	"github.com/edgecomet/telemetry/internal/definitions"
	"github.com/edgecomet/telemetry/internal/generated"
	"github.com/edgecomet/telemetry/internal/recorder"
	"github.com/edgecomet/telemetry/internal/registry"
	"github.com/edgecomet/telemetry/pkg/glean"
)

func main() {
	configPath := flag.String("c", "configs/example/eventrecd.yaml", "path to eventrecd configuration file")
	metricsPath := flag.String("m", "", "optional metrics.yaml to compare against the compiled event table")
	flag.Parse()

	initialLogger, err := logger.NewDefaultLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	initialLogger.Info("Starting Event Recorder",
		zap.String("config_path", *configPath))

	recorderConfig, err := config.LoadRecorderConfig(*configPath, initialLogger.Logger)
	if err != nil {
		initialLogger.Fatal("Failed to load recorder config", zap.Error(err))
	}

	if *metricsPath != "" {
		checkDefinitions(*metricsPath, initialLogger.Logger)
	}

	// INFO during startup if the configured level is higher
	dynamicLogger, err := logger.NewLoggerWithStartupOverride(recorderConfig.Logging)
	if err != nil {
		initialLogger.Fatal("Failed to create configured logger", zap.Error(err))
	}
	defer dynamicLogger.Sync()

	zapLogger := dynamicLogger.With(zap.String("recorder_id", recorderConfig.RecorderID))

	rec, err := recorder.New(recorderConfig, recorder.Table{
		Definitions: generated.Definitions,
		Fingerprint: generated.Fingerprint,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create recorder", zap.Error(err))
	}
	glean.Initialize(rec.Registry())

	if err := rec.Start(); err != nil {
		zapLogger.Fatal("Failed to start recorder", zap.Error(err))
	}

	zapLogger.Info("Event recorder started",
		zap.String("session_id", rec.SessionID()),
		zap.String("api_addr", rec.APIAddr()),
		zap.String("metrics_addr", rec.MetricsAddr()))

	dynamicLogger.SwitchToConfiguredLevel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-rec.APIErrors():
		// nil channel when the API is disabled, so this only fires on a crash
		zapLogger.Error("HTTP API server stopped", zap.Error(err))
	}

	dynamicLogger.EnsureInfoLevelForShutdown()
	zapLogger.Info("Shutting down Event Recorder...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := rec.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown recorder gracefully", zap.Error(err))
	}

	zapLogger.Info("Event recorder stopped")
}

// checkDefinitions warns when metrics.yaml changed without regenerating the table
func checkDefinitions(path string, logger *zap.Logger) {
	defs, err := definitions.Load(path)
	if err != nil {
		logger.Fatal("Failed to load event definitions", zap.String("path", path), zap.Error(err))
	}

	if fp := registry.Fingerprint(defs); fp != generated.Fingerprint {
		logger.Warn("Event definitions differ from the compiled table, run eventgen",
			zap.String("path", path),
			zap.Uint64("definitions_fingerprint", fp),
			zap.Uint64("compiled_fingerprint", generated.Fingerprint))
		return
	}
	logger.Info("Event definitions match the compiled table", zap.Int("events", len(defs)))
}
