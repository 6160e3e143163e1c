package main

import (
	"bytes"
	"flag"
	"log"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/edgecomet/telemetry/internal/common/logger"
	"github.com/edgecomet/telemetry/internal/definitions"
)

func main() {
	input := flag.String("i", "configs/metrics.yaml", "path to metrics.yaml")
	output := flag.String("o", "internal/generated/events.go", "path of the generated Go file")
	pkg := flag.String("package", "generated", "package name of the generated file")
	check := flag.Bool("check", false, "fail if the generated file is out of date instead of writing it")
	flag.Parse()

	dynamicLogger, err := logger.NewDefaultLogger()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer dynamicLogger.Sync()
	zapLogger := dynamicLogger.Logger

	defs, err := definitions.Load(*input)
	if err != nil {
		zapLogger.Fatal("Failed to load event definitions", zap.Error(err))
	}

	var buf bytes.Buffer
	if err := definitions.Generate(&buf, defs, definitions.GenerateOptions{
		Package: *pkg,
		Source:  filepath.ToSlash(*input),
	}); err != nil {
		zapLogger.Fatal("Failed to generate event table", zap.Error(err))
	}

	if *check {
		current, err := os.ReadFile(*output)
		if err != nil {
			zapLogger.Fatal("Failed to read generated file", zap.Error(err))
		}
		if !bytes.Equal(current, buf.Bytes()) {
			zapLogger.Fatal("Generated event table is out of date",
				zap.String("input", *input),
				zap.String("output", *output))
		}
		zapLogger.Info("Generated event table is up to date", zap.Int("events", len(defs)))
		return
	}

	if err := os.MkdirAll(filepath.Dir(*output), 0o755); err != nil {
		zapLogger.Fatal("Failed to create output directory", zap.Error(err))
	}
	if err := os.WriteFile(*output, buf.Bytes(), 0o644); err != nil {
		zapLogger.Fatal("Failed to write generated file", zap.Error(err))
	}

	zapLogger.Info("Event table generated",
		zap.String("output", *output),
		zap.Int("events", len(defs)))
}
