package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Logger      *zap.SugaredLogger
	AtomicLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
)

func init() {
	if level, ok := os.LookupEnv("LOG_LEVEL"); ok {
		if err := SetLogLevel(level); err != nil {
			fmt.Fprintf(os.Stderr, "failed to parse log level, fallback to INFO: %v\n", err)
		}
	}
	config := zap.Config{
		Level:       AtomicLevel,
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:     "M",
			LevelKey:       "L",
			TimeKey:        "T",
			NameKey:        "N",
			CallerKey:      zapcore.OmitKey,
			FunctionKey:    zapcore.OmitKey,
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		},
		// stdout carries command output
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := config.Build()
	if err != nil {
		panic(fmt.Errorf("failed to initialize logger: %w", err))
	}
	Logger = logger.Sugar().Named("benchto")
}

func SetLogLevel(level string) error {
	parsed, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return err
	}
	AtomicLevel.SetLevel(parsed.Level())
	return nil
}
