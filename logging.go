package main

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/openclaw/qrgen/config"
)

// newLogger builds the process logger from cfg. When a log file is
// configured, output is also written there with size-based rotation.
func newLogger(cfg *config.Config, stdout io.Writer) (*slog.Logger, io.Closer) {
	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	out := stdout
	var closer io.Closer = nopCloser{}
	if cfg.LogFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = io.MultiWriter(stdout, rotating)
		closer = rotating
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: logLevel})), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// cliLogger is used by one-shot commands; diagnostics go to stderr so that
// stdout stays clean for output.
func cliLogger(cfg *config.Config) (*slog.Logger, io.Closer) {
	return newLogger(cfg, os.Stderr)
}
