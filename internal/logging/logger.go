// Package logging configures the worker's zerolog output: a colored console
// writer, a rotated main log file, and a rotated file carrying only
// error-and-above records, all via lumberjack.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls log level, destination directory, and rotation policy.
type Config struct {
	Level      string
	LogDir     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		LogDir:     "logs",
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Compress:   true,
	}
}

// levelFilteredWriter passes a record through only when its level meets
// minLevel. zerolog calls WriteLevel on writers that implement
// zerolog.LevelWriter instead of the plain io.Writer Write.
type levelFilteredWriter struct {
	w        io.Writer
	minLevel zerolog.Level
}

func (f *levelFilteredWriter) Write(p []byte) (int, error) {
	return f.w.Write(p)
}

func (f *levelFilteredWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < f.minLevel {
		return len(p), nil
	}
	return f.w.Write(p)
}

// Init builds the global zerolog.Logger (console + rotated main file +
// rotated error-only file) and installs it as log.Logger.
func Init(cfg Config) error {
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	mainLog := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "scanworker.log"),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	errorLog := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "scanworker_error.log"),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	console := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}

	multi := zerolog.MultiLevelWriter(
		console,
		mainLog,
		&levelFilteredWriter{w: errorLog, minLevel: zerolog.ErrorLevel},
	)

	logger := zerolog.New(multi).With().Timestamp().Caller().Logger()
	log.Logger = logger

	logger.Info().Str("level", cfg.Level).Str("logDir", cfg.LogDir).Msg("logging initialized")
	return nil
}
