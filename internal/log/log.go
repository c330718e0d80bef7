// Package log builds the zap loggers handed to every harvester component.
package log

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects level, encoding and an optional rotating log file.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // console or json
	File   string
}

// DefaultEncoderConfig uses ISO8601 timestamps and upper-case levels.
func DefaultEncoderConfig() zapcore.EncoderConfig {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return encoderConfig
}

func encoder(format string) zapcore.Encoder {
	if format == "json" {
		return zapcore.NewJSONEncoder(DefaultEncoderConfig())
	}
	return zapcore.NewConsoleEncoder(DefaultEncoderConfig())
}

// DefaultLumberjackLogger rotates every 100MB and keeps compressed backups.
func DefaultLumberjackLogger(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:  path,
		MaxSize:   100,
		LocalTime: true,
		Compress:  true,
	}
}

// New returns a logger writing to stderr, teed into Options.File when set.
// The returned closer flushes the logger and closes the file.
func New(opts Options) (*zap.Logger, io.Closer, error) {
	var level zapcore.Level
	if opts.Level == "" {
		opts.Level = "info"
	}
	if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}

	enc := encoder(opts.Format)
	cores := []zapcore.Core{
		zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(os.Stderr)), level),
	}

	var file *lumberjack.Logger
	if opts.File != "" {
		file = DefaultLumberjackLogger(opts.File)
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(DefaultEncoderConfig()), zapcore.AddSync(file), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zapcore.DPanicLevel))
	return logger, closer{logger: logger, file: file}, nil
}

type closer struct {
	logger *zap.Logger
	file   *lumberjack.Logger
}

func (c closer) Close() error {
	// Sync on stderr fails on some platforms; it is not worth reporting.
	_ = c.logger.Sync()
	if c.file != nil {
		return c.file.Close()
	}
	return nil
}
