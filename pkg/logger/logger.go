package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	App   string
	Level string // debug, info, warn, error
	File  string // пусто - только консоль
}

// New собирает логгер: цветная консоль + JSON-файл с теми же записями.
func New(opts Options) (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.TimeKey = "ts"
	consoleCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stdout), level),
	}

	if opts.File != "" {
		file, err := openLogFile(opts.File)
		if err != nil {
			return nil, err
		}

		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.TimeKey = "ts"
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder

		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(file), level))
	}

	log := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	if opts.App != "" {
		log = log.With(zap.String("app", opts.App))
	}
	return log, nil
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}
