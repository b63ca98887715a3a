package logger

import (
	"strings"

	"student_portal_backend/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New initializes a new Zap logger based on the application configuration.
// GIN_MODE picks the production or development preset, LOG_LEVEL and LOG_FORMAT override it.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.GinMode == "release" {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else { // "debug" or "test"
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig.Level = zap.NewAtomicLevelAt(ParseLevel(cfg.LogLevel))

	if strings.ToLower(cfg.LogFormat) == "json" {
		zapConfig.Encoding = "json"
		zapConfig.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	} else {
		zapConfig.Encoding = "console"
	}

	logger, err := zapConfig.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return logger, nil
}

// ParseLevel maps a LOG_LEVEL string to a zap level, defaulting to info.
func ParseLevel(raw string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "dpanic":
		return zapcore.DPanicLevel
	case "panic":
		return zapcore.PanicLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewDefaultLogger is for tests and tools that run before config is loaded.
func NewDefaultLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}
