package utils

// logger.go - настройка структурированного логирования
//
// Назначение:
// Инициализация zap-логгера из конфигурации приложения.
//
// Уровни: debug, info, warn, error.
// Форматы: json (продакшн) и console (разработка).

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger создаёт настроенный zap.Logger.
//
// Параметры:
//   - level: debug | info | warn | error
//   - format: json | console
//
// Возвращает ошибку при неизвестном уровне или формате.
func NewLogger(level, format string) (*zap.Logger, error) {
	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "info", "":
		lvl = zapcore.InfoLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	var cfg zap.Config
	switch format {
	case "json", "":
		cfg = zap.NewProductionConfig()
	case "console":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// NewNopLogger возвращает логгер-заглушку для тестов.
func NewNopLogger() *zap.Logger {
	return zap.NewNop()
}
