// Package logger 提供 zap 结构化日志与 OpenTelemetry 追踪初始化。
package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLoggerConfig 日志配置
type ZapLoggerConfig struct {
	IsDevelopment     bool
	Encoding          string // json 或 console
	Level             string // debug/info/warn/error
	DisableCaller     bool
	DisableStacktrace bool
	OutputPaths       []string
}

// NewZapLogger 按配置创建 logger；配置非法时退回 zap.NewExample
func NewZapLogger(cfg *ZapLoggerConfig) *zap.Logger {
	if cfg == nil {
		cfg = &ZapLoggerConfig{Encoding: "console", Level: "info"}
	}

	encoding := cfg.Encoding
	if encoding != "json" {
		encoding = "console"
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	if cfg.IsDevelopment {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
	}
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if encoding == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zc := zap.Config{
		Level:             zap.NewAtomicLevelAt(ParseLevel(cfg.Level)),
		Development:       cfg.IsDevelopment,
		DisableCaller:     cfg.DisableCaller,
		DisableStacktrace: cfg.DisableStacktrace,
		Encoding:          encoding,
		EncoderConfig:     encoderCfg,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
	}

	l, err := zc.Build()
	if err != nil {
		l = zap.NewExample()
		l.Warn("logger config invalid, falling back", zap.Error(err))
	}
	return l
}

// ParseLevel 解析日志级别，未知值按 info 处理
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
