package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// ZapOptions configures the zap-backed logging sink used by the daemon.
// The rotated file applies to the supervisor's own log only; log files of
// managed processes are plain append-only files owned by pkg/process.
type ZapOptions struct {
	Level      string // debug, info, warn, error
	FilePath   string // empty disables file output
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func zapLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewZapLogFuncs builds LogFuncs backed by a zap sugared logger writing to
// stderr and, if configured, a size-rotated file.
func NewZapLogFuncs(options ZapOptions) LogFuncs {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(encoderConfig)

	level := zapLevel(options.Level)

	sinks := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), level),
	}
	if options.FilePath != "" {
		rotated := &lumberjack.Logger{
			Filename:   options.FilePath,
			MaxSize:    options.MaxSizeMB,
			MaxBackups: options.MaxBackups,
			MaxAge:     options.MaxAgeDays,
		}
		sinks = append(sinks, zapcore.NewCore(encoder, zapcore.AddSync(rotated), level))
	}

	sugar := zap.New(zapcore.NewTee(sinks...)).Sugar()

	return LogFuncs{
		Debugf: sugar.Debugf,
		Infof:  sugar.Infof,
		Warnf:  sugar.Warnf,
		Errorf: sugar.Errorf,
	}
}
