// internal/app/system/auditlog/file.go

package auditlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileConfig describes the rotated JSON audit file.
type FileConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewFileLogger returns a zap logger that writes JSON lines to a rotated
// file, and a close func for shutdown. An empty Path returns nil.
func NewFileLogger(cfg FileConfig) (*zap.Logger, func() error) {
	if cfg.Path == "" {
		return nil, func() error { return nil }
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 100
	}
	lj := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(lj), zapcore.InfoLevel)

	return zap.New(core), lj.Close
}

// Tee returns a logger writing to both base and file. A nil file returns base.
func Tee(base, file *zap.Logger) *zap.Logger {
	if file == nil {
		return base
	}
	return zap.New(zapcore.NewTee(base.Core(), file.Core()))
}
