package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ==================== 全局日志 ====================

var (
	mu     sync.RWMutex
	global = zap.NewNop().Sugar()
)

// Init 初始化全局日志
// level: debug / info / warn / error
// format: json (生产) / console (开发)
func Init(level, format string) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if strings.EqualFold(format, "console") {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	sugar := l.Sugar()
	Set(sugar)
	return sugar, nil
}

// Set 替换全局日志（测试中可注入 observer）
func Set(l *zap.SugaredLogger) {
	mu.Lock()
	defer mu.Unlock()
	global = l
}

// L 获取全局日志，未初始化时为 Nop
func L() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Sync 刷新缓冲
func Sync() {
	_ = L().Sync()
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
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
