// Package logging 提供了统一的结构化日志（slog）封装，支持 OpenTelemetry 追踪上下文注入、
// 文件切割与运行时调整日志级别。
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// defaultLogger 是全局默认的Logger实例，采用单例模式。
	defaultLogger *Logger
	// once 用于确保InitLogger函数只被执行一次。
	once sync.Once
	mu   sync.RWMutex

	// level 所有由本包创建的 Logger 共享的级别，SetLevel 在运行时修改它。
	level = new(slog.LevelVar)
)

// Config 定义日志配置
type Config struct {
	Service    string `mapstructure:"service"     toml:"service"`
	Module     string `mapstructure:"module"      toml:"module"`
	Level      string `mapstructure:"level"       toml:"level"       validate:"omitempty,oneof=debug info warn error"`
	Format     string `mapstructure:"format"      toml:"format"      validate:"omitempty,oneof=json text"`
	File       string `mapstructure:"file"        toml:"file"`        // 日志文件路径，为空则只输出到 stderr
	Stderr     bool   `mapstructure:"stderr"      toml:"stderr"`      // 配置了文件时是否同时输出到 stderr
	MaxSize    int    `mapstructure:"max_size"    toml:"max_size"`    // 每个日志文件最大尺寸 (MB)
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups"` // 保留旧日志文件的最大个数
	MaxAge     int    `mapstructure:"max_age"     toml:"max_age"`     // 保留旧日志文件的最大天数
	Compress   bool   `mapstructure:"compress"    toml:"compress"`    // 是否压缩旧日志
}

// Logger 封装了原生的 `*slog.Logger`，并添加了服务名和模块名，方便在日志中区分来源。
type Logger struct {
	*slog.Logger
	Service string
	Module  string
}

// ParseLevel 将配置字符串转换为 slog.Level，未知取值按 info 处理。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel 在运行时调整全部 Logger 的输出级别。
func SetLevel(s string) {
	level.Set(ParseLevel(s))
}

// Level 返回当前输出级别。
func Level() slog.Level {
	return level.Level()
}

// NewFromConfig 创建一个新的Logger实例。
// 支持通过 Config 结构体配置日志切割。
func NewFromConfig(cfg Config) *Logger {
	level.Set(ParseLevel(cfg.Level))

	var writers []io.Writer
	if cfg.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize, // MB
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge, // days
			Compress:   cfg.Compress,
		})
	}
	if cfg.File == "" || cfg.Stderr {
		writers = append(writers, os.Stderr)
	}

	handlers := make([]slog.Handler, 0, len(writers))
	for _, w := range writers {
		handlers = append(handlers, newHandler(w, cfg.Format))
	}

	return newLogger(newMultiHandler(handlers...), cfg.Service, cfg.Module)
}

// NewWithWriter 创建写入指定 io.Writer 的 Logger，主要用于测试与命令行输出。
func NewWithWriter(w io.Writer, service, module string) *Logger {
	return newLogger(newHandler(w, "json"), service, module)
}

func newHandler(w io.Writer, format string) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "timestamp"
			}
			return a
		},
	}
	if format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func newLogger(h slog.Handler, service, module string) *Logger {
	logger := slog.New(&TraceHandler{Handler: h}).With(
		slog.String("service", service),
		slog.String("module", module),
	)
	return &Logger{Logger: logger, Service: service, Module: module}
}

// WithModule 派生一个模块名不同的 Logger。
func (l *Logger) WithModule(module string) *Logger {
	return &Logger{
		Logger:  l.Logger.With(slog.String("component", module)),
		Service: l.Service,
		Module:  module,
	}
}

// NewLogger 是创建一个带有简单参数的 logger 的兼容别名。
func NewLogger(service, module string, level ...string) *Logger {
	lvl := "info"
	if len(level) > 0 {
		lvl = level[0]
	}
	return NewFromConfig(Config{
		Service: service,
		Module:  module,
		Level:   lvl,
	})
}

// InitLogger 初始化全局默认日志记录器
func InitLogger(service, module string, level ...string) {
	once.Do(func() {
		SetDefault(NewLogger(service, module, level...))
	})
}

// SetDefault 替换全局默认日志记录器，并同步到 slog.Default。
func SetDefault(l *Logger) {
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
	slog.SetDefault(l.Logger)
}

// Default 返回默认日志记录器实例
func Default() *Logger {
	mu.RLock()
	l := defaultLogger
	mu.RUnlock()
	if l != nil {
		return l
	}
	InitLogger("lpsolver", "default", "info")
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Info 记录 Info 级别日志
func Info(ctx context.Context, msg string, args ...any) {
	Default().InfoContext(ctx, msg, args...)
}

// Warn 记录 Warn 级别日志
func Warn(ctx context.Context, msg string, args ...any) {
	Default().WarnContext(ctx, msg, args...)
}

// Error 记录 Error 级别日志
func Error(ctx context.Context, msg string, args ...any) {
	Default().ErrorContext(ctx, msg, args...)
}

// Debug 记录 Debug 级别日志
func Debug(ctx context.Context, msg string, args ...any) {
	Default().DebugContext(ctx, msg, args...)
}

// LogDuration 记录操作耗时
func LogDuration(ctx context.Context, operation string, args ...any) func() {
	start := time.Now()
	return func() {
		logArgs := append(args, "duration", time.Since(start))
		Info(ctx, fmt.Sprintf("%s finished", operation), logArgs...)
	}
}
