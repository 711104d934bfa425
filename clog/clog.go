// Package clog 为 Nexus 提供基于 slog 的结构化日志组件。
//
// 特性：
//   - 抽象 Logger 接口，不向调用方暴露底层 slog 实现
//   - 层级命名空间，适配多组件架构（orchestrator / eventstore / mesh）
//   - Field 为 slog.Attr 的别名，零额外分配
//   - 支持运行时动态调整日志级别
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{
//	    Level:  "info",
//	    Format: "console",
//	    Output: "stdout",
//	})
//	logger.Info("service started", clog.String("service", "eventstore"))
//
// 派生子 Logger：
//
//	child := logger.WithNamespace("mesh").With(clog.String("target", "orders"))
package clog

import (
	"fmt"
	"sync"
)

// New 创建一个新的 Logger 实例。
// config 为 nil 时使用默认配置（info/console/stdout）。
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	options := applyOptions(opts...)
	return newLogger(config, options)
}

var (
	defaultOnce   sync.Once
	defaultLogger Logger
)

// Default 返回进程级默认 Logger（console 格式，info 级别）。
// 组件在未注入 Logger 时回退到它。
func Default() Logger {
	defaultOnce.Do(func() {
		logger, err := New(DefaultConfig())
		if err != nil {
			logger = Discard()
		}
		defaultLogger = logger
	})
	return defaultLogger
}
