package clog

import "context"

// Logger 日志接口，提供结构化日志记录能力。
//
// 五个级别：Debug、Info、Warn、Error、Fatal，Fatal 记录后进程退出。
// 每个级别均有带 Context 与不带 Context 的版本，
// 带 Context 的版本会按配置的提取规则附加 Context 中的字段。
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
	FatalContext(ctx context.Context, msg string, fields ...Field)

	// With 创建带预设字段的子 Logger，预设字段出现在之后的所有日志中。
	With(fields ...Field) Logger

	// WithNamespace 创建扩展命名空间的子 Logger。
	// 命名空间以 "." 连接，作为日志中的 namespace 字段：
	//
	//	logger.WithNamespace("mesh").WithNamespace("breaker")
	//	// namespace=mesh.breaker
	WithNamespace(parts ...string) Logger

	// SetLevel 运行时调整日志级别，作用于同一 handler 派生出的全部 Logger。
	SetLevel(level Level) error

	// Flush 强制同步缓冲区中的日志。
	Flush()
}
