package clog

// ContextField 定义从 Context 中提取字段的规则。
type ContextField struct {
	Key       any    // Context 中存储的键
	FieldName string // 日志中的字段名
}

// Option 函数式选项，用于配置 Logger 实例。
type Option func(*options)

// options 内部选项结构。
type options struct {
	namespaceParts []string
	contextFields  []ContextField
}

// WithNamespace 设置初始命名空间，支持多级。
//
//	clog.WithNamespace("nexus", "mesh") // namespace=nexus.mesh
func WithNamespace(parts ...string) Option {
	return func(o *options) {
		o.namespaceParts = append(o.namespaceParts, parts...)
	}
}

// WithContextField 添加 Context 字段提取规则。
// 带 Context 的日志方法会尝试从 Context 中取出 key 对应的值写入日志。
func WithContextField(key any, fieldName string) Option {
	return func(o *options) {
		o.contextFields = append(o.contextFields, ContextField{
			Key:       key,
			FieldName: fieldName,
		})
	}
}

// WithStandardContext 注册常用的上下文字段提取规则：
// trace_id、correlation_id、request_id。
func WithStandardContext() Option {
	return func(o *options) {
		o.contextFields = append(o.contextFields,
			ContextField{Key: "trace_id", FieldName: "trace_id"},
			ContextField{Key: "correlation_id", FieldName: "correlation_id"},
			ContextField{Key: "request_id", FieldName: "request_id"},
		)
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
