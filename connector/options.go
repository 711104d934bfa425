package connector

import "github.com/ceyewan/nexus/clog"

type options struct {
	logger clog.Logger
}

func (o *options) applyDefaults() {
	if o.logger == nil {
		o.logger = clog.Default()
	}
}

// Option 连接器初始化选项函数。
type Option func(*options)

// WithLogger 注入日志记录器。
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("connector")
		}
	}
}
