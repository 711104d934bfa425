package orchestrator

import (
	"github.com/ceyewan/nexus/clog"
	"github.com/ceyewan/nexus/metrics"
)

// Option 组件初始化选项函数。
type Option func(*options)

// options 内部选项结构。
type options struct {
	logger clog.Logger
	meter  metrics.Meter
}

// WithLogger 注入日志记录器，组件自动派生 namespace=orchestrator。
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("orchestrator")
		}
	}
}

// WithMeter 注入指标收集器。
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = clog.Default().WithNamespace("orchestrator")
	}
	if o.meter == nil {
		o.meter = metrics.Noop()
	}
	return o
}
