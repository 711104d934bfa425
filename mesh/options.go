package mesh

import (
	"github.com/ceyewan/nexus/clog"
	"github.com/ceyewan/nexus/metrics"
)

type options struct {
	logger    clog.Logger
	meter     metrics.Meter
	transport Transport
}

// Option 组件级可选依赖。
type Option func(*options)

// WithLogger 注入日志器，自动附加 mesh 命名空间。
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("mesh")
		}
	}
}

// WithMeter 注入指标 Meter。
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithTransport 替换执行阶段的传输实现，默认为进程内传输。
func WithTransport(t Transport) Option {
	return func(o *options) {
		if t != nil {
			o.transport = t
		}
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{
		logger: clog.Default().WithNamespace("mesh"),
		meter:  metrics.Noop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
