package eventstore

import (
	"github.com/ceyewan/nexus/clog"
	"github.com/ceyewan/nexus/metrics"
)

type options struct {
	logger      clog.Logger
	meter       metrics.Meter
	serializer  Serializer
	snapshotter func(streamID string) Aggregate
}

// Option 组件级可选依赖。
type Option func(*options)

// WithLogger 注入日志器，自动附加 eventstore 命名空间。
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("eventstore")
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

// WithSerializer 替换快照与 Redis 事件编码使用的序列化器，
// 默认为 MessagePack。
func WithSerializer(s Serializer) Option {
	return func(o *options) {
		if s != nil {
			o.serializer = s
		}
	}
}

// WithSnapshotter 注册聚合工厂，周期快照依赖它构造折叠状态：
// 追加越过 SnapshotFrequency 的倍数时，存储用该工厂重建聚合并存为快照。
// 未注册时不产生自动快照。
func WithSnapshotter(factory func(streamID string) Aggregate) Option {
	return func(o *options) {
		o.snapshotter = factory
	}
}

func applyOptions(opts ...Option) *options {
	o := &options{
		logger:     clog.Default().WithNamespace("eventstore"),
		meter:      metrics.Noop(),
		serializer: &MessagePackSerializer{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
