package metrics

import "context"

// Counter 计数器接口，记录只增不减的累计值。
//
//	counter, _ := meter.Counter("eventstore_appends_total", "追加操作总数")
//	counter.Inc(ctx, metrics.L("stream", "orders-1"))
type Counter interface {
	// Inc 计数器加 1
	Inc(ctx context.Context, labels ...Label)
	// Add 计数器增加给定值，val 应为非负数
	Add(ctx context.Context, val float64, labels ...Label)
}

// Gauge 仪表盘接口，记录可增可减的瞬时值，
// 例如运行中的服务数、打开状态的熔断器数。
type Gauge interface {
	// Set 设置为给定值，覆盖之前的值
	Set(ctx context.Context, val float64, labels ...Label)
	// Inc 加 1
	Inc(ctx context.Context, labels ...Label)
	// Dec 减 1
	Dec(ctx context.Context, labels ...Label)
}

// Histogram 直方图接口，记录值的分布，例如调用耗时。
type Histogram interface {
	// Record 记录一个观测值
	Record(ctx context.Context, val float64, labels ...Label)
}

// Meter 指标创建工厂接口，是所有指标类型的创建入口。
// 由 Meter 创建的指标并发安全。
type Meter interface {
	Counter(name string, desc string, opts ...MetricOption) (Counter, error)
	Gauge(name string, desc string, opts ...MetricOption) (Gauge, error)
	Histogram(name string, desc string, opts ...MetricOption) (Histogram, error)

	// Shutdown 关闭 Meter 并刷新所有指标，通常在进程退出时调用。
	Shutdown(ctx context.Context) error
}

// MetricOption 指标创建选项。
type MetricOption func(*MetricOptions)

// MetricOptions 指标选项集合。
type MetricOptions struct {
	// Unit 指标单位，建议使用 UCUM 单位代码，如 "s"、"bytes"
	Unit string
}

// WithUnit 设置指标单位。
func WithUnit(unit string) MetricOption {
	return func(o *MetricOptions) {
		o.Unit = unit
	}
}
