package eventstore

// 指标名称常量
const (
	// MetricAppendsTotal 追加操作总数
	MetricAppendsTotal = "eventstore_appends_total"

	// MetricAppendConflicts 乐观并发冲突数
	MetricAppendConflicts = "eventstore_append_conflicts_total"

	// MetricLeaseTimeouts 租约获取超时数
	MetricLeaseTimeouts = "eventstore_lease_timeouts_total"

	// MetricEventsTotal 写入事件总数
	MetricEventsTotal = "eventstore_events_total"

	// MetricSnapshotsTotal 快照写入总数
	MetricSnapshotsTotal = "eventstore_snapshots_total"

	// MetricAppendDuration 追加耗时分布（秒）
	MetricAppendDuration = "eventstore_append_duration_seconds"
)

// 指标标签
const (
	LabelStream = "stream"
)
