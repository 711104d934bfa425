package eventstore

import "time"

// Metadata 事件元数据，追加时由存储补全时间戳。
type Metadata struct {
	Timestamp     time.Time `json:"timestamp" msgpack:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty" msgpack:"correlation_id,omitempty"`
	CausationID   string    `json:"causation_id,omitempty" msgpack:"causation_id,omitempty"`
}

// Event 流中的一条不可变事件记录。
// 流内版本号从 1 开始严格连续。
type Event struct {
	ID       string   `json:"id" msgpack:"id"`
	StreamID string   `json:"stream_id" msgpack:"stream_id"`
	Version  int64    `json:"version" msgpack:"version"`
	Type     string   `json:"type" msgpack:"type"`
	Payload  []byte   `json:"payload" msgpack:"payload"`
	Metadata Metadata `json:"metadata" msgpack:"metadata"`
}

// EventData 追加输入：类型与负载由调用方提供，
// ID、流、版本与时间戳由存储分配。
type EventData struct {
	Type          string
	Payload       []byte
	CorrelationID string
	CausationID   string
}

// Snapshot 某一版本处的折叠状态，用于限制重放成本。
// State 为序列化后的聚合状态。
type Snapshot struct {
	StreamID  string    `json:"stream_id" msgpack:"stream_id"`
	Version   int64     `json:"version" msgpack:"version"`
	State     []byte    `json:"state" msgpack:"state"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`
}

// ReadResult 一次流读取的结果。
type ReadResult struct {
	Events        []Event
	IsEndOfStream bool
	// NextVersion 下一页的起始版本，便于分页续读
	NextVersion int64
}

// Aggregate 聚合接口：按序折叠事件。快照启用时聚合状态会经
// 序列化器编解码，实现应保证字段可被序列化器往返。
type Aggregate interface {
	Apply(event Event) error
}

// RebuildResult 聚合重建结果。
type RebuildResult struct {
	// Version 折叠到的版本，空流为 0
	Version int64
	// UsedSnapshot 是否从快照恢复起点
	UsedSnapshot bool
	// FromCache 是否直接命中重建缓存
	FromCache bool
}

// ProjectionHandler 投影折叠函数：就地修改投影状态。
// 返回错误时的传播行为由投影的 ContinueOnError 决定。
type ProjectionHandler func(state map[string]any, event Event) error

// ProjectionView 投影状态的只读快照。
type ProjectionView struct {
	Name                 string
	State                map[string]any
	LastProcessedEventID string
}

// QueryCriteria 跨流查询条件，零值字段不参与过滤。
type QueryCriteria struct {
	EventType     string
	StreamID      string
	CorrelationID string
	From          time.Time
	To            time.Time
	// Limit 结果上限，<= 0 时取默认值 1000
	Limit int
}

// Statistics 存储汇总统计。
type Statistics struct {
	Streams   int64 `json:"streams"`
	Events    int64 `json:"events"`
	Snapshots int64 `json:"snapshots"`
	// Conflicts 乐观并发冲突次数
	Conflicts int64 `json:"conflicts"`
	// LeaseTimeouts 租约获取超时次数
	LeaseTimeouts int64 `json:"lease_timeouts"`
}

// ============================================================
// Append / Rebuild / Projection 选项
// ============================================================

type appendOptions struct {
	expectedVersion int64
	hasExpected     bool
}

// AppendOption Append 操作选项。
type AppendOption func(*appendOptions)

// WithExpectedVersion 声明调用方认为的当前流版本（空流为 0）。
// 与实际版本不一致时 Append 返回 ConcurrencyConflictError 且不写入。
func WithExpectedVersion(version int64) AppendOption {
	return func(o *appendOptions) {
		o.expectedVersion = version
		o.hasExpected = true
	}
}

type rebuildOptions struct {
	skipSnapshot bool
	skipCache    bool
}

// RebuildOption Rebuild 操作选项。
type RebuildOption func(*rebuildOptions)

// WithoutSnapshot 强制从版本 0 全量重放，忽略已有快照。
func WithoutSnapshot() RebuildOption {
	return func(o *rebuildOptions) { o.skipSnapshot = true }
}

// WithoutCache 跳过重建缓存，总是执行实际折叠。
func WithoutCache() RebuildOption {
	return func(o *rebuildOptions) { o.skipCache = true }
}

type projectionOptions struct {
	continueOnError bool
}

// ProjectionOption 投影注册选项。
type ProjectionOption func(*projectionOptions)

// WithContinueOnError 控制处理函数出错时的行为：
// true（默认）记录日志后继续，false 将错误传播给 Append 调用方。
// 事件本身已提交，不会因投影失败回滚。
func WithContinueOnError(cont bool) ProjectionOption {
	return func(o *projectionOptions) { o.continueOnError = cont }
}
