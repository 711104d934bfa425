// Package eventstore 提供按流（stream）追加的事件日志，支持乐观并发控制、
// 周期快照与同步投影（projection）。
//
// eventstore 是 Nexus 状态层的核心组件，它提供了：
// - 统一的 Store 接口，屏蔽内存和 Redis 两种后端差异
// - 按流追加：流内版本号从 1 开始严格连续，事件一经写入不可变更
// - 乐观并发：WithExpectedVersion 声明期望版本，不一致时拒绝写入
// - 按流租约串行化并发写入者（短超时 + 退避重试）
// - 周期快照限制聚合重放成本
// - 同步投影：每次追加后折叠到已注册的读模型
// - 跨流查询与流订阅
// - 与 L0 基础组件（日志、指标）的深度集成
//
// ## 基本使用
//
//	store, _ := eventstore.NewMemory(&eventstore.Config{
//	    SnapshotFrequency: 100,
//	}, eventstore.WithLogger(logger))
//	defer store.Close()
//
//	appended, err := store.Append(ctx, "orders-1", []eventstore.EventData{
//	    {Type: "OrderCreated", Payload: payload},
//	}, eventstore.WithExpectedVersion(0))
//
//	result, _ := store.Read(ctx, "orders-1", 1, 100)
//
// ## 分布式模式
//
//	redisConn, _ := connector.NewRedis(&cfg.Redis, connector.WithLogger(logger))
//	defer redisConn.Close()
//
//	store, _ := eventstore.NewRedis(&eventstore.Config{
//	    Prefix: "myapp:events:",
//	}, redisConn, eventstore.WithLogger(logger))
//
// ## 聚合重建
//
//	type OrderAggregate struct {
//	    Total int64 `msgpack:"total"`
//	}
//	func (a *OrderAggregate) Apply(e eventstore.Event) error { ... }
//
//	agg := &OrderAggregate{}
//	result, _ := store.Rebuild(ctx, "orders-1", agg)
//	// result.Version 为折叠到的版本，result.UsedSnapshot 表明是否命中快照
package eventstore

import (
	"context"

	"github.com/ceyewan/nexus/connector"
)

// Store 事件存储核心接口。
type Store interface {
	// Append 向流追加一批事件，返回写入后的事件（含分配的 ID 与版本）。
	// WithExpectedVersion 与当前版本不一致时返回 ConcurrencyConflictError，
	// 不产生任何写入。并发写入者由按流租约串行化，租约获取超过
	// AcquireTimeout 返回 ErrLeaseTimeout。
	Append(ctx context.Context, streamID string, events []EventData, opts ...AppendOption) ([]Event, error)

	// Read 读取 version >= fromVersion 的事件，最多 maxCount 条。
	// fromVersion <= 1 时从流头开始。
	Read(ctx context.Context, streamID string, fromVersion int64, maxCount int) (*ReadResult, error)

	// Rebuild 重建聚合：优先从最新快照恢复（WithoutSnapshot 可禁用），
	// 再折叠快照之后的事件。重建结果按 流+版本 缓存，追加时失效。
	Rebuild(ctx context.Context, streamID string, agg Aggregate, opts ...RebuildOption) (*RebuildResult, error)

	// CreateProjection 注册命名投影。注册后每次成功追加都会同步折叠
	// 类型匹配的事件。重名返回 ErrDuplicateProjection。
	CreateProjection(name string, handlers map[string]ProjectionHandler, opts ...ProjectionOption) error

	// Projection 返回投影当前状态的只读快照。
	Projection(name string) (*ProjectionView, error)

	// Query 跨流查询：按事件类型、流、时间范围、关联 ID 过滤，
	// 按时间戳排序，受 criteria.Limit 限制（默认 1000）。
	Query(ctx context.Context, criteria QueryCriteria) ([]Event, error)

	// Subscribe 创建缓冲事件订阅，返回只读通道与取消函数。
	// 每次成功追加的事件会广播给所有订阅者；缓冲满时丢弃并记录日志。
	Subscribe(buffer int) (<-chan Event, func())

	// Statistics 返回存储汇总统计。
	Statistics(ctx context.Context) (Statistics, error)

	// Close 释放内部资源。不关闭注入的连接器。
	Close() error
}

// NewMemory 创建内存事件存储（独立模式）。
// 适用于单进程部署与测试；数据不持久化。
func NewMemory(cfg *Config, opts ...Option) (Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := applyOptions(opts...)
	return newStore(cfg, newMemoryBackend(), newMemoryLease(), opt)
}

// NewRedis 创建 Redis 事件存储（分布式模式）。
// 流数据存于 Redis list，租约通过 SET NX PX 实现，可被多进程共享。
//
// 使用示例:
//
//	redisConn, _ := connector.NewRedis(redisConfig)
//	store, _ := eventstore.NewRedis(&eventstore.Config{
//	    Prefix: "myapp:events:",
//	}, redisConn, eventstore.WithLogger(logger))
func NewRedis(cfg *Config, conn connector.RedisConnector, opts ...Option) (Store, error) {
	if conn == nil {
		return nil, ErrConnectorNil
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := applyOptions(opts...)
	client := conn.GetClient()
	backend := newRedisBackend(client, cfg, opt.serializer)
	lease := newRedisLease(client, cfg, opt.logger.WithNamespace("lease"))
	return newStore(cfg, backend, lease, opt)
}
