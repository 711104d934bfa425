package eventstore

import "time"

// Config 事件存储静态配置。
type Config struct {
	// Prefix Redis 键前缀，如 "myapp:events:"（仅 Redis 后端使用）
	Prefix string `json:"prefix" yaml:"prefix" mapstructure:"prefix"`

	// SnapshotFrequency 每追加多少条事件触发一次快照；0 表示关闭快照
	SnapshotFrequency int64 `json:"snapshot_frequency" yaml:"snapshot_frequency" mapstructure:"snapshot_frequency"`

	// LeaseTTL 按流租约的持有时长，防止崩溃写入者永久占锁（默认：5s）
	LeaseTTL time.Duration `json:"lease_ttl" yaml:"lease_ttl" mapstructure:"lease_ttl"`

	// AcquireTimeout 租约获取的总预算，超过返回 ErrLeaseTimeout（默认：3s）
	AcquireTimeout time.Duration `json:"acquire_timeout" yaml:"acquire_timeout" mapstructure:"acquire_timeout"`

	// RetryInterval 租约竞争失败后的重试间隔（默认：20ms）
	RetryInterval time.Duration `json:"retry_interval" yaml:"retry_interval" mapstructure:"retry_interval"`

	// QueryLimit 跨流查询的默认结果上限（默认：1000）
	QueryLimit int `json:"query_limit" yaml:"query_limit" mapstructure:"query_limit"`

	// CacheCapacity 聚合重建缓存的最大条目数；<= 0 表示关闭缓存
	CacheCapacity int `json:"cache_capacity" yaml:"cache_capacity" mapstructure:"cache_capacity"`
}

func (c *Config) setDefaults() {
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = 5 * time.Second
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 3 * time.Second
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = 20 * time.Millisecond
	}
	if c.QueryLimit <= 0 {
		c.QueryLimit = 1000
	}
}

func (c *Config) validate() error {
	if c.SnapshotFrequency < 0 {
		return ErrInvalidConfig
	}
	if c.RetryInterval > c.AcquireTimeout {
		return ErrInvalidConfig
	}
	return nil
}
