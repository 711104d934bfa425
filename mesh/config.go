package mesh

import "time"

// Breaker 实现选择
const (
	BreakerDriverInternal  = "internal"
	BreakerDriverGobreaker = "gobreaker"
)

// 限流模式
const (
	LimiterSlidingWindow = "sliding_window"
	LimiterTokenBucket   = "token_bucket"
)

// 负载均衡策略
const (
	BalancerRoundRobin = "round_robin"
	BalancerWeighted   = "weighted"
	BalancerRandom     = "random"
)

// Config 网格静态配置。
type Config struct {
	// BreakerDriver 熔断器实现：internal（默认）或 gobreaker
	BreakerDriver string `json:"breaker_driver" yaml:"breaker_driver" mapstructure:"breaker_driver"`

	// LimiterMode 限流模式：sliding_window（默认）或 token_bucket
	LimiterMode string `json:"limiter_mode" yaml:"limiter_mode" mapstructure:"limiter_mode"`

	// Balancer 负载均衡策略：round_robin（默认）/ weighted / random
	Balancer string `json:"balancer" yaml:"balancer" mapstructure:"balancer"`

	// DefaultPolicy 未显式应用流量策略时的缺省值
	DefaultPolicy TrafficPolicy `json:"default_policy" yaml:"default_policy" mapstructure:"default_policy"`

	// CleanupInterval 限流器空闲键的清理周期（默认：1m）
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval" mapstructure:"cleanup_interval"`

	// IdleTimeout 限流键多久未使用后回收（默认：5m）
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout" mapstructure:"idle_timeout"`
}

func (c *Config) setDefaults() {
	if c.BreakerDriver == "" {
		c.BreakerDriver = BreakerDriverInternal
	}
	if c.LimiterMode == "" {
		c.LimiterMode = LimiterSlidingWindow
	}
	if c.Balancer == "" {
		c.Balancer = BalancerRoundRobin
	}
	if c.DefaultPolicy.Timeout <= 0 {
		c.DefaultPolicy.Timeout = 5 * time.Second
	}
	if c.DefaultPolicy.FailureThreshold <= 0 {
		c.DefaultPolicy.FailureThreshold = 5
	}
	if c.DefaultPolicy.ResetTimeout <= 0 {
		c.DefaultPolicy.ResetTimeout = 30 * time.Second
	}
	if c.DefaultPolicy.Window <= 0 {
		c.DefaultPolicy.Window = time.Second
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
}

func (c *Config) validate() error {
	switch c.BreakerDriver {
	case BreakerDriverInternal, BreakerDriverGobreaker:
	default:
		return ErrInvalidConfig
	}
	switch c.LimiterMode {
	case LimiterSlidingWindow, LimiterTokenBucket:
	default:
		return ErrInvalidConfig
	}
	switch c.Balancer {
	case BalancerRoundRobin, BalancerWeighted, BalancerRandom:
	default:
		return ErrInvalidConfig
	}
	return nil
}
