package orchestrator

import "time"

// Config 编排器静态配置。
type Config struct {
	// DefaultStartupTimeout 描述符未指定时的启动超时（默认：30s）
	DefaultStartupTimeout time.Duration `json:"default_startup_timeout" yaml:"default_startup_timeout" mapstructure:"default_startup_timeout"`

	// DefaultShutdownTimeout 描述符未指定时的停止超时（默认：10s）
	DefaultShutdownTimeout time.Duration `json:"default_shutdown_timeout" yaml:"default_shutdown_timeout" mapstructure:"default_shutdown_timeout"`

	// HealthInterval 健康检查周期（默认：15s）
	HealthInterval time.Duration `json:"health_interval" yaml:"health_interval" mapstructure:"health_interval"`

	// HealthCheckTimeout 单次健康谓词评估超时（默认：3s）
	HealthCheckTimeout time.Duration `json:"health_check_timeout" yaml:"health_check_timeout" mapstructure:"health_check_timeout"`

	// FailureThreshold 连续失败阈值，关键服务达到后发出 Unhealthy 信号（默认：3）
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold" mapstructure:"failure_threshold"`

	// SignalBuffer Unhealthy 通道缓冲大小（默认：16）
	SignalBuffer int `json:"signal_buffer" yaml:"signal_buffer" mapstructure:"signal_buffer"`
}

func (c *Config) setDefaults() {
	if c.DefaultStartupTimeout <= 0 {
		c.DefaultStartupTimeout = 30 * time.Second
	}
	if c.DefaultShutdownTimeout <= 0 {
		c.DefaultShutdownTimeout = 10 * time.Second
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = 15 * time.Second
	}
	if c.HealthCheckTimeout <= 0 {
		c.HealthCheckTimeout = 3 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SignalBuffer <= 0 {
		c.SignalBuffer = 16
	}
}

func (c *Config) validate() error {
	if c.HealthInterval < time.Millisecond {
		return ErrInvalidConfig
	}
	return nil
}
