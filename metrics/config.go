package metrics

// Config 指标组件配置。
type Config struct {
	// Enabled 为 false 时 New 返回 noop Meter
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// ServiceName 服务名，写入 otel resource
	ServiceName string `json:"service_name" yaml:"service_name" mapstructure:"service_name"`

	// Version 服务版本
	Version string `json:"version" yaml:"version" mapstructure:"version"`

	// Port Prometheus HTTP 端口，<=0 时不启动内置服务
	Port int `json:"port" yaml:"port" mapstructure:"port"`

	// Path 指标暴露路径，默认 /metrics
	Path string `json:"path" yaml:"path" mapstructure:"path"`
}

// DefaultConfig 返回默认配置（启用，不开 HTTP 服务）。
func DefaultConfig(serviceName string) *Config {
	return &Config{
		Enabled:     true,
		ServiceName: serviceName,
		Path:        "/metrics",
	}
}
