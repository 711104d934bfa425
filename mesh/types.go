package mesh

import "time"

// InstanceStatus 实例健康状态。
type InstanceStatus string

const (
	StatusHealthy   InstanceStatus = "healthy"
	StatusUnhealthy InstanceStatus = "unhealthy"
)

// Instance 目的地服务的一个实例。
type Instance struct {
	ID     string         `json:"id"`
	URL    string         `json:"url"`
	Weight int            `json:"weight"`
	Status InstanceStatus `json:"status"`
}

// SecurityPolicy 目的地安全策略。
// AllowedCallers 非空时为白名单；DeniedCallers 总是生效；
// AllowedMethods 非空时限定允许的方法。
type SecurityPolicy struct {
	AllowedCallers []string `json:"allowed_callers" mapstructure:"allowed_callers"`
	DeniedCallers  []string `json:"denied_callers" mapstructure:"denied_callers"`
	AllowedMethods []string `json:"allowed_methods" mapstructure:"allowed_methods"`
}

// TrafficPolicy 目的地流量策略。
type TrafficPolicy struct {
	// MaxRequests 窗口内允许的最大请求数，<= 0 表示不限流
	MaxRequests int `json:"max_requests" mapstructure:"max_requests"`

	// Window 限流窗口长度
	Window time.Duration `json:"window" mapstructure:"window"`

	// Timeout 单次调用超时
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// FailureThreshold 连续失败多少次后熔断器打开
	FailureThreshold int `json:"failure_threshold" mapstructure:"failure_threshold"`

	// ResetTimeout 熔断器打开后多久允许 half-open 试探
	ResetTimeout time.Duration `json:"reset_timeout" mapstructure:"reset_timeout"`
}

// CallRequest 一次服务间调用。
type CallRequest struct {
	Caller  string `json:"caller" msgpack:"caller"`
	Target  string `json:"target" msgpack:"target"`
	Method  string `json:"method" msgpack:"method"`
	Path    string `json:"path" msgpack:"path"`
	Payload []byte `json:"payload" msgpack:"payload"`
}

// CallResponse 调用结果。
type CallResponse struct {
	Status  int    `json:"status" msgpack:"status"`
	Payload []byte `json:"payload" msgpack:"payload"`
	// InstanceID 实际处理请求的实例
	InstanceID string `json:"instance_id" msgpack:"instance_id"`
}

// BreakerState 熔断器状态。
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// ServiceTopology 单个目的地的拓扑快照。
type ServiceTopology struct {
	Name           string         `json:"name"`
	Instances      []Instance     `json:"instances"`
	SecurityPolicy SecurityPolicy `json:"security_policy"`
	TrafficPolicy  TrafficPolicy  `json:"traffic_policy"`
	BreakerState   BreakerState   `json:"breaker_state"`
}

// Topology 网格拓扑快照。
type Topology struct {
	Services map[string]ServiceTopology `json:"services"`
}

// Stats 聚合调用统计。
type Stats struct {
	RequestsTotal       int64         `json:"requests_total"`
	RequestsSuccessful  int64         `json:"requests_successful"`
	RequestsFailed      int64         `json:"requests_failed"`
	AverageLatency      time.Duration `json:"average_latency"`
	SecurityViolations  int64         `json:"security_violations"`
	RateLimited         int64         `json:"rate_limited"`
	CircuitBreakerTrips int64         `json:"circuit_breaker_trips"`
}
