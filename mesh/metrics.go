package mesh

// 指标名称常量
const (
	// MetricRequestsTotal 调用总数
	MetricRequestsTotal = "mesh_requests_total"

	// MetricRequestsFailed 失败调用数（含被各阶段拒绝的调用）
	MetricRequestsFailed = "mesh_requests_failed_total"

	// MetricSecurityViolations 安全策略拒绝数
	MetricSecurityViolations = "mesh_security_violations_total"

	// MetricRateLimited 限流拒绝数
	MetricRateLimited = "mesh_rate_limited_total"

	// MetricBreakerTrips 熔断器打开次数
	MetricBreakerTrips = "mesh_circuit_breaker_trips_total"

	// MetricCallDuration 调用耗时分布（秒）
	MetricCallDuration = "mesh_call_duration_seconds"
)

// 指标标签
const (
	LabelCaller = "caller"
	LabelTarget = "target"
)
