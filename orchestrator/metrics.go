package orchestrator

// Metrics 指标常量定义
const (
	// MetricServicesRunning 当前 running 状态的服务数 (Gauge)
	MetricServicesRunning = "orchestrator_services_running"

	// MetricStartupsTotal 服务启动尝试总数 (Counter)
	MetricStartupsTotal = "orchestrator_startups_total"

	// MetricStartupFailures 服务启动失败数 (Counter)
	MetricStartupFailures = "orchestrator_startup_failures_total"

	// MetricHealthFailures 健康检查失败数 (Counter)
	MetricHealthFailures = "orchestrator_health_check_failures_total"

	// MetricStartDuration 服务启动耗时（秒）(Histogram)
	MetricStartDuration = "orchestrator_start_duration_seconds"

	// LabelService 服务名标签
	LabelService = "service"

	// LabelEssential 是否关键服务标签
	LabelEssential = "essential"
)
