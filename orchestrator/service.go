package orchestrator

import (
	"context"
	"time"
)

// Service 由每个受编排的服务实现，通过类型化接口取代不透明的工厂函数。
type Service interface {
	// Start 启动服务并返回运行实例。
	// deps 中包含该服务声明的全部依赖的运行实例，启动顺序保证依赖先行。
	// ctx 携带启动超时，实现应尊重取消。
	Start(ctx context.Context, deps Dependencies) (Instance, error)
}

// Instance 运行中的服务实例句柄，由编排器独占持有。
type Instance interface {
	// Stop 停止实例并释放资源，ctx 携带停止超时。
	Stop(ctx context.Context) error
}

// Initializer 可选的初始化钩子。
// 实例实现该接口时，Start 成功后会在同一超时预算内调用 Initialize。
type Initializer interface {
	Initialize(ctx context.Context) error
}

// HealthChecker 可选的健康谓词。
// 实例实现该接口时会被健康监控周期性评估。
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// Dependencies 按名称解析出的依赖实例集合。
type Dependencies map[string]Instance

// Descriptor 服务注册记录，注册后不可变。
type Descriptor struct {
	// Name 服务唯一名称
	Name string

	// Dependencies 依赖的服务名称集合
	Dependencies []string

	// Priority 同层节点的启动次序，数值小者先启动
	Priority int

	// Essential 关键服务：启动失败中止整个启动序列并回滚
	Essential bool

	// StartupTimeout 启动超时，0 使用 Config.DefaultStartupTimeout
	StartupTimeout time.Duration

	// ShutdownTimeout 停止超时，0 使用 Config.DefaultShutdownTimeout
	ShutdownTimeout time.Duration

	// Service 类型化的服务构造入口
	Service Service
}

// State 服务生命周期状态。
type State string

const (
	StateRegistered State = "registered"
	StateStarting   State = "starting"
	StateRunning    State = "running"
	StateStopping   State = "stopping"
	StateStopped    State = "stopped"
	StateError      State = "error"
)

// Verdict 系统整体结论。
type Verdict string

const (
	VerdictHealthy  Verdict = "healthy"  // 全部服务运行正常
	VerdictDegraded Verdict = "degraded" // 有非关键服务失效，系统降级运行
	VerdictError    Verdict = "error"    // 有关键服务失效
)

// ServiceStatus 单个服务的状态快照。
type ServiceStatus struct {
	Name           string    `json:"name"`
	State          State     `json:"state"`
	Essential      bool      `json:"essential"`
	Dependencies   []string  `json:"dependencies"`
	StartedAt      time.Time `json:"started_at,omitzero"`
	HealthFailures int       `json:"health_failures"`
	LastError      string    `json:"last_error,omitempty"`
}

// SystemStatus 系统整体状态快照。
type SystemStatus struct {
	Verdict  Verdict                  `json:"verdict"`
	Running  int                      `json:"running"`
	Total    int                      `json:"total"`
	Services map[string]ServiceStatus `json:"services"`
}

// UnhealthySignal 健康监控逃逸信号。
// 关键服务连续失败达到阈值时发出，编排器本身不做补救。
type UnhealthySignal struct {
	Service  string    `json:"service"`
	Failures int       `json:"failures"`
	At       time.Time `json:"at"`
}
