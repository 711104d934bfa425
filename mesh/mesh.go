// Package mesh 提供进程内服务网格/流量治理层：以统一管道包裹服务间调用，
// 依次执行安全策略、限流、熔断、负载均衡与实际传输。
//
// mesh 是 Nexus 治理层的核心组件，它提供了：
// - 目的地注册：实例列表 + 可插拔负载均衡（round_robin / weighted / random）
// - 安全策略：调用方允许/拒绝名单与方法白名单
// - 限流：按 (caller, target) 的滑动窗口计数，或令牌桶模式
// - 熔断：按目的地的 closed/open/half-open 状态机，half-open 只放行一个试探
// - 传输抽象：默认进程内处理函数，可切换为 NATS request-reply
// - 与 L0 基础组件（日志、指标）的深度集成
//
// ## 基本使用
//
//	m, _ := mesh.New(nil, mesh.WithLogger(logger))
//	defer m.Close()
//
//	m.RegisterService("billing", []mesh.Instance{
//	    {ID: "billing-1", URL: "inproc://billing", Weight: 1, Status: mesh.StatusHealthy},
//	})
//	m.ApplyTrafficPolicy("billing", mesh.TrafficPolicy{
//	    MaxRequests:      100,
//	    Window:           time.Second,
//	    Timeout:          2 * time.Second,
//	    FailureThreshold: 5,
//	    ResetTimeout:     30 * time.Second,
//	})
//
//	resp, err := m.Call(ctx, &mesh.CallRequest{
//	    Caller: "gateway", Target: "billing", Method: "POST", Path: "/invoices",
//	})
//
// ## 自定义传输
//
//	natsConn, _ := connector.NewNATS(&cfg.NATS)
//	transport := mesh.NewNATSTransport(natsConn)
//	m, _ := mesh.New(nil, mesh.WithTransport(transport))
//
// 拒绝类错误（ErrAccessDenied、ErrRateLimitExceeded、ErrCircuitOpen）
// 总是直接返回给调用方，网格自身从不重试。
package mesh

import "context"

// Mesh 服务网格核心接口。
type Mesh interface {
	// RegisterService 注册可调用目的地，熔断器初始为 closed。
	// 重名返回 ErrDuplicateService。
	RegisterService(name string, instances []Instance) error

	// ApplySecurityPolicy 设置目的地的安全策略，覆盖旧策略。
	ApplySecurityPolicy(service string, policy SecurityPolicy) error

	// ApplyTrafficPolicy 设置目的地的流量策略并按新阈值重建熔断器。
	ApplyTrafficPolicy(service string, policy TrafficPolicy) error

	// SetInstanceStatus 更新实例健康状态，供健康回调使用。
	SetInstanceStatus(service, instanceID string, status InstanceStatus) error

	// Call 执行治理管道后调用目标服务。
	// 管道任一阶段可短路：安全 → 限流 → 熔断 → 选址 → 执行。
	Call(ctx context.Context, req *CallRequest) (*CallResponse, error)

	// Topology 返回网格拓扑的只读快照。
	Topology() Topology

	// Stats 返回聚合调用统计。
	Stats() Stats

	// Close 释放内部资源（清理协程等）。
	Close() error
}

// New 创建服务网格。cfg 为 nil 时使用默认配置。
func New(cfg *Config, opts ...Option) (Mesh, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := applyOptions(opts...)
	if opt.transport == nil {
		opt.transport = NewInprocTransport()
	}
	return newMesh(cfg, opt)
}
