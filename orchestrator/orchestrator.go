// Package orchestrator 提供服务依赖图解析与生命周期编排能力。
//
// orchestrator 是 Nexus 基础设施核心的最底层组件，它提供了：
//   - 服务注册：不可变的服务描述符（依赖、优先级、超时、是否关键）
//   - 确定性启动顺序：依赖图拓扑排序，同层按优先级升序，检测并报告环
//   - 生命周期状态机：registered → starting → running → stopping → stopped，
//     任一活跃状态失败进入 error，清理后可重新 StartAll
//   - 带超时的启动/停止：每个服务的 Start/Stop 与定时器竞争
//   - 健康监控：周期性评估健康谓词，关键服务连续失败达到阈值后
//     通过 Unhealthy 通道发出信号，由外部决定补救，编排器不自动重启
//
// ## 基本使用
//
//	orch, _ := orchestrator.New(nil, orchestrator.WithLogger(logger))
//	defer orch.Close()
//
//	_ = orch.Register(orchestrator.Descriptor{
//	    Name:    "store",
//	    Service: storeService,
//	})
//	_ = orch.Register(orchestrator.Descriptor{
//	    Name:         "api",
//	    Dependencies: []string{"store"},
//	    Essential:    true,
//	    Service:      apiService,
//	})
//
//	if err := orch.StartAll(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer orch.StopAll(context.Background())
//
// ## 健康信号
//
//	go func() {
//	    for sig := range orch.Unhealthy() {
//	        // 外部补救：重启、告警等
//	        fmt.Println("unhealthy:", sig.Service)
//	    }
//	}()
package orchestrator

import "context"

// Orchestrator 服务编排器核心接口。
type Orchestrator interface {
	// Register 注册服务描述符，仅在系统处于 stopped 状态时允许。
	// 名称重复返回 ErrDuplicateService；系统已启动时返回 ErrAlreadyStarted。
	Register(desc Descriptor) error

	// StartupOrder 计算并返回启动顺序。
	// 依赖图含环时返回 *CircularDependencyError。
	StartupOrder() ([]string, error)

	// StartAll 按启动顺序启动全部服务，仅在系统处于 stopped 状态时有效。
	// 关键服务启动失败会回滚已启动的服务并返回原始错误；
	// 非关键服务失败仅标记 error，系统降级继续。
	StartAll(ctx context.Context) error

	// StopAll 按启动顺序的逆序停止全部服务，尽力而为，永不中途放弃。
	StopAll(ctx context.Context) error

	// ServiceStatus 返回单个服务的状态快照。
	ServiceStatus(name string) (ServiceStatus, error)

	// SystemStatus 返回整体状态快照，核心字段为 healthy|degraded|error 结论。
	SystemStatus() SystemStatus

	// Unhealthy 返回健康信号通道。
	// 关键服务连续健康检查失败达到阈值时收到一条信号；通道在构造时创建，
	// 订阅关系显式出现在组合代码中。
	Unhealthy() <-chan UnhealthySignal

	// Close 停止健康监控等后台任务。不会停止业务服务，停止用 StopAll。
	Close() error
}

// New 创建 Orchestrator 实例。
// cfg 为 nil 时使用默认配置。
func New(cfg *Config, opts ...Option) (Orchestrator, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := applyOptions(opts...)
	return newOrchestrator(cfg, opt)
}
