package orchestrator

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/ceyewan/nexus/clog"
	"github.com/ceyewan/nexus/metrics"
	"github.com/ceyewan/nexus/xerrors"
)

// serviceRuntime 单个描述符的可变运行时状态，由自身互斥锁保护。
type serviceRuntime struct {
	mu             sync.Mutex
	desc           Descriptor
	state          State
	instance       Instance
	startedAt      time.Time
	healthFailures int
	lastErr        error
}

func (rt *serviceRuntime) snapshot() ServiceStatus {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	status := ServiceStatus{
		Name:           rt.desc.Name,
		State:          rt.state,
		Essential:      rt.desc.Essential,
		Dependencies:   append([]string(nil), rt.desc.Dependencies...),
		StartedAt:      rt.startedAt,
		HealthFailures: rt.healthFailures,
	}
	if rt.lastErr != nil {
		status.LastError = rt.lastErr.Error()
	}
	return status
}

type orchestratorImpl struct {
	cfg    *Config
	logger clog.Logger
	meter  metrics.Meter

	// mu 保护注册表、系统状态与启动顺序；单个服务的状态由 runtime 自身的锁保护
	mu            sync.Mutex
	services      map[string]*serviceRuntime
	startupOrder  []string
	shutdownOrder []string
	systemState   State
	closed        bool

	unhealthyCh chan UnhealthySignal
	stopCh      chan struct{}
	closeOnce   sync.Once

	runningGauge    metrics.Gauge
	startupsTotal   metrics.Counter
	startupFailures metrics.Counter
	healthFailures  metrics.Counter
	startDuration   metrics.Histogram
}

func newOrchestrator(cfg *Config, opt *options) (*orchestratorImpl, error) {
	o := &orchestratorImpl{
		cfg:         cfg,
		logger:      opt.logger,
		meter:       opt.meter,
		services:    make(map[string]*serviceRuntime),
		systemState: StateStopped,
		unhealthyCh: make(chan UnhealthySignal, cfg.SignalBuffer),
		stopCh:      make(chan struct{}),
	}

	var err error
	if o.runningGauge, err = o.meter.Gauge(MetricServicesRunning, "当前 running 状态的服务数"); err != nil {
		return nil, err
	}
	if o.startupsTotal, err = o.meter.Counter(MetricStartupsTotal, "服务启动尝试总数"); err != nil {
		return nil, err
	}
	if o.startupFailures, err = o.meter.Counter(MetricStartupFailures, "服务启动失败数"); err != nil {
		return nil, err
	}
	if o.healthFailures, err = o.meter.Counter(MetricHealthFailures, "健康检查失败数"); err != nil {
		return nil, err
	}
	if o.startDuration, err = o.meter.Histogram(MetricStartDuration, "服务启动耗时", metrics.WithUnit("s")); err != nil {
		return nil, err
	}

	go o.monitor()

	return o, nil
}

// Register 注册服务描述符，仅在系统 stopped 状态下允许。
func (o *orchestratorImpl) Register(desc Descriptor) error {
	if desc.Name == "" || desc.Service == nil {
		return xerrors.Wrap(ErrInvalidConfig, "descriptor requires name and service")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	if o.systemState != StateStopped {
		return ErrAlreadyStarted
	}
	if _, exists := o.services[desc.Name]; exists {
		return xerrors.Wrapf(ErrDuplicateService, "%s", desc.Name)
	}

	if desc.StartupTimeout <= 0 {
		desc.StartupTimeout = o.cfg.DefaultStartupTimeout
	}
	if desc.ShutdownTimeout <= 0 {
		desc.ShutdownTimeout = o.cfg.DefaultShutdownTimeout
	}

	o.services[desc.Name] = &serviceRuntime{desc: desc, state: StateRegistered}
	// 注册表变化，启动顺序失效，下次 StartAll 重新计算
	o.startupOrder = nil
	o.shutdownOrder = nil

	o.logger.Debug("service registered",
		clog.String("service", desc.Name),
		clog.Int("priority", desc.Priority),
		clog.Bool("essential", desc.Essential))
	return nil
}

func (o *orchestratorImpl) StartupOrder() ([]string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.computeOrderLocked()
}

func (o *orchestratorImpl) computeOrderLocked() ([]string, error) {
	if o.startupOrder != nil {
		return append([]string(nil), o.startupOrder...), nil
	}

	descriptors := make(map[string]Descriptor, len(o.services))
	for name, rt := range o.services {
		descriptors[name] = rt.desc
	}

	order, err := (&graph{descriptors: descriptors}).computeOrder()
	if err != nil {
		return nil, err
	}

	o.startupOrder = order
	o.shutdownOrder = reversed(order)
	return append([]string(nil), order...), nil
}

// StartAll 按依赖顺序启动全部服务。
func (o *orchestratorImpl) StartAll(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.systemState != StateStopped {
		o.mu.Unlock()
		return xerrors.Wrapf(ErrNotStopped, "current state: %s", o.systemState)
	}
	order, err := o.computeOrderLocked()
	if err != nil {
		o.mu.Unlock()
		return err
	}
	o.systemState = StateStarting
	o.mu.Unlock()

	o.logger.Info("starting services", clog.Any("order", order))

	var started []string
	for _, name := range order {
		rt := o.runtime(name)
		if err := o.startOne(ctx, rt); err != nil {
			if rt.desc.Essential {
				o.logger.Error("essential service failed, rolling back startup",
					clog.String("service", name), clog.Error(err))
				o.rollback(started)
				o.setSystemState(StateStopped)
				return err
			}
			o.logger.Warn("non-essential service failed, continuing degraded",
				clog.String("service", name), clog.Error(err))
			continue
		}
		started = append(started, name)
	}

	o.setSystemState(StateRunning)
	o.logger.Info("startup complete", clog.Int("started", len(started)), clog.Int("total", len(order)))
	return nil
}

// startOne 启动单个服务：依赖检查、工厂调用与初始化钩子共享同一超时预算。
func (o *orchestratorImpl) startOne(ctx context.Context, rt *serviceRuntime) error {
	name := rt.desc.Name
	o.startupsTotal.Inc(ctx, metrics.L(LabelService, name))

	// 防御性不变量检查：正确顺序下依赖必然 running
	deps := make(Dependencies, len(rt.desc.Dependencies))
	for _, dep := range rt.desc.Dependencies {
		depRT := o.runtime(dep)
		depRT.mu.Lock()
		state, instance := depRT.state, depRT.instance
		depRT.mu.Unlock()
		if state != StateRunning {
			err := xerrors.Wrapf(ErrDependencyNotRunning, "%s requires %s (state: %s)", name, dep, state)
			o.markError(rt, err)
			return err
		}
		deps[dep] = instance
	}

	rt.mu.Lock()
	rt.state = StateStarting
	rt.mu.Unlock()

	begin := time.Now()
	instance, err := o.runStart(ctx, rt.desc, deps)
	o.startDuration.Record(ctx, time.Since(begin).Seconds(), metrics.L(LabelService, name))

	if err != nil {
		o.startupFailures.Inc(ctx,
			metrics.L(LabelService, name),
			metrics.L(LabelEssential, strconv.FormatBool(rt.desc.Essential)))
		o.markError(rt, err)
		return err
	}

	rt.mu.Lock()
	rt.state = StateRunning
	rt.instance = instance
	rt.startedAt = time.Now()
	rt.healthFailures = 0
	rt.lastErr = nil
	rt.mu.Unlock()

	o.runningGauge.Inc(ctx, metrics.L(LabelService, name))
	o.logger.Info("service started", clog.String("service", name), clog.Duration("took", time.Since(begin)))
	return nil
}

// runStart 执行 Start 与可选的 Initialize，与启动超时竞争。
// 超时后放弃等待，副作用是否完成未知，由上层按"结果未知"处理。
func (o *orchestratorImpl) runStart(ctx context.Context, desc Descriptor, deps Dependencies) (Instance, error) {
	startCtx, cancel := context.WithTimeout(ctx, desc.StartupTimeout)
	defer cancel()

	type result struct {
		instance Instance
		err      error
	}
	done := make(chan result, 1)

	go func() {
		instance, err := desc.Service.Start(startCtx, deps)
		if err == nil && instance != nil {
			if init, ok := instance.(Initializer); ok {
				if ierr := init.Initialize(startCtx); ierr != nil {
					err = xerrors.Wrapf(ierr, "initialize %s", desc.Name)
					// 初始化失败的实例无法交付，回收工厂已打开的资源
					o.discardInstance(desc, instance)
					instance = nil
				}
			}
		}
		done <- result{instance: instance, err: err}
	}()

	select {
	case r := <-done:
		return r.instance, r.err
	case <-startCtx.Done():
		// 超时后工厂可能仍会完成，迟到的实例同样回收，避免泄漏
		go func() {
			if r := <-done; r.instance != nil {
				o.discardInstance(desc, r.instance)
			}
		}()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, xerrors.Wrapf(ErrStartupTimeout, "%s after %s", desc.Name, desc.StartupTimeout)
	}
}

// discardInstance 尽力停止无法交付的实例（初始化失败或超时后迟到的启动结果）。
func (o *orchestratorImpl) discardInstance(desc Descriptor, instance Instance) {
	stopCtx, cancel := context.WithTimeout(context.Background(), desc.ShutdownTimeout)
	defer cancel()
	if err := instance.Stop(stopCtx); err != nil {
		o.logger.Warn("orphaned instance stop failed",
			clog.String("service", desc.Name), clog.Error(err))
	}
}

// rollback 逆序停止已启动的服务，用于关键服务启动失败后的回退。
func (o *orchestratorImpl) rollback(started []string) {
	for _, name := range reversed(started) {
		rt := o.runtime(name)
		if err := o.stopOne(context.Background(), rt); err != nil {
			o.logger.Error("rollback stop failed", clog.String("service", name), clog.Error(err))
		}
	}
}

// StopAll 逆序停止全部服务，单个失败不会中止其余服务的停止。
func (o *orchestratorImpl) StopAll(ctx context.Context) error {
	o.mu.Lock()
	if o.systemState == StateStopped {
		o.mu.Unlock()
		return nil
	}
	o.systemState = StateStopping
	order := append([]string(nil), o.shutdownOrder...)
	o.mu.Unlock()

	o.logger.Info("stopping services", clog.Any("order", order))

	var collector xerrors.Collector
	for _, name := range order {
		rt := o.runtime(name)
		if err := o.stopOne(ctx, rt); err != nil {
			o.logger.Error("service stop failed", clog.String("service", name), clog.Error(err))
			collector.Collect(err)
		}
	}

	o.setSystemState(StateStopped)
	return collector.Err()
}

// stopOne 停止单个服务，与停止超时竞争；非 running/starting 状态为空操作。
func (o *orchestratorImpl) stopOne(ctx context.Context, rt *serviceRuntime) error {
	rt.mu.Lock()
	if rt.state != StateRunning && rt.state != StateStarting {
		rt.mu.Unlock()
		return nil
	}
	rt.state = StateStopping
	instance := rt.instance
	rt.mu.Unlock()

	name := rt.desc.Name
	var err error
	if instance != nil {
		stopCtx, cancel := context.WithTimeout(ctx, rt.desc.ShutdownTimeout)
		done := make(chan error, 1)
		go func() { done <- instance.Stop(stopCtx) }()
		select {
		case err = <-done:
		case <-stopCtx.Done():
			err = xerrors.Wrapf(ErrShutdownTimeout, "%s after %s", name, rt.desc.ShutdownTimeout)
		}
		cancel()
	}

	rt.mu.Lock()
	if err != nil {
		rt.state = StateError
		rt.lastErr = err
	} else {
		rt.state = StateStopped
		rt.lastErr = nil
	}
	rt.instance = nil
	rt.mu.Unlock()

	o.runningGauge.Dec(context.Background(), metrics.L(LabelService, name))
	if err == nil {
		o.logger.Info("service stopped", clog.String("service", name))
	}
	return err
}

func (o *orchestratorImpl) ServiceStatus(name string) (ServiceStatus, error) {
	o.mu.Lock()
	rt, ok := o.services[name]
	o.mu.Unlock()
	if !ok {
		return ServiceStatus{}, xerrors.Wrapf(ErrUnknownService, "%s", name)
	}
	return rt.snapshot(), nil
}

func (o *orchestratorImpl) SystemStatus() SystemStatus {
	o.mu.Lock()
	runtimes := make([]*serviceRuntime, 0, len(o.services))
	for _, rt := range o.services {
		runtimes = append(runtimes, rt)
	}
	o.mu.Unlock()

	status := SystemStatus{
		Verdict:  VerdictHealthy,
		Services: make(map[string]ServiceStatus, len(runtimes)),
	}
	for _, rt := range runtimes {
		snap := rt.snapshot()
		status.Services[snap.Name] = snap
		status.Total++
		switch {
		case snap.State == StateRunning:
			status.Running++
		case snap.State == StateError && snap.Essential:
			status.Verdict = VerdictError
		case snap.State == StateError:
			if status.Verdict != VerdictError {
				status.Verdict = VerdictDegraded
			}
		}
	}
	return status
}

func (o *orchestratorImpl) Unhealthy() <-chan UnhealthySignal {
	return o.unhealthyCh
}

func (o *orchestratorImpl) Close() error {
	o.closeOnce.Do(func() {
		o.mu.Lock()
		o.closed = true
		o.mu.Unlock()
		close(o.stopCh)
	})
	return nil
}

// ============================================================
// 健康监控
// ============================================================

// monitor 周期性评估 running 服务的健康谓词。
// 成功重置连续失败计数；失败累加，关键服务达到阈值时发出 Unhealthy 信号。
func (o *orchestratorImpl) monitor() {
	ticker := time.NewTicker(o.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.checkAll()
		case <-o.stopCh:
			return
		}
	}
}

func (o *orchestratorImpl) checkAll() {
	o.mu.Lock()
	runtimes := make([]*serviceRuntime, 0, len(o.services))
	for _, rt := range o.services {
		runtimes = append(runtimes, rt)
	}
	o.mu.Unlock()

	for _, rt := range runtimes {
		o.checkOne(rt)
	}
}

func (o *orchestratorImpl) checkOne(rt *serviceRuntime) {
	rt.mu.Lock()
	state, instance := rt.state, rt.instance
	rt.mu.Unlock()
	if state != StateRunning || instance == nil {
		return
	}
	checker, ok := instance.(HealthChecker)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.HealthCheckTimeout)
	healthy := checker.HealthCheck(ctx)
	cancel()

	name := rt.desc.Name
	if healthy {
		rt.mu.Lock()
		rt.healthFailures = 0
		rt.mu.Unlock()
		return
	}

	rt.mu.Lock()
	rt.healthFailures++
	failures := rt.healthFailures
	essential := rt.desc.Essential
	rt.mu.Unlock()

	o.healthFailures.Inc(context.Background(), metrics.L(LabelService, name))
	o.logger.Warn("health check failed",
		clog.String("service", name),
		clog.Int("consecutive_failures", failures))

	// 达到阈值且为关键服务时逃逸给外部补救，重复信号等到下一次跨越阈值
	if essential && failures == o.cfg.FailureThreshold {
		signal := UnhealthySignal{Service: name, Failures: failures, At: time.Now()}
		select {
		case o.unhealthyCh <- signal:
		default:
			o.logger.Warn("unhealthy signal dropped, channel full", clog.String("service", name))
		}
	}
}

// ============================================================
// 辅助方法
// ============================================================

func (o *orchestratorImpl) runtime(name string) *serviceRuntime {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.services[name]
}

func (o *orchestratorImpl) setSystemState(state State) {
	o.mu.Lock()
	o.systemState = state
	o.mu.Unlock()
}

func (o *orchestratorImpl) markError(rt *serviceRuntime, err error) {
	rt.mu.Lock()
	rt.state = StateError
	rt.lastErr = err
	rt.mu.Unlock()
}
