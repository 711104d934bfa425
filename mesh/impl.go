package mesh

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ceyewan/nexus/clog"
	"github.com/ceyewan/nexus/metrics"
	"github.com/ceyewan/nexus/xerrors"
)

// destination 单个目的地的注册状态。
// instances 与策略由 mu 保护；breaker 自带锁。
type destination struct {
	mu        sync.RWMutex
	name      string
	instances []Instance
	security  SecurityPolicy
	traffic   TrafficPolicy
	breaker   breaker
}

func (d *destination) policies() (SecurityPolicy, TrafficPolicy) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.security, d.traffic
}

func (d *destination) healthyInstances() []Instance {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []Instance
	for _, inst := range d.instances {
		if inst.Status == StatusHealthy {
			out = append(out, inst)
		}
	}
	return out
}

type meshImpl struct {
	cfg       *Config
	logger    clog.Logger
	meter     metrics.Meter
	transport Transport
	limiter   limiter
	balancer  Balancer

	mu           sync.RWMutex
	destinations map[string]*destination
	closed       bool

	requestsTotal      atomic.Int64
	requestsSuccessful atomic.Int64
	requestsFailed     atomic.Int64
	securityViolations atomic.Int64
	rateLimited        atomic.Int64
	breakerTrips       atomic.Int64
	latencyTotalNanos  atomic.Int64
	latencySamples     atomic.Int64

	requestsM   metrics.Counter
	failedM     metrics.Counter
	violationsM metrics.Counter
	rateLimitM  metrics.Counter
	tripsM      metrics.Counter
	durationM   metrics.Histogram
}

func newMesh(cfg *Config, opt *options) (*meshImpl, error) {
	m := &meshImpl{
		cfg:          cfg,
		logger:       opt.logger,
		meter:        opt.meter,
		transport:    opt.transport,
		limiter:      newLimiter(cfg),
		balancer:     newBalancer(cfg.Balancer),
		destinations: make(map[string]*destination),
	}

	var err error
	if m.requestsM, err = m.meter.Counter(MetricRequestsTotal, "调用总数"); err != nil {
		return nil, err
	}
	if m.failedM, err = m.meter.Counter(MetricRequestsFailed, "失败调用数"); err != nil {
		return nil, err
	}
	if m.violationsM, err = m.meter.Counter(MetricSecurityViolations, "安全策略拒绝数"); err != nil {
		return nil, err
	}
	if m.rateLimitM, err = m.meter.Counter(MetricRateLimited, "限流拒绝数"); err != nil {
		return nil, err
	}
	if m.tripsM, err = m.meter.Counter(MetricBreakerTrips, "熔断器打开次数"); err != nil {
		return nil, err
	}
	if m.durationM, err = m.meter.Histogram(MetricCallDuration, "调用耗时", metrics.WithUnit("s")); err != nil {
		return nil, err
	}

	return m, nil
}

// ============================================================
// 注册与策略
// ============================================================

func (m *meshImpl) RegisterService(name string, instances []Instance) error {
	if name == "" {
		return xerrors.Wrap(ErrInvalidConfig, "empty service name")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, exists := m.destinations[name]; exists {
		return xerrors.Wrapf(ErrDuplicateService, "%s", name)
	}

	copied := make([]Instance, len(instances))
	copy(copied, instances)
	for i := range copied {
		if copied[i].Status == "" {
			copied[i].Status = StatusHealthy
		}
	}

	policy := m.cfg.DefaultPolicy
	m.destinations[name] = &destination{
		name:      name,
		instances: copied,
		traffic:   policy,
		breaker:   m.newDestinationBreaker(name, policy),
	}

	m.logger.Info("service registered",
		clog.String("service", name),
		clog.Int("instances", len(copied)))
	return nil
}

func (m *meshImpl) newDestinationBreaker(name string, policy TrafficPolicy) breaker {
	return newBreaker(m.cfg.BreakerDriver, name, policy, func() {
		m.breakerTrips.Add(1)
		m.tripsM.Inc(context.Background(), metrics.L(LabelTarget, name))
		m.logger.Warn("circuit breaker tripped", clog.String("service", name))
	})
}

func (m *meshImpl) ApplySecurityPolicy(service string, policy SecurityPolicy) error {
	dest, err := m.destination(service)
	if err != nil {
		return err
	}
	dest.mu.Lock()
	dest.security = policy
	dest.mu.Unlock()
	return nil
}

func (m *meshImpl) ApplyTrafficPolicy(service string, policy TrafficPolicy) error {
	dest, err := m.destination(service)
	if err != nil {
		return err
	}
	if policy.Timeout <= 0 {
		policy.Timeout = m.cfg.DefaultPolicy.Timeout
	}
	if policy.FailureThreshold <= 0 {
		policy.FailureThreshold = m.cfg.DefaultPolicy.FailureThreshold
	}
	if policy.ResetTimeout <= 0 {
		policy.ResetTimeout = m.cfg.DefaultPolicy.ResetTimeout
	}
	if policy.Window <= 0 {
		policy.Window = m.cfg.DefaultPolicy.Window
	}

	dest.mu.Lock()
	dest.traffic = policy
	// 阈值随策略变化，替换为全新的 closed 熔断器
	dest.breaker = m.newDestinationBreaker(service, policy)
	dest.mu.Unlock()
	return nil
}

func (m *meshImpl) SetInstanceStatus(service, instanceID string, status InstanceStatus) error {
	dest, err := m.destination(service)
	if err != nil {
		return err
	}

	dest.mu.Lock()
	defer dest.mu.Unlock()
	for i := range dest.instances {
		if dest.instances[i].ID == instanceID {
			dest.instances[i].Status = status
			return nil
		}
	}
	return xerrors.Wrapf(ErrInstanceNotFound, "%s/%s", service, instanceID)
}

func (m *meshImpl) destination(service string) (*destination, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	dest, ok := m.destinations[service]
	if !ok {
		return nil, xerrors.Wrapf(ErrServiceNotFound, "%s", service)
	}
	return dest, nil
}

// ============================================================
// 调用管道
// ============================================================

func (m *meshImpl) Call(ctx context.Context, req *CallRequest) (*CallResponse, error) {
	if req == nil || req.Target == "" {
		return nil, xerrors.Wrap(ErrInvalidConfig, "request requires target")
	}

	dest, err := m.destination(req.Target)
	if err != nil {
		return nil, err
	}

	m.requestsTotal.Add(1)
	m.requestsM.Inc(ctx, metrics.L(LabelCaller, req.Caller), metrics.L(LabelTarget, req.Target))
	security, traffic := dest.policies()

	// 1. 安全策略
	if !checkSecurity(security, req.Caller, req.Method) {
		m.securityViolations.Add(1)
		m.requestsFailed.Add(1)
		m.violationsM.Inc(ctx, metrics.L(LabelCaller, req.Caller), metrics.L(LabelTarget, req.Target))
		return nil, xerrors.Wrapf(ErrAccessDenied, "%s -> %s %s", req.Caller, req.Target, req.Method)
	}

	// 2. 限流
	if !m.limiter.allow(req.Caller+"->"+req.Target, traffic) {
		m.rateLimited.Add(1)
		m.requestsFailed.Add(1)
		m.rateLimitM.Inc(ctx, metrics.L(LabelCaller, req.Caller), metrics.L(LabelTarget, req.Target))
		return nil, xerrors.Wrapf(ErrRateLimitExceeded, "%s -> %s", req.Caller, req.Target)
	}

	// 3. 熔断
	dest.mu.RLock()
	br := dest.breaker
	dest.mu.RUnlock()
	done, abort, err := br.allow()
	if err != nil {
		m.requestsFailed.Add(1)
		return nil, xerrors.Wrapf(err, "target %s", req.Target)
	}

	// 4. 选址。选不出实例说明调用未发生，归还熔断名额而非记为失败，
	// 避免实例全部下线时熔断器打开、掩盖真正的原因。
	candidates := dest.healthyInstances()
	instance, ok := m.balancer.Pick(candidates)
	if !ok {
		abort()
		m.requestsFailed.Add(1)
		return nil, xerrors.Wrapf(ErrNoHealthyInstances, "%s", req.Target)
	}

	// 5. 执行，受策略超时约束
	begin := time.Now()
	resp, err := m.execute(ctx, instance, req, traffic.Timeout)
	latency := time.Since(begin)

	m.latencyTotalNanos.Add(int64(latency))
	m.latencySamples.Add(1)
	m.durationM.Record(ctx, latency.Seconds(),
		metrics.L(LabelCaller, req.Caller), metrics.L(LabelTarget, req.Target))

	if err != nil {
		done(false)
		m.requestsFailed.Add(1)
		m.logger.WarnContext(ctx, "call failed",
			clog.String("caller", req.Caller),
			clog.String("target", req.Target),
			clog.String("instance", instance.ID),
			clog.Error(err))
		return nil, err
	}

	done(true)
	m.requestsSuccessful.Add(1)
	return resp, nil
}

// execute 将传输调用与策略超时竞争。
// 超时后放弃等待，结果未知，由调用方决定是否重试。
func (m *meshImpl) execute(ctx context.Context, instance Instance, req *CallRequest, timeout time.Duration) (*CallResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		resp *CallResponse
		err  error
	}
	resultCh := make(chan result, 1)
	go func() {
		resp, err := m.transport.Do(callCtx, instance, req)
		resultCh <- result{resp: resp, err: err}
	}()

	select {
	case r := <-resultCh:
		return r.resp, r.err
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, xerrors.Wrapf(ErrCallTimeout, "%s after %s", req.Target, timeout)
	}
}

// ============================================================
// 观测
// ============================================================

func (m *meshImpl) Topology() Topology {
	m.mu.RLock()
	dests := make([]*destination, 0, len(m.destinations))
	for _, dest := range m.destinations {
		dests = append(dests, dest)
	}
	m.mu.RUnlock()

	topology := Topology{Services: make(map[string]ServiceTopology, len(dests))}
	for _, dest := range dests {
		dest.mu.RLock()
		instances := make([]Instance, len(dest.instances))
		copy(instances, dest.instances)
		topology.Services[dest.name] = ServiceTopology{
			Name:           dest.name,
			Instances:      instances,
			SecurityPolicy: dest.security,
			TrafficPolicy:  dest.traffic,
			BreakerState:   dest.breaker.state(),
		}
		dest.mu.RUnlock()
	}
	return topology
}

func (m *meshImpl) Stats() Stats {
	stats := Stats{
		RequestsTotal:       m.requestsTotal.Load(),
		RequestsSuccessful:  m.requestsSuccessful.Load(),
		RequestsFailed:      m.requestsFailed.Load(),
		SecurityViolations:  m.securityViolations.Load(),
		RateLimited:         m.rateLimited.Load(),
		CircuitBreakerTrips: m.breakerTrips.Load(),
	}
	if samples := m.latencySamples.Load(); samples > 0 {
		stats.AverageLatency = time.Duration(m.latencyTotalNanos.Load() / samples)
	}
	return stats
}

func (m *meshImpl) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.limiter.stop()
	return nil
}
