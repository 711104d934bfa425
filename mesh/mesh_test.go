package mesh

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/nexus/clog"
	"github.com/ceyewan/nexus/xerrors"
)

// ============================================================
// 测试辅助
// ============================================================

type fixture struct {
	mesh      Mesh
	transport *InprocTransport
	// hits 目的地处理函数被实际触达的次数
	hits atomic.Int64
	fail atomic.Bool
}

func newFixture(t *testing.T, cfg *Config) *fixture {
	t.Helper()
	f := &fixture{transport: NewInprocTransport()}

	m, err := New(cfg, WithLogger(clog.Discard()), WithTransport(f.transport))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	f.mesh = m

	f.transport.Handle("billing", func(ctx context.Context, req *CallRequest) (*CallResponse, error) {
		f.hits.Add(1)
		if f.fail.Load() {
			return nil, assert.AnError
		}
		return &CallResponse{Status: 200, Payload: []byte("ok")}, nil
	})

	require.NoError(t, m.RegisterService("billing", []Instance{
		{ID: "billing-1", URL: "inproc://billing", Weight: 1},
	}))
	return f
}

func call(f *fixture, caller string) (*CallResponse, error) {
	return f.mesh.Call(context.Background(), &CallRequest{
		Caller: caller, Target: "billing", Method: "POST", Path: "/invoices",
	})
}

// ============================================================
// 注册与调用
// ============================================================

func TestRegisterService(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("重名注册被拒绝", func(t *testing.T) {
		err := f.mesh.RegisterService("billing", nil)
		assert.ErrorIs(t, err, ErrDuplicateService)
	})

	t.Run("未注册目的地调用报错", func(t *testing.T) {
		_, err := f.mesh.Call(context.Background(), &CallRequest{Caller: "a", Target: "ghost"})
		assert.ErrorIs(t, err, ErrServiceNotFound)
	})

	t.Run("实例状态默认 healthy", func(t *testing.T) {
		topo := f.mesh.Topology()
		require.Contains(t, topo.Services, "billing")
		assert.Equal(t, StatusHealthy, topo.Services["billing"].Instances[0].Status)
	})
}

func TestCall_Success(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := call(f, "gateway")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, "billing-1", resp.InstanceID)
	assert.Equal(t, int64(1), f.hits.Load())

	stats := f.mesh.Stats()
	assert.Equal(t, int64(1), stats.RequestsTotal)
	assert.Equal(t, int64(1), stats.RequestsSuccessful)
	assert.Greater(t, int64(stats.AverageLatency), int64(0))
}

// ============================================================
// 安全策略
// ============================================================

func TestCall_SecurityPolicy(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.mesh.ApplySecurityPolicy("billing", SecurityPolicy{
		AllowedCallers: []string{"gateway", "orders"},
		DeniedCallers:  []string{"orders"},
		AllowedMethods: []string{"POST"},
	}))

	t.Run("白名单调用方放行", func(t *testing.T) {
		_, err := call(f, "gateway")
		assert.NoError(t, err)
	})

	t.Run("名单外调用方拒绝", func(t *testing.T) {
		_, err := call(f, "stranger")
		assert.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("拒绝名单优先于允许名单", func(t *testing.T) {
		_, err := call(f, "orders")
		assert.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("方法不在白名单内拒绝", func(t *testing.T) {
		_, err := f.mesh.Call(context.Background(), &CallRequest{
			Caller: "gateway", Target: "billing", Method: "DELETE",
		})
		assert.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("拒绝计入统计", func(t *testing.T) {
		stats := f.mesh.Stats()
		assert.Equal(t, int64(3), stats.SecurityViolations)
		assert.Equal(t, int64(3), stats.RequestsFailed)
	})
}

// ============================================================
// 限流
// ============================================================

func TestCall_RateLimit(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.mesh.ApplyTrafficPolicy("billing", TrafficPolicy{
		MaxRequests: 3,
		Window:      time.Second,
	}))

	for i := 0; i < 3; i++ {
		_, err := call(f, "gateway")
		require.NoError(t, err)
	}

	t.Run("超过窗口限额被拒绝", func(t *testing.T) {
		_, err := call(f, "gateway")
		assert.ErrorIs(t, err, ErrRateLimitExceeded)
		assert.Equal(t, int64(1), f.mesh.Stats().RateLimited)
	})

	t.Run("限流按调用方隔离", func(t *testing.T) {
		_, err := call(f, "other-caller")
		assert.NoError(t, err)
	})
}

func TestCall_RateLimit_TokenBucket(t *testing.T) {
	f := newFixture(t, &Config{LimiterMode: LimiterTokenBucket})
	require.NoError(t, f.mesh.ApplyTrafficPolicy("billing", TrafficPolicy{
		MaxRequests: 2,
		Window:      time.Minute,
	}))

	for i := 0; i < 2; i++ {
		_, err := call(f, "gateway")
		require.NoError(t, err)
	}
	_, err := call(f, "gateway")
	assert.ErrorIs(t, err, ErrRateLimitExceeded)

	t.Run("放宽策略对活跃键立即生效", func(t *testing.T) {
		require.NoError(t, f.mesh.ApplyTrafficPolicy("billing", TrafficPolicy{
			MaxRequests: 100,
			Window:      time.Minute,
		}))
		_, err := call(f, "gateway")
		assert.NoError(t, err)
	})
}

func TestLimiter_TokenBucketPolicyUpdate(t *testing.T) {
	l := newTokenBucketLimiter(time.Minute, time.Minute)
	defer l.stop()

	tight := TrafficPolicy{MaxRequests: 1, Window: time.Hour}
	require.True(t, l.allow("a->b", tight))
	require.False(t, l.allow("a->b", tight))

	// 新策略重建令牌桶，不必等空闲回收
	loose := TrafficPolicy{MaxRequests: 100, Window: time.Hour}
	assert.True(t, l.allow("a->b", loose))

	// 收紧同样立即生效：重建后的桶只有一个令牌
	assert.True(t, l.allow("a->b", tight))
	assert.False(t, l.allow("a->b", tight))
}

// ============================================================
// 熔断
// ============================================================

func TestCall_CircuitBreaker(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.mesh.ApplyTrafficPolicy("billing", TrafficPolicy{
		FailureThreshold: 3,
		ResetTimeout:     50 * time.Millisecond,
	}))

	// 前 3 次调用失败，熔断器打开
	f.fail.Store(true)
	for i := 0; i < 3; i++ {
		_, err := call(f, "gateway")
		require.Error(t, err)
	}
	require.Equal(t, int64(3), f.hits.Load())

	t.Run("第 4 次调用快速失败且不触达目的地", func(t *testing.T) {
		_, err := call(f, "gateway")
		assert.ErrorIs(t, err, ErrCircuitOpen)
		assert.Equal(t, int64(3), f.hits.Load(), "open 状态不应触达目的地")
		assert.Equal(t, int64(1), f.mesh.Stats().CircuitBreakerTrips)
	})

	t.Run("拓扑上报 open 状态", func(t *testing.T) {
		assert.Equal(t, BreakerOpen, f.mesh.Topology().Services["billing"].BreakerState)
	})

	t.Run("冷却后试探成功恢复 closed", func(t *testing.T) {
		f.fail.Store(false)
		time.Sleep(80 * time.Millisecond)

		_, err := call(f, "gateway")
		require.NoError(t, err)
		assert.Equal(t, BreakerClosed, f.mesh.Topology().Services["billing"].BreakerState)

		_, err = call(f, "gateway")
		assert.NoError(t, err)
	})
}

// ============================================================
// 选址与超时
// ============================================================

func TestCall_NoHealthyInstances(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.mesh.SetInstanceStatus("billing", "billing-1", StatusUnhealthy))

	_, err := call(f, "gateway")
	assert.ErrorIs(t, err, ErrNoHealthyInstances)

	t.Run("恢复健康后可再调用", func(t *testing.T) {
		require.NoError(t, f.mesh.SetInstanceStatus("billing", "billing-1", StatusHealthy))
		_, err := call(f, "gateway")
		assert.NoError(t, err)
	})

	t.Run("未知实例报错", func(t *testing.T) {
		err := f.mesh.SetInstanceStatus("billing", "ghost", StatusUnhealthy)
		assert.ErrorIs(t, err, ErrInstanceNotFound)
	})
}

func TestCall_NoHealthyInstances_BreakerUntouched(t *testing.T) {
	// 选不出实例时调用未发生，不应计入熔断失败：
	// 实例全部下线不能把熔断器推到 open，掩盖真正的原因
	f := newFixture(t, nil)
	require.NoError(t, f.mesh.ApplyTrafficPolicy("billing", TrafficPolicy{
		FailureThreshold: 3,
		ResetTimeout:     time.Minute,
	}))
	require.NoError(t, f.mesh.SetInstanceStatus("billing", "billing-1", StatusUnhealthy))

	for i := 0; i < 5; i++ {
		_, err := call(f, "gateway")
		assert.ErrorIs(t, err, ErrNoHealthyInstances)
	}
	assert.Equal(t, int64(0), f.hits.Load(), "传输层不应被触达")
	assert.Equal(t, int64(0), f.mesh.Stats().CircuitBreakerTrips)
	assert.Equal(t, BreakerClosed, f.mesh.Topology().Services["billing"].BreakerState)

	t.Run("恢复健康后立即可调用", func(t *testing.T) {
		require.NoError(t, f.mesh.SetInstanceStatus("billing", "billing-1", StatusHealthy))
		resp, err := call(f, "gateway")
		require.NoError(t, err)
		assert.Equal(t, 200, resp.Status)
	})
}

func TestCall_Timeout(t *testing.T) {
	f := newFixture(t, nil)
	f.transport.Handle("slow", func(ctx context.Context, req *CallRequest) (*CallResponse, error) {
		select {
		case <-time.After(5 * time.Second):
			return &CallResponse{Status: 200}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	require.NoError(t, f.mesh.RegisterService("slow", []Instance{{ID: "slow-1"}}))
	require.NoError(t, f.mesh.ApplyTrafficPolicy("slow", TrafficPolicy{Timeout: 30 * time.Millisecond}))

	begin := time.Now()
	_, err := f.mesh.Call(context.Background(), &CallRequest{Caller: "gateway", Target: "slow"})
	assert.Less(t, time.Since(begin), 2*time.Second)
	// 处理函数尊重取消时返回 DeadlineExceeded，否则计时器胜出返回 ErrCallTimeout
	assert.True(t, xerrors.Is(err, ErrCallTimeout) || xerrors.Is(err, context.DeadlineExceeded))
}

func TestBalancer_RoundRobin(t *testing.T) {
	b := newBalancer(BalancerRoundRobin)
	instances := []Instance{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	var picked []string
	for i := 0; i < 6; i++ {
		inst, ok := b.Pick(instances)
		require.True(t, ok)
		picked = append(picked, inst.ID)
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, picked)

	_, ok := b.Pick(nil)
	assert.False(t, ok)
}

func TestBalancer_Weighted(t *testing.T) {
	b := newBalancer(BalancerWeighted)
	instances := []Instance{{ID: "heavy", Weight: 9}, {ID: "light", Weight: 1}}

	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		inst, ok := b.Pick(instances)
		require.True(t, ok)
		counts[inst.ID]++
	}
	assert.Greater(t, counts["heavy"], counts["light"])
}

func TestBalancer_Random(t *testing.T) {
	b := newBalancer(BalancerRandom)
	inst, ok := b.Pick([]Instance{{ID: "only"}})
	require.True(t, ok)
	assert.Equal(t, "only", inst.ID)
}

// ============================================================
// 清理
// ============================================================

func TestMesh_Close(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.mesh.Close())

	_, err := call(f, "gateway")
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, f.mesh.Close(), "重复关闭无害")
}
