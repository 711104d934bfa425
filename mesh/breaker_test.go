package mesh

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(t *testing.T, threshold int, resetTimeout time.Duration) *internalBreaker {
	t.Helper()
	b := newBreaker(BreakerDriverInternal, "test", TrafficPolicy{
		FailureThreshold: threshold,
		ResetTimeout:     resetTimeout,
	}, nil)
	return b.(*internalBreaker)
}

func TestBreaker_StateMachine(t *testing.T) {
	t.Run("初始为 closed", func(t *testing.T) {
		b := newTestBreaker(t, 3, time.Minute)
		assert.Equal(t, BreakerClosed, b.state())
	})

	t.Run("连续失败达到阈值后打开", func(t *testing.T) {
		b := newTestBreaker(t, 3, time.Minute)
		for i := 0; i < 3; i++ {
			done, _, err := b.allow()
			require.NoError(t, err)
			done(false)
		}
		assert.Equal(t, BreakerOpen, b.state())

		_, _, err := b.allow()
		assert.ErrorIs(t, err, ErrCircuitOpen)
	})

	t.Run("成功重置失败计数", func(t *testing.T) {
		b := newTestBreaker(t, 3, time.Minute)
		for i := 0; i < 2; i++ {
			done, _, _ := b.allow()
			done(false)
		}
		done, _, _ := b.allow()
		done(true)
		// 计数已清零，再失败两次不应打开
		for i := 0; i < 2; i++ {
			done, _, _ := b.allow()
			done(false)
		}
		assert.Equal(t, BreakerClosed, b.state())
	})

	t.Run("冷却后进入 half-open 试探成功则关闭", func(t *testing.T) {
		b := newTestBreaker(t, 1, 20*time.Millisecond)
		done, _, _ := b.allow()
		done(false)
		require.Equal(t, BreakerOpen, b.state())

		time.Sleep(30 * time.Millisecond)
		trial, _, err := b.allow()
		require.NoError(t, err)
		assert.Equal(t, BreakerHalfOpen, b.state())

		trial(true)
		assert.Equal(t, BreakerClosed, b.state())
	})

	t.Run("half-open 试探失败重新打开", func(t *testing.T) {
		b := newTestBreaker(t, 1, 20*time.Millisecond)
		done, _, _ := b.allow()
		done(false)

		time.Sleep(30 * time.Millisecond)
		trial, _, err := b.allow()
		require.NoError(t, err)
		trial(false)
		assert.Equal(t, BreakerOpen, b.state())

		_, _, err = b.allow()
		assert.ErrorIs(t, err, ErrCircuitOpen)
	})
}

func TestBreaker_Abort(t *testing.T) {
	t.Run("closed 状态放弃不计失败", func(t *testing.T) {
		b := newTestBreaker(t, 2, time.Minute)
		for i := 0; i < 5; i++ {
			_, abort, err := b.allow()
			require.NoError(t, err)
			abort()
		}
		assert.Equal(t, BreakerClosed, b.state())
		assert.Equal(t, 0, b.failures)
	})

	t.Run("half-open 放弃归还试探名额", func(t *testing.T) {
		b := newTestBreaker(t, 1, 10*time.Millisecond)
		done, _, _ := b.allow()
		done(false)
		time.Sleep(20 * time.Millisecond)

		_, abort, err := b.allow()
		require.NoError(t, err)
		require.Equal(t, BreakerHalfOpen, b.state())
		abort()

		// 名额已归还，仍停留在 half-open，下一个调用方可重新试探
		assert.Equal(t, BreakerHalfOpen, b.state())
		trial, _, err := b.allow()
		require.NoError(t, err)
		trial(true)
		assert.Equal(t, BreakerClosed, b.state())
	})

	t.Run("gobreaker closed 状态放弃不计失败", func(t *testing.T) {
		b := newBreaker(BreakerDriverGobreaker, "sony-abort", TrafficPolicy{
			FailureThreshold: 2,
			ResetTimeout:     time.Minute,
		}, nil)
		for i := 0; i < 5; i++ {
			_, abort, err := b.allow()
			require.NoError(t, err)
			abort()
		}
		assert.Equal(t, BreakerClosed, b.state())

		// 仍可正常放行并记录结果
		done, _, err := b.allow()
		require.NoError(t, err)
		done(true)
		assert.Equal(t, BreakerClosed, b.state())
	})
}

func TestBreaker_SingleHalfOpenTrial(t *testing.T) {
	b := newTestBreaker(t, 1, 10*time.Millisecond)
	done, _, _ := b.allow()
	done(false)
	time.Sleep(20 * time.Millisecond)

	// 冷却已过，并发竞争 half-open 名额，只允许一个试探
	const callers = 32
	var admitted atomic.Int64
	var rejected atomic.Int64
	var wg sync.WaitGroup
	var trialDone func(bool)
	var trialMu sync.Mutex

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			done, _, err := b.allow()
			if err != nil {
				rejected.Add(1)
				return
			}
			admitted.Add(1)
			trialMu.Lock()
			trialDone = done
			trialMu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), admitted.Load())
	assert.Equal(t, int64(callers-1), rejected.Load())

	trialDone(true)
	assert.Equal(t, BreakerClosed, b.state())
}

func TestBreaker_TripCallback(t *testing.T) {
	var trips atomic.Int64
	b := newBreaker(BreakerDriverInternal, "cb", TrafficPolicy{
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
	}, func() { trips.Add(1) })

	for i := 0; i < 2; i++ {
		done, _, err := b.allow()
		require.NoError(t, err)
		done(false)
	}
	assert.Equal(t, int64(1), trips.Load())
}

func TestBreaker_GobreakerDriver(t *testing.T) {
	b := newBreaker(BreakerDriverGobreaker, "sony", TrafficPolicy{
		FailureThreshold: 3,
		ResetTimeout:     time.Minute,
	}, nil)

	require.Equal(t, BreakerClosed, b.state())
	for i := 0; i < 3; i++ {
		done, _, err := b.allow()
		require.NoError(t, err)
		done(false)
	}
	assert.Equal(t, BreakerOpen, b.state())

	_, _, err := b.allow()
	assert.ErrorIs(t, err, ErrCircuitOpen)
}
