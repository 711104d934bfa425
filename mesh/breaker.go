package mesh

import (
	"sync"
	"time"
)

// breaker 按目的地的熔断器。allow 放行时返回两个回执，恰好调用其一：
// done 记录调用结果，abort 表示调用未发生（如选不出实例），归还名额
// 且不影响失败计数。拒绝时返回 ErrCircuitOpen。状态转移对并发调用方
// 原子：half-open 同一时刻只放行一个试探调用。
type breaker interface {
	allow() (done func(success bool), abort func(), err error)
	state() BreakerState
}

// newBreaker 按配置选择熔断器实现。
func newBreaker(driver, name string, policy TrafficPolicy, onTrip func()) breaker {
	if driver == BreakerDriverGobreaker {
		return newSonyBreaker(name, policy, onTrip)
	}
	return &internalBreaker{
		st:           BreakerClosed,
		threshold:    policy.FailureThreshold,
		resetTimeout: policy.ResetTimeout,
		onTrip:       onTrip,
	}
}

type internalBreaker struct {
	mu           sync.Mutex
	st           BreakerState
	threshold    int
	resetTimeout time.Duration
	failures     int
	openedAt     time.Time
	trialActive  bool
	onTrip       func()
}

func (b *internalBreaker) allow() (func(bool), func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.st {
	case BreakerOpen:
		if time.Since(b.openedAt) < b.resetTimeout {
			return nil, nil, ErrCircuitOpen
		}
		b.st = BreakerHalfOpen
		b.trialActive = true
		return b.trialDone, b.trialAbort, nil
	case BreakerHalfOpen:
		// 试探名额已被占用，并发调用方直接拒绝
		if b.trialActive {
			return nil, nil, ErrCircuitOpen
		}
		b.trialActive = true
		return b.trialDone, b.trialAbort, nil
	default:
		return b.closedDone, func() {}, nil
	}
}

func (b *internalBreaker) closedDone(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.st != BreakerClosed {
		return
	}
	if success {
		b.failures = 0
		return
	}
	b.failures++
	if b.failures >= b.threshold {
		b.trip()
	}
}

func (b *internalBreaker) trialDone(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialActive = false
	if b.st != BreakerHalfOpen {
		return
	}
	if success {
		b.st = BreakerClosed
		b.failures = 0
		return
	}
	b.trip()
}

// trialAbort 归还 half-open 试探名额且不记录结果，
// 熔断器停留在 half-open，后续调用方可重新试探。
func (b *internalBreaker) trialAbort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trialActive = false
}

// trip 调用方必须持有 b.mu。
func (b *internalBreaker) trip() {
	b.st = BreakerOpen
	b.openedAt = time.Now()
	b.failures = 0
	b.trialActive = false
	if b.onTrip != nil {
		b.onTrip()
	}
}

func (b *internalBreaker) state() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	// open 且冷却已过的状态在下一次 allow 时才真正转移，
	// 快照按当前存储的状态上报
	return b.st
}
