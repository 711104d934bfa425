package mesh

import (
	"github.com/sony/gobreaker/v2"

	"github.com/ceyewan/nexus/xerrors"
)

// sonyBreaker 基于 sony/gobreaker 的熔断器适配。
// MaxRequests=1 与内置实现的"单试探"语义一致。
type sonyBreaker struct {
	cb *gobreaker.TwoStepCircuitBreaker[any]
}

func newSonyBreaker(name string, policy TrafficPolicy, onTrip func()) *sonyBreaker {
	threshold := uint32(policy.FailureThreshold)
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     policy.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
	}
	if onTrip != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				onTrip()
			}
		}
	}
	return &sonyBreaker{cb: gobreaker.NewTwoStepCircuitBreaker[any](settings)}
}

func (b *sonyBreaker) allow() (func(bool), func(), error) {
	done, err := b.cb.Allow()
	if err != nil {
		if xerrors.Is(err, gobreaker.ErrOpenState) || xerrors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, nil, xerrors.Wrap(ErrCircuitOpen, err.Error())
		}
		return nil, nil, err
	}
	abort := func() {
		// gobreaker 没有中性归还名额的接口：closed 状态直接丢弃回执，
		// 不产生失败计数；half-open 名额按试探失败归还，
		// 避免熔断器永久停留在 half-open。
		if b.cb.State() == gobreaker.StateHalfOpen {
			done(false)
		}
	}
	return done, abort, nil
}

func (b *sonyBreaker) state() BreakerState {
	switch b.cb.State() {
	case gobreaker.StateOpen:
		return BreakerOpen
	case gobreaker.StateHalfOpen:
		return BreakerHalfOpen
	default:
		return BreakerClosed
	}
}
