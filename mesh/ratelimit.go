package mesh

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiter 按 (caller, target) 键限流。MaxRequests <= 0 的策略不限流。
type limiter interface {
	allow(key string, policy TrafficPolicy) bool
	stop()
}

func newLimiter(cfg *Config) limiter {
	if cfg.LimiterMode == LimiterTokenBucket {
		return newTokenBucketLimiter(cfg.CleanupInterval, cfg.IdleTimeout)
	}
	return newSlidingWindowLimiter(cfg.CleanupInterval, cfg.IdleTimeout)
}

// ============================================================
// 滑动窗口
// ============================================================

type slidingWindow struct {
	hits     []time.Time
	lastUsed time.Time
}

// slidingWindowLimiter 每个键保留窗口内的请求时间戳。
// 精确计数，内存开销与窗口内请求数成正比。
type slidingWindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
	stopCh  chan struct{}
	once    sync.Once
}

func newSlidingWindowLimiter(cleanupInterval, idleTimeout time.Duration) *slidingWindowLimiter {
	l := &slidingWindowLimiter{
		windows: make(map[string]*slidingWindow),
		stopCh:  make(chan struct{}),
	}
	go l.cleanup(cleanupInterval, idleTimeout)
	return l
}

func (l *slidingWindowLimiter) allow(key string, policy TrafficPolicy) bool {
	if policy.MaxRequests <= 0 {
		return true
	}

	now := time.Now()
	cutoff := now.Add(-policy.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		w = &slidingWindow{}
		l.windows[key] = w
	}
	w.lastUsed = now

	// 裁掉窗口外的旧记录
	idx := 0
	for idx < len(w.hits) && !w.hits[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		w.hits = append(w.hits[:0], w.hits[idx:]...)
	}

	if len(w.hits) >= policy.MaxRequests {
		return false
	}
	w.hits = append(w.hits, now)
	return true
}

func (l *slidingWindowLimiter) cleanup(interval, idleTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-idleTimeout)
			l.mu.Lock()
			for key, w := range l.windows {
				if w.lastUsed.Before(cutoff) {
					delete(l.windows, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

func (l *slidingWindowLimiter) stop() {
	l.once.Do(func() { close(l.stopCh) })
}

// ============================================================
// 令牌桶
// ============================================================

type bucketEntry struct {
	lim         *rate.Limiter
	maxRequests int
	window      time.Duration
	lastUsed    time.Time
}

// tokenBucketLimiter 基于 golang.org/x/time/rate：窗口平均速率生成令牌，
// 桶容量为 MaxRequests，允许突发但长期速率受限。
type tokenBucketLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucketEntry
	stopCh  chan struct{}
	once    sync.Once
}

func newTokenBucketLimiter(cleanupInterval, idleTimeout time.Duration) *tokenBucketLimiter {
	l := &tokenBucketLimiter{
		buckets: make(map[string]*bucketEntry),
		stopCh:  make(chan struct{}),
	}
	go l.cleanup(cleanupInterval, idleTimeout)
	return l
}

func (l *tokenBucketLimiter) allow(key string, policy TrafficPolicy) bool {
	if policy.MaxRequests <= 0 {
		return true
	}

	l.mu.Lock()
	entry, ok := l.buckets[key]
	// 策略变化时重建令牌桶，新限额对活跃键立即生效
	if !ok || entry.maxRequests != policy.MaxRequests || entry.window != policy.Window {
		perSecond := float64(policy.MaxRequests) / policy.Window.Seconds()
		entry = &bucketEntry{
			lim:         rate.NewLimiter(rate.Limit(perSecond), policy.MaxRequests),
			maxRequests: policy.MaxRequests,
			window:      policy.Window,
		}
		l.buckets[key] = entry
	}
	entry.lastUsed = time.Now()
	l.mu.Unlock()

	return entry.lim.Allow()
}

func (l *tokenBucketLimiter) cleanup(interval, idleTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-idleTimeout)
			l.mu.Lock()
			for key, entry := range l.buckets {
				if entry.lastUsed.Before(cutoff) {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

func (l *tokenBucketLimiter) stop() {
	l.once.Do(func() { close(l.stopCh) })
}
