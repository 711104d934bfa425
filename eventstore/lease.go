package eventstore

import (
	"context"
	"sync"
)

// lease 按流互斥租约，串行化同一流的并发写入者。
// tryLock 非阻塞，获取失败返回 false；重试与超时由调用方控制。
type lease interface {
	tryLock(ctx context.Context, streamID string) (bool, error)
	unlock(ctx context.Context, streamID string) error
}

type memoryLease struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newMemoryLease() *memoryLease {
	return &memoryLease{held: make(map[string]struct{})}
}

func (l *memoryLease) tryLock(ctx context.Context, streamID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.held[streamID]; exists {
		return false, nil
	}
	l.held[streamID] = struct{}{}
	return true, nil
}

func (l *memoryLease) unlock(ctx context.Context, streamID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, streamID)
	return nil
}
