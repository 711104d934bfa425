package eventstore

import (
	"context"
	"sync"
)

// memoryStream 单个流的内存存储：事件切片下标 = version-1。
type memoryStream struct {
	events   []Event
	snapshot *Snapshot
}

type memoryBackend struct {
	mu        sync.RWMutex
	streams   map[string]*memoryStream
	events    int64
	snapshots int64
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{streams: make(map[string]*memoryStream)}
}

func (b *memoryBackend) currentVersion(ctx context.Context, streamID string) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	stream, ok := b.streams[streamID]
	if !ok {
		return 0, nil
	}
	return int64(len(stream.events)), nil
}

func (b *memoryBackend) appendEvents(ctx context.Context, streamID string, events []Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	stream, ok := b.streams[streamID]
	if !ok {
		stream = &memoryStream{}
		b.streams[streamID] = stream
	}
	stream.events = append(stream.events, events...)
	b.events += int64(len(events))
	return nil
}

func (b *memoryBackend) readEvents(ctx context.Context, streamID string, fromVersion int64, maxCount int) ([]Event, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stream, ok := b.streams[streamID]
	if !ok {
		return nil, 0, nil
	}
	current := int64(len(stream.events))
	if fromVersion < 1 {
		fromVersion = 1
	}
	if fromVersion > current {
		return nil, current, nil
	}

	end := current
	if maxCount > 0 && fromVersion+int64(maxCount)-1 < end {
		end = fromVersion + int64(maxCount) - 1
	}
	// 拷贝切片避免调用方观察到后续追加
	out := make([]Event, end-fromVersion+1)
	copy(out, stream.events[fromVersion-1:end])
	return out, current, nil
}

func (b *memoryBackend) saveSnapshot(ctx context.Context, snap *Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	stream, ok := b.streams[snap.StreamID]
	if !ok {
		stream = &memoryStream{}
		b.streams[snap.StreamID] = stream
	}
	stream.snapshot = snap
	b.snapshots++
	return nil
}

func (b *memoryBackend) latestSnapshot(ctx context.Context, streamID string) (*Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stream, ok := b.streams[streamID]
	if !ok || stream.snapshot == nil {
		return nil, ErrSnapshotNotFound
	}
	snap := *stream.snapshot
	return &snap, nil
}

func (b *memoryBackend) scanEvents(ctx context.Context, criteria QueryCriteria) ([]Event, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	if criteria.StreamID != "" {
		if stream, ok := b.streams[criteria.StreamID]; ok {
			out = filterEvents(stream.events, criteria)
		}
		return out, nil
	}
	for _, stream := range b.streams {
		out = append(out, filterEvents(stream.events, criteria)...)
	}
	return out, nil
}

func (b *memoryBackend) stats(ctx context.Context) (Statistics, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return Statistics{
		Streams:   int64(len(b.streams)),
		Events:    b.events,
		Snapshots: b.snapshots,
	}, nil
}

func (b *memoryBackend) close() error {
	return nil
}
