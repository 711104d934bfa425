package eventstore

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/maypok86/otter/v2"

	"github.com/ceyewan/nexus/clog"
	"github.com/ceyewan/nexus/metrics"
	"github.com/ceyewan/nexus/xerrors"
)

// backend 持久化原语接口，由内存与 Redis 两种实现提供。
// 版本分配、租约、投影与快照编排等共享逻辑在 storeImpl 完成。
type backend interface {
	currentVersion(ctx context.Context, streamID string) (int64, error)
	// appendEvents 写入已分配好版本的事件，调用方保证持有流租约
	appendEvents(ctx context.Context, streamID string, events []Event) error
	// readEvents 返回 version >= fromVersion 的事件与流当前版本
	readEvents(ctx context.Context, streamID string, fromVersion int64, maxCount int) ([]Event, int64, error)
	saveSnapshot(ctx context.Context, snap *Snapshot) error
	latestSnapshot(ctx context.Context, streamID string) (*Snapshot, error)
	scanEvents(ctx context.Context, criteria QueryCriteria) ([]Event, error)
	stats(ctx context.Context) (Statistics, error)
	close() error
}

// rebuildEntry 重建缓存条目：version 处的序列化聚合状态。
type rebuildEntry struct {
	version int64
	state   []byte
}

type storeImpl struct {
	cfg        *Config
	backend    backend
	lease      lease
	logger     clog.Logger
	meter      metrics.Meter
	serializer Serializer

	snapshotter func(streamID string) Aggregate
	cache       *otter.Cache[string, rebuildEntry]

	projMu      sync.RWMutex
	projections map[string]*projection

	subMu       sync.Mutex
	subscribers map[uint64]chan Event
	nextSubID   uint64

	conflicts     atomic.Int64
	leaseTimeouts atomic.Int64
	closed        atomic.Bool

	appendsTotal   metrics.Counter
	conflictsTotal metrics.Counter
	leaseTimeoutsM metrics.Counter
	eventsTotal    metrics.Counter
	snapshotsTotal metrics.Counter
	appendDuration metrics.Histogram
}

func newStore(cfg *Config, b backend, l lease, opt *options) (*storeImpl, error) {
	s := &storeImpl{
		cfg:         cfg,
		backend:     b,
		lease:       l,
		logger:      opt.logger,
		meter:       opt.meter,
		serializer:  opt.serializer,
		snapshotter: opt.snapshotter,
		projections: make(map[string]*projection),
		subscribers: make(map[uint64]chan Event),
	}

	if cfg.CacheCapacity > 0 {
		cache, err := otter.New(&otter.Options[string, rebuildEntry]{
			MaximumSize: cfg.CacheCapacity,
		})
		if err != nil {
			return nil, xerrors.Wrap(err, "failed to build rebuild cache")
		}
		s.cache = cache
	}

	var err error
	if s.appendsTotal, err = s.meter.Counter(MetricAppendsTotal, "追加操作总数"); err != nil {
		return nil, err
	}
	if s.conflictsTotal, err = s.meter.Counter(MetricAppendConflicts, "乐观并发冲突数"); err != nil {
		return nil, err
	}
	if s.leaseTimeoutsM, err = s.meter.Counter(MetricLeaseTimeouts, "租约获取超时数"); err != nil {
		return nil, err
	}
	if s.eventsTotal, err = s.meter.Counter(MetricEventsTotal, "写入事件总数"); err != nil {
		return nil, err
	}
	if s.snapshotsTotal, err = s.meter.Counter(MetricSnapshotsTotal, "快照写入总数"); err != nil {
		return nil, err
	}
	if s.appendDuration, err = s.meter.Histogram(MetricAppendDuration, "追加耗时", metrics.WithUnit("s")); err != nil {
		return nil, err
	}

	return s, nil
}

// ============================================================
// Append
// ============================================================

func (s *storeImpl) Append(ctx context.Context, streamID string, events []EventData, opts ...AppendOption) ([]Event, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}
	if len(events) == 0 {
		return nil, ErrNoEvents
	}

	appendOpts := &appendOptions{}
	for _, opt := range opts {
		opt(appendOpts)
	}

	begin := time.Now()
	s.appendsTotal.Inc(ctx, metrics.L(LabelStream, streamID))

	if err := s.acquireLease(ctx, streamID); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.lease.unlock(context.Background(), streamID); err != nil {
			s.logger.ErrorContext(ctx, "lease release failed",
				clog.String("stream", streamID), clog.Error(err))
		}
	}()

	current, err := s.backend.currentVersion(ctx, streamID)
	if err != nil {
		return nil, xerrors.Wrapf(err, "read version of %s", streamID)
	}

	// 乐观并发检查：不一致时不产生任何写入
	if appendOpts.hasExpected && appendOpts.expectedVersion != current {
		s.conflicts.Add(1)
		s.conflictsTotal.Inc(ctx, metrics.L(LabelStream, streamID))
		return nil, &ConcurrencyConflictError{
			StreamID: streamID,
			Expected: appendOpts.expectedVersion,
			Actual:   current,
		}
	}

	now := time.Now()
	appended := make([]Event, len(events))
	for i, data := range events {
		appended[i] = Event{
			ID:       uuid.NewString(),
			StreamID: streamID,
			Version:  current + int64(i) + 1,
			Type:     data.Type,
			Payload:  data.Payload,
			Metadata: Metadata{
				Timestamp:     now,
				CorrelationID: data.CorrelationID,
				CausationID:   data.CausationID,
			},
		}
	}

	if err := s.backend.appendEvents(ctx, streamID, appended); err != nil {
		return nil, xerrors.Wrapf(err, "append to %s", streamID)
	}
	newVersion := current + int64(len(appended))

	if s.cache != nil {
		s.cache.Invalidate(streamID)
	}
	s.eventsTotal.Add(ctx, float64(len(appended)), metrics.L(LabelStream, streamID))
	s.appendDuration.Record(ctx, time.Since(begin).Seconds(), metrics.L(LabelStream, streamID))

	s.publish(appended)
	s.maybeSnapshot(ctx, streamID, current, newVersion)

	// 事件已提交，投影错误不回滚追加
	if err := s.fold(ctx, appended); err != nil {
		return appended, err
	}
	return appended, nil
}

// acquireLease 在 AcquireTimeout 预算内以 RetryInterval 退避重试获取租约。
func (s *storeImpl) acquireLease(ctx context.Context, streamID string) error {
	deadline := time.Now().Add(s.cfg.AcquireTimeout)
	for {
		ok, err := s.lease.tryLock(ctx, streamID)
		if err != nil {
			return xerrors.Wrapf(err, "acquire lease on %s", streamID)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			s.leaseTimeouts.Add(1)
			s.leaseTimeoutsM.Inc(ctx, metrics.L(LabelStream, streamID))
			return xerrors.Wrapf(ErrLeaseTimeout, "stream %s after %s", streamID, s.cfg.AcquireTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.RetryInterval):
		}
	}
}

// maybeSnapshot 追加越过 SnapshotFrequency 的倍数时写入一次快照。
func (s *storeImpl) maybeSnapshot(ctx context.Context, streamID string, oldVersion, newVersion int64) {
	freq := s.cfg.SnapshotFrequency
	if freq <= 0 || s.snapshotter == nil {
		return
	}
	if newVersion/freq == oldVersion/freq {
		return
	}

	agg := s.snapshotter(streamID)
	if agg == nil {
		return
	}
	version, _, err := s.foldAggregate(ctx, streamID, agg, true)
	if err != nil {
		s.logger.ErrorContext(ctx, "snapshot rebuild failed",
			clog.String("stream", streamID), clog.Error(err))
		return
	}

	state, err := s.serializer.Marshal(agg)
	if err != nil {
		s.logger.ErrorContext(ctx, "snapshot encode failed",
			clog.String("stream", streamID), clog.Error(err))
		return
	}
	snap := &Snapshot{
		StreamID:  streamID,
		Version:   version,
		State:     state,
		Timestamp: time.Now(),
	}
	if err := s.backend.saveSnapshot(ctx, snap); err != nil {
		s.logger.ErrorContext(ctx, "snapshot save failed",
			clog.String("stream", streamID), clog.Error(err))
		return
	}

	s.snapshotsTotal.Inc(ctx, metrics.L(LabelStream, streamID))
	s.logger.DebugContext(ctx, "snapshot taken",
		clog.String("stream", streamID), clog.Int64("version", version))
}

// ============================================================
// Read / Rebuild / Query
// ============================================================

func (s *storeImpl) Read(ctx context.Context, streamID string, fromVersion int64, maxCount int) (*ReadResult, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}

	events, current, err := s.backend.readEvents(ctx, streamID, fromVersion, maxCount)
	if err != nil {
		return nil, xerrors.Wrapf(err, "read %s", streamID)
	}

	result := &ReadResult{Events: events}
	if len(events) == 0 {
		result.IsEndOfStream = true
		result.NextVersion = current + 1
		return result, nil
	}
	last := events[len(events)-1].Version
	result.NextVersion = last + 1
	result.IsEndOfStream = last >= current
	return result, nil
}

func (s *storeImpl) Rebuild(ctx context.Context, streamID string, agg Aggregate, opts ...RebuildOption) (*RebuildResult, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if streamID == "" {
		return nil, ErrEmptyStreamID
	}
	if agg == nil {
		return nil, xerrors.New("eventstore: nil aggregate")
	}

	rebuildOpts := &rebuildOptions{}
	for _, opt := range opts {
		opt(rebuildOpts)
	}

	if s.cache != nil && !rebuildOpts.skipCache {
		current, err := s.backend.currentVersion(ctx, streamID)
		if err != nil {
			return nil, xerrors.Wrapf(err, "read version of %s", streamID)
		}
		if entry, ok := s.cache.GetIfPresent(streamID); ok && entry.version == current && current > 0 {
			if err := s.serializer.Unmarshal(entry.state, agg); err == nil {
				return &RebuildResult{Version: current, FromCache: true}, nil
			}
			// 解码失败按未命中处理，降级为实际折叠
			s.cache.Invalidate(streamID)
		}
	}

	version, usedSnapshot, err := s.foldAggregate(ctx, streamID, agg, !rebuildOpts.skipSnapshot)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && version > 0 {
		if state, err := s.serializer.Marshal(agg); err == nil {
			s.cache.Set(streamID, rebuildEntry{version: version, state: state})
		}
	}
	return &RebuildResult{Version: version, UsedSnapshot: usedSnapshot}, nil
}

// foldAggregate 从快照（可选）恢复起点后按序折叠事件，返回到达的版本。
func (s *storeImpl) foldAggregate(ctx context.Context, streamID string, agg Aggregate, useSnapshot bool) (int64, bool, error) {
	var from int64 = 1
	usedSnapshot := false

	if useSnapshot {
		snap, err := s.backend.latestSnapshot(ctx, streamID)
		switch {
		case err == nil:
			if uerr := s.serializer.Unmarshal(snap.State, agg); uerr != nil {
				return 0, false, xerrors.Wrapf(uerr, "decode snapshot of %s", streamID)
			}
			from = snap.Version + 1
			usedSnapshot = true
		case xerrors.Is(err, ErrSnapshotNotFound):
		default:
			return 0, false, xerrors.Wrapf(err, "load snapshot of %s", streamID)
		}
	}

	events, _, err := s.backend.readEvents(ctx, streamID, from, 0)
	if err != nil {
		return 0, false, xerrors.Wrapf(err, "read %s", streamID)
	}
	version := from - 1
	for _, event := range events {
		if err := agg.Apply(event); err != nil {
			return 0, false, xerrors.Wrapf(err, "apply event %d of %s", event.Version, streamID)
		}
		version = event.Version
	}
	return version, usedSnapshot, nil
}

func (s *storeImpl) Query(ctx context.Context, criteria QueryCriteria) ([]Event, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	limit := criteria.Limit
	if limit <= 0 {
		limit = s.cfg.QueryLimit
	}

	events, err := s.backend.scanEvents(ctx, criteria)
	if err != nil {
		return nil, xerrors.Wrap(err, "scan events")
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Metadata.Timestamp.Before(events[j].Metadata.Timestamp)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

// filterEvents 按查询条件过滤事件，两种后端共用。
func filterEvents(events []Event, criteria QueryCriteria) []Event {
	var out []Event
	for _, event := range events {
		if criteria.EventType != "" && event.Type != criteria.EventType {
			continue
		}
		if criteria.StreamID != "" && event.StreamID != criteria.StreamID {
			continue
		}
		if criteria.CorrelationID != "" && event.Metadata.CorrelationID != criteria.CorrelationID {
			continue
		}
		if !criteria.From.IsZero() && event.Metadata.Timestamp.Before(criteria.From) {
			continue
		}
		if !criteria.To.IsZero() && event.Metadata.Timestamp.After(criteria.To) {
			continue
		}
		out = append(out, event)
	}
	return out
}

// ============================================================
// 订阅 / 统计 / 关闭
// ============================================================

func (s *storeImpl) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		if _, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(ch)
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

// publish 向所有订阅者广播，缓冲满时丢弃。
func (s *storeImpl) publish(events []Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, event := range events {
		for _, ch := range s.subscribers {
			select {
			case ch <- event:
			default:
				s.logger.Warn("subscriber buffer full, event dropped",
					clog.String("stream", event.StreamID),
					clog.Int64("version", event.Version))
			}
		}
	}
}

func (s *storeImpl) Statistics(ctx context.Context) (Statistics, error) {
	stats, err := s.backend.stats(ctx)
	if err != nil {
		return Statistics{}, xerrors.Wrap(err, "backend stats")
	}
	stats.Conflicts = s.conflicts.Load()
	stats.LeaseTimeouts = s.leaseTimeouts.Load()
	return stats, nil
}

func (s *storeImpl) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.subMu.Lock()
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
	s.subMu.Unlock()

	if s.cache != nil {
		s.cache.StopAllGoroutines()
	}
	return s.backend.close()
}
