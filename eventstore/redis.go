package eventstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/nexus/clog"
	"github.com/ceyewan/nexus/xerrors"
)

// Redis 键布局（prefix 来自 Config.Prefix）：
//
//	{prefix}events:{stream}   LIST   序列化事件，下标 = version-1
//	{prefix}snapshot:{stream} STRING 最新快照
//	{prefix}streams           SET    已知流 ID
//	{prefix}stats             HASH   events / snapshots 计数
//	{prefix}lease:{stream}    STRING 租约 token（SET NX PX）
type redisBackend struct {
	client     *redis.Client
	cfg        *Config
	serializer Serializer
}

func newRedisBackend(client *redis.Client, cfg *Config, serializer Serializer) *redisBackend {
	return &redisBackend{client: client, cfg: cfg, serializer: serializer}
}

func (b *redisBackend) eventsKey(streamID string) string {
	return b.cfg.Prefix + "events:" + streamID
}

func (b *redisBackend) snapshotKey(streamID string) string {
	return b.cfg.Prefix + "snapshot:" + streamID
}

func (b *redisBackend) streamsKey() string {
	return b.cfg.Prefix + "streams"
}

func (b *redisBackend) statsKey() string {
	return b.cfg.Prefix + "stats"
}

func (b *redisBackend) currentVersion(ctx context.Context, streamID string) (int64, error) {
	return b.client.LLen(ctx, b.eventsKey(streamID)).Result()
}

func (b *redisBackend) appendEvents(ctx context.Context, streamID string, events []Event) error {
	encoded := make([]any, len(events))
	for i, event := range events {
		data, err := b.serializer.Marshal(event)
		if err != nil {
			return xerrors.Wrapf(err, "encode event %d", event.Version)
		}
		encoded[i] = data
	}

	pipe := b.client.TxPipeline()
	pipe.RPush(ctx, b.eventsKey(streamID), encoded...)
	pipe.SAdd(ctx, b.streamsKey(), streamID)
	pipe.HIncrBy(ctx, b.statsKey(), "events", int64(len(events)))
	_, err := pipe.Exec(ctx)
	return err
}

func (b *redisBackend) readEvents(ctx context.Context, streamID string, fromVersion int64, maxCount int) ([]Event, int64, error) {
	key := b.eventsKey(streamID)
	current, err := b.client.LLen(ctx, key).Result()
	if err != nil {
		return nil, 0, err
	}
	if fromVersion < 1 {
		fromVersion = 1
	}
	if current == 0 || fromVersion > current {
		return nil, current, nil
	}

	stop := int64(-1)
	if maxCount > 0 {
		stop = fromVersion - 1 + int64(maxCount) - 1
	}
	raw, err := b.client.LRange(ctx, key, fromVersion-1, stop).Result()
	if err != nil {
		return nil, 0, err
	}

	events := make([]Event, len(raw))
	for i, item := range raw {
		if err := b.serializer.Unmarshal([]byte(item), &events[i]); err != nil {
			return nil, 0, xerrors.Wrapf(err, "decode event at index %d of %s", i, streamID)
		}
	}
	return events, current, nil
}

func (b *redisBackend) saveSnapshot(ctx context.Context, snap *Snapshot) error {
	data, err := b.serializer.Marshal(snap)
	if err != nil {
		return xerrors.Wrap(err, "encode snapshot")
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, b.snapshotKey(snap.StreamID), data, 0)
	pipe.HIncrBy(ctx, b.statsKey(), "snapshots", 1)
	_, err = pipe.Exec(ctx)
	return err
}

func (b *redisBackend) latestSnapshot(ctx context.Context, streamID string) (*Snapshot, error) {
	data, err := b.client.Get(ctx, b.snapshotKey(streamID)).Bytes()
	if err == redis.Nil {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := b.serializer.Unmarshal(data, &snap); err != nil {
		return nil, xerrors.Wrapf(err, "decode snapshot of %s", streamID)
	}
	return &snap, nil
}

// scanEvents 全量拉取后在内存过滤。跨流查询代价与数据量成正比，
// 适合运维检索而非热路径。
func (b *redisBackend) scanEvents(ctx context.Context, criteria QueryCriteria) ([]Event, error) {
	var streamIDs []string
	if criteria.StreamID != "" {
		streamIDs = []string{criteria.StreamID}
	} else {
		ids, err := b.client.SMembers(ctx, b.streamsKey()).Result()
		if err != nil {
			return nil, err
		}
		streamIDs = ids
	}

	var out []Event
	for _, streamID := range streamIDs {
		events, _, err := b.readEvents(ctx, streamID, 1, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, filterEvents(events, criteria)...)
	}
	return out, nil
}

func (b *redisBackend) stats(ctx context.Context) (Statistics, error) {
	streams, err := b.client.SCard(ctx, b.streamsKey()).Result()
	if err != nil {
		return Statistics{}, err
	}
	fields, err := b.client.HMGet(ctx, b.statsKey(), "events", "snapshots").Result()
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{Streams: streams}
	stats.Events = toInt64(fields[0])
	stats.Snapshots = toInt64(fields[1])
	return stats, nil
}

func toInt64(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// close 不关闭共享的 Redis 客户端，其生命周期由连接器管理。
func (b *redisBackend) close() error {
	return nil
}

// ============================================================
// Redis 租约
// ============================================================

const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// redisLease 基于 SET NX PX 的跨进程流租约。
// token 保证只有持有者能释放；TTL 防止崩溃进程永久占锁。
type redisLease struct {
	client *redis.Client
	cfg    *Config
	logger clog.Logger

	mu     sync.Mutex
	tokens map[string]string
}

func newRedisLease(client *redis.Client, cfg *Config, logger clog.Logger) *redisLease {
	return &redisLease{
		client: client,
		cfg:    cfg,
		logger: logger,
		tokens: make(map[string]string),
	}
}

func (l *redisLease) leaseKey(streamID string) string {
	return l.cfg.Prefix + "lease:" + streamID
}

func (l *redisLease) tryLock(ctx context.Context, streamID string) (bool, error) {
	randBytes := make([]byte, 16)
	if _, err := rand.Read(randBytes); err != nil {
		return false, xerrors.Wrap(err, "generate lease token")
	}
	token := hex.EncodeToString(randBytes)

	ok, err := l.client.SetNX(ctx, l.leaseKey(streamID), token, l.cfg.LeaseTTL).Result()
	if err != nil {
		return false, xerrors.Wrap(err, "acquire lease")
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[streamID] = token
	l.mu.Unlock()
	return true, nil
}

func (l *redisLease) unlock(ctx context.Context, streamID string) error {
	l.mu.Lock()
	token, ok := l.tokens[streamID]
	delete(l.tokens, streamID)
	l.mu.Unlock()
	if !ok {
		return xerrors.New("eventstore: lease not held")
	}

	result, err := l.client.Eval(ctx, unlockScript, []string{l.leaseKey(streamID)}, token).Result()
	if err != nil {
		return xerrors.Wrap(err, "release lease")
	}
	if result.(int64) == 0 {
		// TTL 过期后被他人获取，所有权已丢失
		l.logger.Warn("lease ownership lost", clog.String("stream", streamID))
	}
	return nil
}
