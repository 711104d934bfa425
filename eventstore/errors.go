package eventstore

import (
	"fmt"

	"github.com/ceyewan/nexus/xerrors"
)

var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.New("eventstore: config is nil")

	// ErrConnectorNil 连接器为空
	ErrConnectorNil = xerrors.New("eventstore: connector is nil")

	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = xerrors.New("eventstore: invalid config")

	// ErrEmptyStreamID 流 ID 为空
	ErrEmptyStreamID = xerrors.New("eventstore: empty stream id")

	// ErrNoEvents Append 的事件列表为空
	ErrNoEvents = xerrors.New("eventstore: no events to append")

	// ErrConcurrencyConflict 期望版本与实际版本不一致
	ErrConcurrencyConflict = xerrors.New("eventstore: concurrency conflict")

	// ErrLeaseTimeout 按流租约在 AcquireTimeout 内未能获取
	ErrLeaseTimeout = xerrors.New("eventstore: lease acquire timeout")

	// ErrSnapshotNotFound 流没有快照
	ErrSnapshotNotFound = xerrors.New("eventstore: snapshot not found")

	// ErrDuplicateProjection 投影名称已注册
	ErrDuplicateProjection = xerrors.New("eventstore: duplicate projection")

	// ErrProjectionNotFound 投影未注册
	ErrProjectionNotFound = xerrors.New("eventstore: projection not found")

	// ErrProjectionFailed 投影处理函数失败（ContinueOnError=false 时传播）
	ErrProjectionFailed = xerrors.New("eventstore: projection handler failed")

	// ErrClosed 存储已关闭
	ErrClosed = xerrors.New("eventstore: closed")
)

// ConcurrencyConflictError 携带期望/实际版本的冲突错误。
// 存储从不代替调用方重试，由调用方重读版本后决定。
type ConcurrencyConflictError struct {
	StreamID string
	Expected int64
	Actual   int64
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("eventstore: concurrency conflict on %s: expected version %d, actual %d",
		e.StreamID, e.Expected, e.Actual)
}

// Unwrap 使 xerrors.Is(err, ErrConcurrencyConflict) 成立。
func (e *ConcurrencyConflictError) Unwrap() error {
	return ErrConcurrencyConflict
}
