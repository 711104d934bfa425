package orchestrator

import (
	"fmt"
	"strings"

	"github.com/ceyewan/nexus/xerrors"
)

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = xerrors.New("orchestrator: invalid config")

	// ErrDuplicateService 服务名称已注册
	ErrDuplicateService = xerrors.New("orchestrator: duplicate service")

	// ErrCircularDependency 依赖图含环
	ErrCircularDependency = xerrors.New("orchestrator: circular dependency")

	// ErrUnknownService 服务未注册
	ErrUnknownService = xerrors.New("orchestrator: unknown service")

	// ErrUnknownDependency 依赖的服务未注册
	ErrUnknownDependency = xerrors.New("orchestrator: unknown dependency")

	// ErrNotStopped StartAll 仅在 stopped 状态下有效
	ErrNotStopped = xerrors.New("orchestrator: system is not stopped")

	// ErrAlreadyStarted 首次启动后注册被拒绝
	ErrAlreadyStarted = xerrors.New("orchestrator: already started")

	// ErrDependencyNotRunning 依赖未处于 running 状态。
	// 正确的启动顺序下不应触发，属于防御性不变量检查。
	ErrDependencyNotRunning = xerrors.New("orchestrator: dependency not running")

	// ErrStartupTimeout 服务启动超时
	ErrStartupTimeout = xerrors.New("orchestrator: startup timeout")

	// ErrShutdownTimeout 服务停止超时
	ErrShutdownTimeout = xerrors.New("orchestrator: shutdown timeout")

	// ErrClosed 编排器已关闭
	ErrClosed = xerrors.New("orchestrator: closed")
)

// CircularDependencyError 携带环路径的错误，Path 首尾为同一服务。
type CircularDependencyError struct {
	Path []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("orchestrator: circular dependency: %s", strings.Join(e.Path, " -> "))
}

// Unwrap 使 xerrors.Is(err, ErrCircularDependency) 成立。
func (e *CircularDependencyError) Unwrap() error {
	return ErrCircularDependency
}
