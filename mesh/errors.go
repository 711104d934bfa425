package mesh

import "github.com/ceyewan/nexus/xerrors"

var (
	// ErrInvalidConfig 配置无效
	ErrInvalidConfig = xerrors.New("mesh: invalid config")

	// ErrDuplicateService 目的地已注册
	ErrDuplicateService = xerrors.New("mesh: duplicate service")

	// ErrServiceNotFound 目的地未注册
	ErrServiceNotFound = xerrors.New("mesh: service not found")

	// ErrInstanceNotFound 实例不存在
	ErrInstanceNotFound = xerrors.New("mesh: instance not found")

	// ErrAccessDenied 调用方被安全策略拒绝
	ErrAccessDenied = xerrors.New("mesh: access denied")

	// ErrRateLimitExceeded 超过流量策略限额
	ErrRateLimitExceeded = xerrors.New("mesh: rate limit exceeded")

	// ErrCircuitOpen 熔断器打开，快速失败，不触达目的地
	ErrCircuitOpen = xerrors.New("mesh: circuit open")

	// ErrNoHealthyInstances 没有健康实例可选
	ErrNoHealthyInstances = xerrors.New("mesh: no healthy instances")

	// ErrCallTimeout 调用超过流量策略的超时预算
	ErrCallTimeout = xerrors.New("mesh: call timeout")

	// ErrNoHandler 进程内传输未注册目标处理函数
	ErrNoHandler = xerrors.New("mesh: no handler registered")

	// ErrClosed 网格已关闭
	ErrClosed = xerrors.New("mesh: closed")
)
