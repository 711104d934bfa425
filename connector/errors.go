package connector

import "github.com/ceyewan/nexus/xerrors"

var (
	// ErrConfig 配置无效
	ErrConfig = xerrors.New("connector: invalid config")

	// ErrNotConnected 尚未建立连接
	ErrNotConnected = xerrors.New("connector: not connected")

	// ErrHealthCheck 健康检查失败
	ErrHealthCheck = xerrors.New("connector: health check failed")
)
