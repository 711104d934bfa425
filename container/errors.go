package container

import "github.com/ceyewan/nexus/xerrors"

// 装配错误
var (
	// ErrRedisConfigRequired 事件存储 redis 后端要求提供 Redis 连接器配置
	ErrRedisConfigRequired = xerrors.New("container: events redis backend requires redis config")

	// ErrNATSConfigRequired 网格 nats 传输要求提供 NATS 连接器配置
	ErrNATSConfigRequired = xerrors.New("container: mesh nats transport requires nats config")

	// ErrUnsupportedBackend 未知的事件存储后端
	ErrUnsupportedBackend = xerrors.New("container: unsupported events backend")

	// ErrUnsupportedTransport 未知的网格传输
	ErrUnsupportedTransport = xerrors.New("container: unsupported mesh transport")
)
