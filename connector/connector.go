// Package connector 为 Nexus 提供统一的连接管理能力。
//
// 核心特性：
//   - 统一抽象：所有连接器实现 Connector 接口
//   - 延迟连接：NewXXX() 创建连接器但不建立连接，Connect() 时才连接
//   - 幂等连接：Connect() 可安全重复调用
//   - 健康检查：HealthCheck() 更新缓存状态，IsHealthy() 无阻塞读取
//
// 资源所有权遵循"谁创建，谁负责释放"：组件（eventstore、mesh）仅借用
// connector，不调用其 Close()；释放顺序为先组件后连接器。
//
// 基本使用：
//
//	conn, err := connector.NewRedis(&connector.RedisConfig{
//	    Addr: "127.0.0.1:6379",
//	}, connector.WithLogger(logger))
//	if err != nil {
//	    panic(err)
//	}
//	defer conn.Close()
//
//	if err := conn.Connect(ctx); err != nil {
//	    panic(err)
//	}
//	client := conn.GetClient()
package connector

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

// Connector 定义所有连接器的通用行为，方法均并发安全。
type Connector interface {
	// Connect 建立连接，幂等，阻塞直到成功或失败
	Connect(ctx context.Context) error

	// Close 关闭连接并释放资源，幂等
	Close() error

	// HealthCheck 发送探测请求验证连接可用性，并更新缓存状态
	HealthCheck(ctx context.Context) error

	// IsHealthy 无阻塞返回最近一次 HealthCheck 的结果
	IsHealthy() bool

	// Name 返回连接实例名称
	Name() string
}

// RedisConnector Redis 连接器，GetClient 返回类型安全的客户端。
type RedisConnector interface {
	Connector
	GetClient() *redis.Client
}

// NATSConnector NATS 连接器。
type NATSConnector interface {
	Connector
	GetConn() *nats.Conn
}
