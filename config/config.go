// Package config 为 Nexus 提供统一的配置管理能力。
// 基于 Viper 实现，支持多源加载与热更新。
//
// 特性：
//   - 多源配置：YAML/JSON 文件、环境变量、.env 文件
//   - 优先级：环境变量 > .env > 配置文件
//   - 热更新：基于 fsnotify 监听文件变化并通知订阅者
//
// 基本使用：
//
//	loader := config.MustLoad(
//	    config.WithConfigName("nexus"),
//	    config.WithConfigPaths("./config"),
//	    config.WithEnvPrefix("NEXUS"),
//	)
//
//	var cfg AppConfig
//	if err := loader.Unmarshal(&cfg); err != nil {
//	    panic(err)
//	}
//
//	ch, _ := loader.Watch(ctx, "orchestrator.health_interval")
//	for event := range ch {
//	    fmt.Printf("配置变化: %s = %v\n", event.Key, event.Value)
//	}
package config

import (
	"context"
	"time"

	"github.com/ceyewan/nexus/xerrors"
)

// Loader 配置加载器核心接口。
type Loader interface {
	// Load 从所有来源加载配置并启动文件监听
	Load(ctx context.Context) error

	// Get 获取原始配置值
	Get(key string) any

	// Unmarshal 将整个配置反序列化到结构体
	Unmarshal(v any) error

	// UnmarshalKey 将指定 key 的配置反序列化到结构体
	UnmarshalKey(key string, v any) error

	// Watch 订阅指定 key 的变更事件，通过 ctx 取消订阅
	Watch(ctx context.Context, key string) (<-chan Event, error)

	// Validate 验证当前配置
	Validate() error
}

// Event 配置变更事件。
type Event struct {
	Key       string
	Value     any
	OldValue  any
	Source    string // 目前仅 "file"
	Timestamp time.Time
}

// New 创建配置加载器，需要调用 Load 后才可读取。
func New(opts ...Option) (Loader, error) {
	return newLoader(opts...)
}

// MustLoad 创建并加载配置，失败时 panic，仅用于初始化阶段。
func MustLoad(opts ...Option) Loader {
	l := xerrors.Must(New(opts...))
	if err := l.Load(context.Background()); err != nil {
		panic(err)
	}
	return l
}
