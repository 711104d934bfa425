// Package container 提供显式构造的组合根：从单份配置装配日志、指标、
// 连接器与三个核心组件（编排器、事件存储、服务网格），并以阶段化的
// 生命周期统一启停。组件间依赖通过构造参数传递，没有全局单例，
// 测试可以各自构造互不干扰的容器。
//
// ## 基本使用
//
//	c, err := container.New(&container.Config{
//	    Log:    &clog.Config{Level: "info", Format: "json"},
//	    Events: &container.EventsConfig{Backend: "memory"},
//	    Mesh:   &container.MeshConfig{},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	c.Orchestrator.Register(...)
//	c.Events.Append(...)
//	c.Mesh.Call(...)
//
// ## 从配置文件装配
//
//	loader, _ := config.New(config.WithConfigName("app"))
//	_ = loader.Load(ctx)
//	cfg, _ := container.LoadConfig(loader)
//	c, _ := container.New(cfg)
package container

import (
	"context"

	"github.com/ceyewan/nexus/clog"
	"github.com/ceyewan/nexus/config"
	"github.com/ceyewan/nexus/connector"
	"github.com/ceyewan/nexus/eventstore"
	"github.com/ceyewan/nexus/mesh"
	"github.com/ceyewan/nexus/metrics"
	"github.com/ceyewan/nexus/orchestrator"
	"github.com/ceyewan/nexus/xerrors"
)

// 事件存储后端
const (
	EventsBackendMemory = "memory"
	EventsBackendRedis  = "redis"
)

// 网格传输
const (
	MeshTransportInproc = "inproc"
	MeshTransportNATS   = "nats"
)

// EventsConfig 事件存储装配配置。
type EventsConfig struct {
	// Backend memory（默认）或 redis；redis 后端要求提供 Redis 连接器配置
	Backend string `json:"backend" yaml:"backend" mapstructure:"backend"`

	eventstore.Config `mapstructure:",squash"`
}

// MeshConfig 网格装配配置。
type MeshConfig struct {
	// Transport inproc（默认）或 nats；nats 传输要求提供 NATS 连接器配置
	Transport string `json:"transport" yaml:"transport" mapstructure:"transport"`

	mesh.Config `mapstructure:",squash"`
}

// Config 容器配置，nil 的节不装配对应组件。
type Config struct {
	Log          *clog.Config           `json:"log" yaml:"log" mapstructure:"log"`
	Metrics      *metrics.Config        `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
	Redis        *connector.RedisConfig `json:"redis" yaml:"redis" mapstructure:"redis"`
	NATS         *connector.NATSConfig  `json:"nats" yaml:"nats" mapstructure:"nats"`
	Orchestrator *orchestrator.Config   `json:"orchestrator" yaml:"orchestrator" mapstructure:"orchestrator"`
	Events       *EventsConfig          `json:"events" yaml:"events" mapstructure:"events"`
	Mesh         *MeshConfig            `json:"mesh" yaml:"mesh" mapstructure:"mesh"`
	HTTP         *HTTPConfig            `json:"http" yaml:"http" mapstructure:"http"`
}

// LoadConfig 从配置加载器反序列化容器配置。
func LoadConfig(loader config.Loader) (*Config, error) {
	var cfg Config
	if err := loader.Unmarshal(&cfg); err != nil {
		return nil, xerrors.Wrap(err, "unmarshal container config")
	}
	return &cfg, nil
}

// Container 应用容器：所有组件显式构造并持有。
type Container struct {
	Log          clog.Logger
	Meter        metrics.Meter
	Orchestrator orchestrator.Orchestrator
	Events       eventstore.Store
	Mesh         mesh.Mesh

	// MeshInproc 进程内网格传输，仅在 inproc 传输下非空，
	// 本进程内的服务用它注册处理函数。
	MeshInproc *mesh.InprocTransport

	cfg       *Config
	redisConn connector.RedisConnector
	natsConn  connector.NATSConnector
	lifecycle *LifecycleManager
	statusAPI *statusServer
}

// New 装配容器并启动所有生命周期对象。
// 任一环节失败时回收已启动的部分后返回错误。
func New(cfg *Config) (*Container, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	c := &Container{cfg: cfg, lifecycle: NewLifecycleManager()}

	if err := c.initLogger(); err != nil {
		return nil, err
	}
	if err := c.initMetrics(); err != nil {
		return nil, err
	}
	if err := c.initConnectors(); err != nil {
		return nil, err
	}
	if err := c.initComponents(); err != nil {
		c.Close()
		return nil, err
	}

	if err := c.lifecycle.StartAll(context.Background()); err != nil {
		c.Close()
		return nil, err
	}

	if cfg.HTTP != nil {
		c.statusAPI = newStatusServer(c, cfg.HTTP)
		c.lifecycle.Register("status-api", c.statusAPI)
		if err := c.statusAPI.Start(context.Background()); err != nil {
			c.Close()
			return nil, err
		}
	}

	c.Log.Info("container ready")
	return c, nil
}

func (c *Container) initLogger() error {
	logCfg := c.cfg.Log
	if logCfg == nil {
		logCfg = &clog.Config{Level: "info", Format: "json", Output: "stdout"}
	}
	logger, err := clog.New(logCfg)
	if err != nil {
		return xerrors.Wrap(err, "init logger")
	}
	c.Log = logger.WithNamespace("container")
	return nil
}

func (c *Container) initMetrics() error {
	metricsCfg := c.cfg.Metrics
	if metricsCfg == nil {
		c.Meter = metrics.Noop()
		return nil
	}
	meter, err := metrics.New(metricsCfg)
	if err != nil {
		return xerrors.Wrap(err, "init metrics")
	}
	c.Meter = meter
	return nil
}

func (c *Container) initConnectors() error {
	if c.cfg.Redis != nil {
		conn, err := connector.NewRedis(c.cfg.Redis, connector.WithLogger(c.Log))
		if err != nil {
			return xerrors.Wrap(err, "init redis connector")
		}
		c.redisConn = conn
		c.lifecycle.Register("redis", &connectorLifecycle{conn: conn})
	}
	if c.cfg.NATS != nil {
		conn, err := connector.NewNATS(c.cfg.NATS, connector.WithLogger(c.Log))
		if err != nil {
			return xerrors.Wrap(err, "init nats connector")
		}
		c.natsConn = conn
		c.lifecycle.Register("nats", &connectorLifecycle{conn: conn})
	}
	return nil
}

func (c *Container) initComponents() error {
	orch, err := orchestrator.New(c.cfg.Orchestrator,
		orchestrator.WithLogger(c.Log), orchestrator.WithMeter(c.Meter))
	if err != nil {
		return xerrors.Wrap(err, "init orchestrator")
	}
	c.Orchestrator = orch
	c.lifecycle.Register("orchestrator", &closerLifecycle{close: orch.Close})

	if c.cfg.Events != nil {
		if err := c.initEvents(); err != nil {
			return err
		}
	}
	if c.cfg.Mesh != nil {
		if err := c.initMesh(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Container) initEvents() error {
	opts := []eventstore.Option{
		eventstore.WithLogger(c.Log),
		eventstore.WithMeter(c.Meter),
	}

	var store eventstore.Store
	var err error
	switch c.cfg.Events.Backend {
	case EventsBackendRedis:
		if c.redisConn == nil {
			return ErrRedisConfigRequired
		}
		store, err = eventstore.NewRedis(&c.cfg.Events.Config, c.redisConn, opts...)
	case EventsBackendMemory, "":
		store, err = eventstore.NewMemory(&c.cfg.Events.Config, opts...)
	default:
		return xerrors.Wrapf(ErrUnsupportedBackend, "backend %q", c.cfg.Events.Backend)
	}
	if err != nil {
		return xerrors.Wrap(err, "init eventstore")
	}

	c.Events = store
	c.lifecycle.Register("eventstore", &closerLifecycle{close: store.Close})
	return nil
}

func (c *Container) initMesh() error {
	opts := []mesh.Option{
		mesh.WithLogger(c.Log),
		mesh.WithMeter(c.Meter),
	}

	switch c.cfg.Mesh.Transport {
	case MeshTransportNATS:
		if c.natsConn == nil {
			return ErrNATSConfigRequired
		}
		opts = append(opts, mesh.WithTransport(mesh.NewNATSTransport(c.natsConn, mesh.WithLogger(c.Log))))
	case MeshTransportInproc, "":
		c.MeshInproc = mesh.NewInprocTransport()
		opts = append(opts, mesh.WithTransport(c.MeshInproc))
	default:
		return xerrors.Wrapf(ErrUnsupportedTransport, "transport %q", c.cfg.Mesh.Transport)
	}

	m, err := mesh.New(&c.cfg.Mesh.Config, opts...)
	if err != nil {
		return xerrors.Wrap(err, "init mesh")
	}
	c.Mesh = m
	c.lifecycle.Register("mesh", &closerLifecycle{close: m.Close})
	return nil
}

// Close 逆序停止全部生命周期对象。幂等。
func (c *Container) Close() error {
	if c.lifecycle != nil {
		c.lifecycle.StopAll(context.Background())
	}
	if c.Meter != nil {
		_ = c.Meter.Shutdown(context.Background())
	}
	if c.Log != nil {
		c.Log.Flush()
	}
	return nil
}

// ============================================================
// 生命周期适配
// ============================================================

// connectorLifecycle 把连接器的 Connect/Close 适配为 Lifecycle。
type connectorLifecycle struct {
	conn connector.Connector
}

func (c *connectorLifecycle) Start(ctx context.Context) error { return c.conn.Connect(ctx) }
func (c *connectorLifecycle) Stop(ctx context.Context) error  { return c.conn.Close() }
func (c *connectorLifecycle) Phase() int                      { return PhaseConnector }

// closerLifecycle 只需收尾的组件：启动为空操作。
type closerLifecycle struct {
	close func() error
}

func (c *closerLifecycle) Start(ctx context.Context) error { return nil }
func (c *closerLifecycle) Stop(ctx context.Context) error  { return c.close() }
func (c *closerLifecycle) Phase() int                      { return PhaseComponent }
