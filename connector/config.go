package connector

import "time"

// RedisConfig Redis 连接配置。
type RedisConfig struct {
	Name string `mapstructure:"name"` // 连接器名称 (默认: "default")

	Addr     string `mapstructure:"addr"`     // [必填] 连接地址，如 "127.0.0.1:6379"
	Password string `mapstructure:"password"` // [可选] 认证密码
	DB       int    `mapstructure:"db"`       // [可选] 数据库编号 (默认: 0)

	PoolSize     int           `mapstructure:"pool_size"`     // 连接池大小 (默认: 10)
	MinIdleConns int           `mapstructure:"min_idle_conns"` // 最小空闲连接数 (默认: 2)
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`  // 连接超时 (默认: 5s)
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`  // 读取超时 (默认: 3s)
	WriteTimeout time.Duration `mapstructure:"write_timeout"` // 写入超时 (默认: 3s)
}

func (c *RedisConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns <= 0 {
		c.MinIdleConns = 2
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

func (c *RedisConfig) validate() error {
	c.setDefaults()
	if c.Addr == "" {
		return ErrConfig
	}
	if c.DB < 0 {
		return ErrConfig
	}
	return nil
}

// NATSConfig NATS 连接配置。
type NATSConfig struct {
	Name string `mapstructure:"name"` // 连接器名称 (默认: "default")

	URL string `mapstructure:"url"` // [必填] 连接地址，如 "nats://127.0.0.1:4222"

	ReconnectWait time.Duration `mapstructure:"reconnect_wait"` // 重连等待 (默认: 2s)
	MaxReconnects int           `mapstructure:"max_reconnects"` // 最大重连次数 (默认: -1，无限)
	Timeout       time.Duration `mapstructure:"timeout"`        // 连接超时 (默认: 5s)
}

func (c *NATSConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = -1
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
}

func (c *NATSConfig) validate() error {
	c.setDefaults()
	if c.URL == "" {
		return ErrConfig
	}
	return nil
}
