package connector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisConfig_Validate(t *testing.T) {
	t.Run("缺少地址报错", func(t *testing.T) {
		cfg := &RedisConfig{}
		assert.ErrorIs(t, cfg.validate(), ErrConfig)
	})

	t.Run("默认值填充", func(t *testing.T) {
		cfg := &RedisConfig{Addr: "127.0.0.1:6379"}
		require.NoError(t, cfg.validate())
		assert.Equal(t, "default", cfg.Name)
		assert.Equal(t, 10, cfg.PoolSize)
		assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	})
}

func TestNATSConfig_Validate(t *testing.T) {
	t.Run("缺少 URL 报错", func(t *testing.T) {
		cfg := &NATSConfig{}
		assert.ErrorIs(t, cfg.validate(), ErrConfig)
	})

	t.Run("默认值填充", func(t *testing.T) {
		cfg := &NATSConfig{URL: "nats://127.0.0.1:4222"}
		require.NoError(t, cfg.validate())
		assert.Equal(t, -1, cfg.MaxReconnects)
		assert.Equal(t, 2*time.Second, cfg.ReconnectWait)
	})
}

func TestNewRedis(t *testing.T) {
	t.Run("nil 配置报错", func(t *testing.T) {
		_, err := NewRedis(nil)
		assert.Error(t, err)
	})

	t.Run("创建不触发连接", func(t *testing.T) {
		conn, err := NewRedis(&RedisConfig{Addr: "127.0.0.1:1"})
		require.NoError(t, err)
		assert.False(t, conn.IsHealthy())
		assert.NotNil(t, conn.GetClient())
		_ = conn.Close()
	})
}

func TestNewNATS(t *testing.T) {
	t.Run("创建不触发连接", func(t *testing.T) {
		conn, err := NewNATS(&NATSConfig{URL: "nats://127.0.0.1:1"})
		require.NoError(t, err)
		assert.False(t, conn.IsHealthy())
		assert.Nil(t, conn.GetConn())
		_ = conn.Close()
	})
}
