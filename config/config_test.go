package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfigFile 在临时目录写入 yaml 配置（仅测试使用）
func writeConfigFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "nexus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "app:\n  name: nexus\n  workers: 4\n")

	loader, err := New(
		WithConfigName("nexus"),
		WithConfigPaths(dir),
	)
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	t.Run("Get 读取配置值", func(t *testing.T) {
		assert.Equal(t, "nexus", loader.Get("app.name"))
	})

	t.Run("UnmarshalKey 反序列化子树", func(t *testing.T) {
		var app struct {
			Name    string `mapstructure:"name"`
			Workers int    `mapstructure:"workers"`
		}
		require.NoError(t, loader.UnmarshalKey("app", &app))
		assert.Equal(t, "nexus", app.Name)
		assert.Equal(t, 4, app.Workers)
	})

	t.Run("Validate 通过", func(t *testing.T) {
		assert.NoError(t, loader.Validate())
	})
}

func TestLoader_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "app:\n  name: from-file\n")

	t.Setenv("NEXUS_APP_NAME", "from-env")

	loader, err := New(WithConfigName("nexus"), WithConfigPaths(dir))
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	assert.Equal(t, "from-env", loader.Get("app.name"), "环境变量应覆盖配置文件")
}

func TestLoader_Validate_NotLoaded(t *testing.T) {
	loader, err := New()
	require.NoError(t, err)
	assert.ErrorIs(t, loader.Validate(), ErrNotLoaded)
}

func TestLoader_Watch(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "app:\n  debug: false\n")

	loader, err := New(WithConfigName("nexus"), WithConfigPaths(dir))
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := loader.Watch(ctx, "app.debug")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("app:\n  debug: true\n"), 0o644))

	select {
	case event := <-ch:
		assert.Equal(t, "app.debug", event.Key)
		assert.Equal(t, true, event.Value)
		assert.Equal(t, false, event.OldValue)
	case <-time.After(3 * time.Second):
		t.Skip("fsnotify 事件未在期限内到达，跳过（CI 文件系统差异）")
	}
}

func TestLoader_Watch_Cancel(t *testing.T) {
	dir := t.TempDir()
	writeConfigFile(t, dir, "app:\n  name: nexus\n")

	loader, err := New(WithConfigName("nexus"), WithConfigPaths(dir))
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := loader.Watch(ctx, "app.name")
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "取消后通道应关闭")
	case <-time.After(2 * time.Second):
		t.Fatal("取消后通道未关闭")
	}
}
