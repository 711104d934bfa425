package container

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/nexus/clog"
	"github.com/ceyewan/nexus/config"
	"github.com/ceyewan/nexus/eventstore"
	"github.com/ceyewan/nexus/mesh"
	"github.com/ceyewan/nexus/orchestrator"
	"github.com/ceyewan/nexus/xerrors"
)

func quietConfig() *Config {
	return &Config{
		Log: &clog.Config{Level: "error", Format: "json", Output: "stdout"},
	}
}

func TestContainer_New(t *testing.T) {
	t.Run("空配置也能装配核心组件", func(t *testing.T) {
		c, err := New(nil)
		require.NoError(t, err)
		defer c.Close()

		assert.NotNil(t, c.Log)
		assert.NotNil(t, c.Meter)
		assert.NotNil(t, c.Orchestrator)
		assert.Nil(t, c.Events, "未配置则不装配")
		assert.Nil(t, c.Mesh)
	})

	t.Run("装配事件存储与网格", func(t *testing.T) {
		cfg := quietConfig()
		cfg.Events = &EventsConfig{Backend: EventsBackendMemory}
		cfg.Mesh = &MeshConfig{}

		c, err := New(cfg)
		require.NoError(t, err)
		defer c.Close()

		require.NotNil(t, c.Events)
		require.NotNil(t, c.Mesh)

		// 走一遍最小调用链验证组件可用
		_, err = c.Events.Append(context.Background(), "boot", []eventstore.EventData{{Type: "Booted"}})
		assert.NoError(t, err)

		require.NotNil(t, c.MeshInproc)
		c.MeshInproc.Handle("self", func(ctx context.Context, req *mesh.CallRequest) (*mesh.CallResponse, error) {
			return &mesh.CallResponse{Status: 200}, nil
		})
		require.NoError(t, c.Mesh.RegisterService("self", []mesh.Instance{{ID: "self-1"}}))

		resp, err := c.Mesh.Call(context.Background(), &mesh.CallRequest{
			Caller: "test", Target: "self", Method: "GET", Path: "/ping",
		})
		require.NoError(t, err)
		assert.Equal(t, 200, resp.Status)
	})

	t.Run("redis 后端缺少连接器配置报错", func(t *testing.T) {
		cfg := quietConfig()
		cfg.Events = &EventsConfig{Backend: EventsBackendRedis}

		_, err := New(cfg)
		assert.ErrorIs(t, err, ErrRedisConfigRequired)
	})

	t.Run("未知后端与传输报错", func(t *testing.T) {
		cfg := quietConfig()
		cfg.Events = &EventsConfig{Backend: "cassandra"}
		_, err := New(cfg)
		assert.ErrorIs(t, err, ErrUnsupportedBackend)

		cfg = quietConfig()
		cfg.Mesh = &MeshConfig{Transport: "carrier-pigeon"}
		_, err = New(cfg)
		assert.ErrorIs(t, err, ErrUnsupportedTransport)
	})

	t.Run("重复关闭无害", func(t *testing.T) {
		c, err := New(quietConfig())
		require.NoError(t, err)
		assert.NoError(t, c.Close())
		assert.NoError(t, c.Close())
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	yaml := `
log:
  level: error
  format: json
  output: stdout
orchestrator:
  failure_threshold: 5
events:
  backend: memory
  snapshot_frequency: 10
mesh:
  balancer: weighted
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(yaml), 0o644))

	loader, err := config.New(config.WithConfigName("app"), config.WithConfigPath(dir))
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))

	cfg, err := LoadConfig(loader)
	require.NoError(t, err)
	require.NotNil(t, cfg.Orchestrator)
	assert.Equal(t, 5, cfg.Orchestrator.FailureThreshold)
	require.NotNil(t, cfg.Events)
	assert.Equal(t, EventsBackendMemory, cfg.Events.Backend)
	assert.Equal(t, int64(10), cfg.Events.SnapshotFrequency)
	require.NotNil(t, cfg.Mesh)
	assert.Equal(t, mesh.BalancerWeighted, cfg.Mesh.Balancer)

	c, err := New(cfg)
	require.NoError(t, err)
	defer c.Close()
	assert.NotNil(t, c.Events)
	assert.NotNil(t, c.Mesh)
}

func TestStatusAPI(t *testing.T) {
	cfg := quietConfig()
	cfg.Events = &EventsConfig{Backend: EventsBackendMemory}
	cfg.Mesh = &MeshConfig{}

	c, err := New(cfg)
	require.NoError(t, err)
	defer c.Close()

	server := newStatusServer(c, &HTTPConfig{Addr: ":0"})

	t.Run("GET /status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var status orchestrator.SystemStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, orchestrator.VerdictHealthy, status.Verdict)
	})

	t.Run("GET /topology", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/topology", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("GET /statistics", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/statistics", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var stats eventstore.Statistics
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	})
}

// ============================================================
// 生命周期管理器
// ============================================================

type fakeLifecycle struct {
	name     string
	phase    int
	startErr error
	log      *[]string
}

func (f *fakeLifecycle) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	*f.log = append(*f.log, "start:"+f.name)
	return nil
}

func (f *fakeLifecycle) Stop(ctx context.Context) error {
	*f.log = append(*f.log, "stop:"+f.name)
	return nil
}

func (f *fakeLifecycle) Phase() int { return f.phase }

func TestLifecycleManager(t *testing.T) {
	t.Run("按阶段升序启动逆序停止", func(t *testing.T) {
		var log []string
		m := NewLifecycleManager()
		m.Register("component", &fakeLifecycle{name: "component", phase: PhaseComponent, log: &log})
		m.Register("logger", &fakeLifecycle{name: "logger", phase: PhaseLogger, log: &log})
		m.Register("connector", &fakeLifecycle{name: "connector", phase: PhaseConnector, log: &log})

		require.NoError(t, m.StartAll(context.Background()))
		m.StopAll(context.Background())

		assert.Equal(t, []string{
			"start:logger", "start:connector", "start:component",
			"stop:component", "stop:connector", "stop:logger",
		}, log)
	})

	t.Run("同阶段按注册顺序", func(t *testing.T) {
		var log []string
		m := NewLifecycleManager()
		m.Register("a", &fakeLifecycle{name: "a", phase: PhaseComponent, log: &log})
		m.Register("b", &fakeLifecycle{name: "b", phase: PhaseComponent, log: &log})

		require.NoError(t, m.StartAll(context.Background()))
		assert.Equal(t, []string{"start:a", "start:b"}, log)
	})

	t.Run("启动失败返回带阶段与名称的错误", func(t *testing.T) {
		var log []string
		boom := xerrors.New("connect refused")
		m := NewLifecycleManager()
		m.Register("redis", &fakeLifecycle{name: "redis", phase: PhaseConnector, startErr: boom, log: &log})

		err := m.StartAll(context.Background())
		require.Error(t, err)

		var lcErr *LifecycleError
		require.True(t, xerrors.As(err, &lcErr))
		assert.Equal(t, PhaseConnector, lcErr.Phase)
		assert.Equal(t, "redis", lcErr.Name)
		assert.ErrorIs(t, err, boom)
	})
}
