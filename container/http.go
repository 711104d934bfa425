package container

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ceyewan/nexus/clog"
	"github.com/ceyewan/nexus/orchestrator"
)

// HTTPConfig 状态 API 配置。
type HTTPConfig struct {
	// Addr 监听地址，如 ":8080"
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// EnablePrometheus 是否在 /metrics 暴露 Prometheus 指标
	EnablePrometheus bool `json:"enable_prometheus" yaml:"enable_prometheus" mapstructure:"enable_prometheus"`
}

// statusServer 只读观测端点：
//
//	GET /status      编排器系统状态
//	GET /topology    网格拓扑
//	GET /statistics  事件存储统计
//	GET /metrics     Prometheus 指标（可选）
type statusServer struct {
	c      *Container
	cfg    *HTTPConfig
	server *http.Server
}

func newStatusServer(c *Container, cfg *HTTPConfig) *statusServer {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &statusServer{c: c, cfg: cfg}

	router.GET("/status", s.handleStatus)
	router.GET("/topology", s.handleTopology)
	router.GET("/statistics", s.handleStatistics)
	if cfg.EnablePrometheus {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	s.server = &http.Server{Addr: cfg.Addr, Handler: router}
	return s
}

func (s *statusServer) handleStatus(ctx *gin.Context) {
	status := s.c.Orchestrator.SystemStatus()
	code := http.StatusOK
	if status.Verdict == orchestrator.VerdictError {
		code = http.StatusServiceUnavailable
	}
	ctx.JSON(code, status)
}

func (s *statusServer) handleTopology(ctx *gin.Context) {
	if s.c.Mesh == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "mesh not configured"})
		return
	}
	ctx.JSON(http.StatusOK, s.c.Mesh.Topology())
}

func (s *statusServer) handleStatistics(ctx *gin.Context) {
	if s.c.Events == nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "eventstore not configured"})
		return
	}
	stats, err := s.c.Events.Statistics(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, stats)
}

func (s *statusServer) Start(ctx context.Context) error {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.c.Log.Error("status api server error", clog.Error(err))
		}
	}()
	return nil
}

func (s *statusServer) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *statusServer) Phase() int { return PhaseService }
