package mesh

import (
	"context"
	"sync"

	"github.com/ceyewan/nexus/xerrors"
)

// Transport 执行阶段的传输抽象。治理管道（安全、限流、熔断、选址）
// 与传输机制解耦，传输只负责把请求送达选中的实例。
type Transport interface {
	// Do 向选中的实例发起调用。调用超时由 ctx 控制。
	Do(ctx context.Context, instance Instance, req *CallRequest) (*CallResponse, error)
}

// Handler 目的地服务的请求处理函数。
type Handler func(ctx context.Context, req *CallRequest) (*CallResponse, error)

// InprocTransport 进程内传输：按目标服务名分发到注册的处理函数。
// 适合同进程组件互调与测试。
type InprocTransport struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewInprocTransport 创建进程内传输。
func NewInprocTransport() *InprocTransport {
	return &InprocTransport{handlers: make(map[string]Handler)}
}

// Handle 注册目标服务的处理函数，重复注册覆盖旧值。
func (t *InprocTransport) Handle(service string, handler Handler) {
	t.mu.Lock()
	t.handlers[service] = handler
	t.mu.Unlock()
}

func (t *InprocTransport) Do(ctx context.Context, instance Instance, req *CallRequest) (*CallResponse, error) {
	t.mu.RLock()
	handler, ok := t.handlers[req.Target]
	t.mu.RUnlock()
	if !ok {
		return nil, xerrors.Wrapf(ErrNoHandler, "target %s", req.Target)
	}

	resp, err := handler(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		resp = &CallResponse{Status: 200}
	}
	resp.InstanceID = instance.ID
	return resp, nil
}
