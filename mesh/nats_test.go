package mesh

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/nexus/clog"
	"github.com/ceyewan/nexus/connector"
)

func newTestNATSTransport(t *testing.T) *NATSTransport {
	t.Helper()
	conn, err := connector.NewNATS(&connector.NATSConfig{URL: "nats://127.0.0.1:4222"})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		t.Skipf("NATS not available, skipping: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewNATSTransport(conn, WithLogger(clog.Discard()))
}

func TestNATSTransport_Roundtrip(t *testing.T) {
	transport := newTestNATSTransport(t)
	defer transport.Close()

	require.NoError(t, transport.Serve("echo", func(ctx context.Context, req *CallRequest) (*CallResponse, error) {
		return &CallResponse{Status: 200, Payload: req.Payload}, nil
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := transport.Do(ctx, Instance{ID: "echo-1"}, &CallRequest{
		Caller: "test", Target: "echo", Payload: []byte("ping"),
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, []byte("ping"), resp.Payload)
	assert.Equal(t, "echo-1", resp.InstanceID)
}

func TestNATSTransport_ConcurrentServe(t *testing.T) {
	transport := newTestNATSTransport(t)

	// 一个进程承载多个目的地，并发注册订阅
	const services = 16
	var wg sync.WaitGroup
	for i := 0; i < services; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("svc-%d", i)
			assert.NoError(t, transport.Serve(name, func(ctx context.Context, req *CallRequest) (*CallResponse, error) {
				return &CallResponse{Status: 200}, nil
			}))
		}(i)
	}
	wg.Wait()

	transport.mu.Lock()
	assert.Len(t, transport.subs, services)
	transport.mu.Unlock()

	assert.NoError(t, transport.Close())
}
