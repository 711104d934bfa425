package mesh

import (
	"context"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ceyewan/nexus/clog"
	"github.com/ceyewan/nexus/connector"
	"github.com/ceyewan/nexus/xerrors"
)

const natsSubjectPrefix = "nexus.mesh."

// natsEnvelope NATS 应答的线上格式。
type natsEnvelope struct {
	Status  int    `msgpack:"status"`
	Payload []byte `msgpack:"payload"`
	Error   string `msgpack:"error,omitempty"`
}

// NATSTransport 基于 NATS request-reply 的跨进程传输。
// 主题为 nexus.mesh.{target}，请求与应答均以 MessagePack 编码。
type NATSTransport struct {
	conn   *nats.Conn
	logger clog.Logger

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewNATSTransport 创建 NATS 传输。不拥有底层连接。
func NewNATSTransport(conn connector.NATSConnector, opts ...Option) *NATSTransport {
	opt := applyOptions(opts...)
	return &NATSTransport{
		conn:   conn.GetConn(),
		logger: opt.logger.WithNamespace("nats"),
	}
}

func (t *NATSTransport) Do(ctx context.Context, instance Instance, req *CallRequest) (*CallResponse, error) {
	data, err := msgpack.Marshal(req)
	if err != nil {
		return nil, xerrors.Wrap(err, "encode request")
	}

	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	msg, err := t.conn.Request(natsSubjectPrefix+req.Target, data, timeout)
	if err != nil {
		if xerrors.Is(err, nats.ErrTimeout) {
			return nil, xerrors.Wrapf(ErrCallTimeout, "target %s", req.Target)
		}
		return nil, xerrors.Wrapf(err, "nats request to %s", req.Target)
	}

	var envelope natsEnvelope
	if err := msgpack.Unmarshal(msg.Data, &envelope); err != nil {
		return nil, xerrors.Wrap(err, "decode response")
	}
	if envelope.Error != "" {
		return nil, xerrors.New(envelope.Error)
	}
	return &CallResponse{
		Status:     envelope.Status,
		Payload:    envelope.Payload,
		InstanceID: instance.ID,
	}, nil
}

// Serve 在服务端订阅目标服务的主题并用处理函数应答。
// 同进程可多次调用以承载多个目的地。
func (t *NATSTransport) Serve(service string, handler Handler) error {
	sub, err := t.conn.Subscribe(natsSubjectPrefix+service, func(msg *nats.Msg) {
		var req CallRequest
		if err := msgpack.Unmarshal(msg.Data, &req); err != nil {
			t.respond(msg, &natsEnvelope{Error: "malformed request"})
			return
		}

		resp, err := handler(context.Background(), &req)
		if err != nil {
			t.respond(msg, &natsEnvelope{Error: err.Error()})
			return
		}
		if resp == nil {
			resp = &CallResponse{Status: 200}
		}
		t.respond(msg, &natsEnvelope{Status: resp.Status, Payload: resp.Payload})
	})
	if err != nil {
		return xerrors.Wrapf(err, "subscribe %s", service)
	}
	t.mu.Lock()
	t.subs = append(t.subs, sub)
	t.mu.Unlock()
	return nil
}

func (t *NATSTransport) respond(msg *nats.Msg, envelope *natsEnvelope) {
	data, err := msgpack.Marshal(envelope)
	if err != nil {
		t.logger.Error("encode response failed", clog.Error(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		t.logger.Error("respond failed", clog.Error(err))
	}
}

// Close 取消全部服务端订阅。
func (t *NATSTransport) Close() error {
	t.mu.Lock()
	subs := t.subs
	t.subs = nil
	t.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	return xerrors.Join(errs...)
}
