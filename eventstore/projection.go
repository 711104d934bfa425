package eventstore

import (
	"context"
	"sync"

	"github.com/ceyewan/nexus/clog"
	"github.com/ceyewan/nexus/xerrors"
)

// projection 命名读模型：类型匹配的事件在每次追加后同步折叠进 state。
type projection struct {
	name            string
	handlers        map[string]ProjectionHandler
	continueOnError bool

	mu          sync.Mutex
	state       map[string]any
	lastEventID string
}

func (s *storeImpl) CreateProjection(name string, handlers map[string]ProjectionHandler, opts ...ProjectionOption) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if name == "" {
		return xerrors.New("eventstore: empty projection name")
	}
	if len(handlers) == 0 {
		return xerrors.New("eventstore: projection requires at least one handler")
	}

	projOpts := &projectionOptions{continueOnError: true}
	for _, opt := range opts {
		opt(projOpts)
	}

	copied := make(map[string]ProjectionHandler, len(handlers))
	for eventType, handler := range handlers {
		if handler == nil {
			return xerrors.Wrapf(ErrInvalidConfig, "nil handler for %s", eventType)
		}
		copied[eventType] = handler
	}

	s.projMu.Lock()
	defer s.projMu.Unlock()
	if _, exists := s.projections[name]; exists {
		return xerrors.Wrapf(ErrDuplicateProjection, "%s", name)
	}
	s.projections[name] = &projection{
		name:            name,
		handlers:        copied,
		continueOnError: projOpts.continueOnError,
		state:           make(map[string]any),
	}

	s.logger.Debug("projection created",
		clog.String("projection", name),
		clog.Int("handlers", len(copied)))
	return nil
}

func (s *storeImpl) Projection(name string) (*ProjectionView, error) {
	s.projMu.RLock()
	p, ok := s.projections[name]
	s.projMu.RUnlock()
	if !ok {
		return nil, xerrors.Wrapf(ErrProjectionNotFound, "%s", name)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	state := make(map[string]any, len(p.state))
	for k, v := range p.state {
		state[k] = v
	}
	return &ProjectionView{
		Name:                 p.name,
		State:                state,
		LastProcessedEventID: p.lastEventID,
	}, nil
}

// fold 将一批已提交的事件折叠进所有类型匹配的投影。
// ContinueOnError=false 的投影错误收集后返回给 Append 调用方。
func (s *storeImpl) fold(ctx context.Context, events []Event) error {
	s.projMu.RLock()
	projections := make([]*projection, 0, len(s.projections))
	for _, p := range s.projections {
		projections = append(projections, p)
	}
	s.projMu.RUnlock()
	if len(projections) == 0 {
		return nil
	}

	var collector xerrors.Collector
	for _, event := range events {
		for _, p := range projections {
			handler, ok := p.handlers[event.Type]
			if !ok {
				continue
			}

			p.mu.Lock()
			err := handler(p.state, event)
			if err == nil {
				p.lastEventID = event.ID
			}
			p.mu.Unlock()

			if err == nil {
				continue
			}
			wrapped := xerrors.Wrapf(ErrProjectionFailed, "%s on %s: %v", p.name, event.Type, err)
			if p.continueOnError {
				s.logger.ErrorContext(ctx, "projection handler failed, continuing",
					clog.String("projection", p.name),
					clog.String("event_type", event.Type),
					clog.Error(err))
				continue
			}
			collector.Collect(wrapped)
		}
	}
	return collector.Err()
}
