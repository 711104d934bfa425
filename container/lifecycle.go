package container

import (
	"context"
	"fmt"
	"sort"
)

// 启动阶段常量，Phase 越小越先启动
const (
	PhaseLogger    = 0
	PhaseConnector = 10
	PhaseComponent = 20
	PhaseService   = 30
)

// Lifecycle 可由容器管理生命周期的对象。
type Lifecycle interface {
	// Start 启动，按 Phase 升序调用
	Start(ctx context.Context) error
	// Stop 停止，按启动的逆序调用
	Stop(ctx context.Context) error
	// Phase 返回启动阶段
	Phase() int
}

// LifecycleItem 命名的生命周期对象。
type LifecycleItem struct {
	Name     string
	Instance Lifecycle
}

// LifecycleManager 按阶段排序启动、逆序停止注册的对象。
type LifecycleManager struct {
	items []LifecycleItem
}

func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{}
}

// Register 注册生命周期对象，同阶段按注册顺序启动。
func (m *LifecycleManager) Register(name string, instance Lifecycle) {
	m.items = append(m.items, LifecycleItem{Name: name, Instance: instance})
}

// StartAll 按阶段升序启动，任一失败立即返回 LifecycleError。
func (m *LifecycleManager) StartAll(ctx context.Context) error {
	sort.SliceStable(m.items, func(i, j int) bool {
		return m.items[i].Instance.Phase() < m.items[j].Instance.Phase()
	})

	for _, item := range m.items {
		if err := item.Instance.Start(ctx); err != nil {
			return &LifecycleError{
				Phase: item.Instance.Phase(),
				Name:  item.Name,
				Cause: err,
			}
		}
	}
	return nil
}

// StopAll 逆序停止，尽力而为，不中断。
func (m *LifecycleManager) StopAll(ctx context.Context) {
	for i := len(m.items) - 1; i >= 0; i-- {
		_ = m.items[i].Instance.Stop(ctx)
	}
}

// Items 返回当前注册的项目（已按最近一次 StartAll 的顺序排序）。
func (m *LifecycleManager) Items() []LifecycleItem {
	return m.items
}

// LifecycleError 携带失败阶段与名称的启动错误。
type LifecycleError struct {
	Phase int
	Name  string
	Cause error
}

func (e *LifecycleError) Error() string {
	return fmt.Sprintf("lifecycle error in phase %d [%s]: %v", e.Phase, e.Name, e.Cause)
}

func (e *LifecycleError) Unwrap() error {
	return e.Cause
}
