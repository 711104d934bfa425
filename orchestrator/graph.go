package orchestrator

import (
	"sort"

	"github.com/ceyewan/nexus/xerrors"
)

// graph 依赖图，由注册表派生，注册表变化后在首次启动前重新计算。
type graph struct {
	descriptors map[string]Descriptor
}

// computeOrder 深度优先遍历计算启动顺序。
// 使用临时标记集检测回边，发现环时返回 *CircularDependencyError 并给出环路径；
// 成功时返回的顺序保证每个服务出现在其全部依赖之后，
// 兄弟节点按 Priority 升序、同优先级按名称升序，保证确定性。
func (g *graph) computeOrder() ([]string, error) {
	for name, desc := range g.descriptors {
		for _, dep := range desc.Dependencies {
			if _, ok := g.descriptors[dep]; !ok {
				return nil, xerrors.Wrapf(ErrUnknownDependency, "%s depends on %s", name, dep)
			}
		}
	}

	const (
		unmarked = iota
		temporary
		permanent
	)

	marks := make(map[string]int, len(g.descriptors))
	order := make([]string, 0, len(g.descriptors))
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		switch marks[name] {
		case permanent:
			return nil
		case temporary:
			// 回边：stack 中从 name 第一次出现到当前位置即为环
			cycle := extractCycle(stack, name)
			return &CircularDependencyError{Path: cycle}
		}

		marks[name] = temporary
		stack = append(stack, name)

		for _, dep := range g.sorted(g.descriptors[name].Dependencies) {
			if err := visit(dep); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		marks[name] = permanent
		order = append(order, name)
		return nil
	}

	for _, name := range g.sortedNames() {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// sortedNames 返回全部服务名，按 (Priority, Name) 升序。
func (g *graph) sortedNames() []string {
	names := make([]string, 0, len(g.descriptors))
	for name := range g.descriptors {
		names = append(names, name)
	}
	return g.sorted(names)
}

func (g *graph) sorted(names []string) []string {
	out := append([]string(nil), names...)
	sort.Slice(out, func(i, j int) bool {
		pi, pj := g.descriptors[out[i]].Priority, g.descriptors[out[j]].Priority
		if pi != pj {
			return pi < pj
		}
		return out[i] < out[j]
	})
	return out
}

// extractCycle 从访问栈中截取环，首尾补齐为同一节点。
func extractCycle(stack []string, name string) []string {
	for i, n := range stack {
		if n == name {
			cycle := append([]string(nil), stack[i:]...)
			return append(cycle, name)
		}
	}
	return []string{name, name}
}

// reversed 返回逆序副本，用于从启动顺序派生停止顺序。
func reversed(order []string) []string {
	out := make([]string, len(order))
	for i, name := range order {
		out[len(order)-1-i] = name
	}
	return out
}
