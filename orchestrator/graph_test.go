package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/nexus/xerrors"
)

func buildGraph(t *testing.T, descs ...Descriptor) *graph {
	t.Helper()
	m := make(map[string]Descriptor, len(descs))
	for _, d := range descs {
		m[d.Name] = d
	}
	return &graph{descriptors: m}
}

// indexOf 返回名称在顺序中的下标，不存在返回 -1
func indexOf(order []string, name string) int {
	for i, n := range order {
		if n == name {
			return i
		}
	}
	return -1
}

func TestGraph_ComputeOrder(t *testing.T) {
	t.Run("依赖总是先于依赖者", func(t *testing.T) {
		g := buildGraph(t,
			Descriptor{Name: "a"},
			Descriptor{Name: "b", Dependencies: []string{"a"}},
			Descriptor{Name: "c", Dependencies: []string{"a", "b"}},
		)
		order, err := g.computeOrder()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, order)
	})

	t.Run("无依赖时按优先级升序", func(t *testing.T) {
		g := buildGraph(t,
			Descriptor{Name: "low", Priority: 10},
			Descriptor{Name: "high", Priority: 1},
			Descriptor{Name: "mid", Priority: 5},
		)
		order, err := g.computeOrder()
		require.NoError(t, err)
		assert.Equal(t, []string{"high", "mid", "low"}, order)
	})

	t.Run("同优先级按名称升序保证确定性", func(t *testing.T) {
		g := buildGraph(t,
			Descriptor{Name: "zeta"},
			Descriptor{Name: "alpha"},
			Descriptor{Name: "mike"},
		)
		for i := 0; i < 5; i++ {
			order, err := g.computeOrder()
			require.NoError(t, err)
			assert.Equal(t, []string{"alpha", "mike", "zeta"}, order)
		}
	})

	t.Run("菱形依赖每个节点只出现一次", func(t *testing.T) {
		g := buildGraph(t,
			Descriptor{Name: "base"},
			Descriptor{Name: "left", Dependencies: []string{"base"}},
			Descriptor{Name: "right", Dependencies: []string{"base"}},
			Descriptor{Name: "top", Dependencies: []string{"left", "right"}},
		)
		order, err := g.computeOrder()
		require.NoError(t, err)
		require.Len(t, order, 4)
		assert.True(t, indexOf(order, "base") < indexOf(order, "left"))
		assert.True(t, indexOf(order, "base") < indexOf(order, "right"))
		assert.True(t, indexOf(order, "left") < indexOf(order, "top"))
		assert.True(t, indexOf(order, "right") < indexOf(order, "top"))
	})

	t.Run("未注册的依赖报错", func(t *testing.T) {
		g := buildGraph(t,
			Descriptor{Name: "a", Dependencies: []string{"ghost"}},
		)
		_, err := g.computeOrder()
		assert.ErrorIs(t, err, ErrUnknownDependency)
	})
}

func TestGraph_CircularDependency(t *testing.T) {
	t.Run("两节点环", func(t *testing.T) {
		g := buildGraph(t,
			Descriptor{Name: "a", Dependencies: []string{"b"}},
			Descriptor{Name: "b", Dependencies: []string{"a"}},
		)
		_, err := g.computeOrder()
		require.Error(t, err)
		assert.True(t, xerrors.Is(err, ErrCircularDependency))

		var cycleErr *CircularDependencyError
		require.True(t, xerrors.As(err, &cycleErr))
		assertValidCycle(t, g, cycleErr.Path)
	})

	t.Run("三节点环", func(t *testing.T) {
		g := buildGraph(t,
			Descriptor{Name: "a", Dependencies: []string{"c"}},
			Descriptor{Name: "b", Dependencies: []string{"a"}},
			Descriptor{Name: "c", Dependencies: []string{"b"}},
		)
		_, err := g.computeOrder()
		var cycleErr *CircularDependencyError
		require.True(t, xerrors.As(err, &cycleErr))
		assert.GreaterOrEqual(t, len(cycleErr.Path), 4, "环路径应含首尾重复节点")
		assertValidCycle(t, g, cycleErr.Path)
	})

	t.Run("自环", func(t *testing.T) {
		g := buildGraph(t,
			Descriptor{Name: "narcissus", Dependencies: []string{"narcissus"}},
		)
		_, err := g.computeOrder()
		var cycleErr *CircularDependencyError
		require.True(t, xerrors.As(err, &cycleErr))
		assert.Equal(t, []string{"narcissus", "narcissus"}, cycleErr.Path)
	})
}

// assertValidCycle 验证报告的路径确实是图中的一个环
func assertValidCycle(t *testing.T, g *graph, path []string) {
	t.Helper()
	require.GreaterOrEqual(t, len(path), 2)
	require.Equal(t, path[0], path[len(path)-1], "路径首尾应为同一节点")
	for i := 0; i < len(path)-1; i++ {
		deps := g.descriptors[path[i]].Dependencies
		assert.Contains(t, deps, path[i+1], "路径中相邻节点应有依赖边 %s -> %s", path[i], path[i+1])
	}
}

func TestReversed(t *testing.T) {
	assert.Equal(t, []string{"c", "b", "a"}, reversed([]string{"a", "b", "c"}))
	assert.Empty(t, reversed(nil))
}
