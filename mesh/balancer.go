package mesh

import (
	"math/rand"
	"sync/atomic"
)

// Balancer 从候选实例中选取一个。候选列表已过滤为健康实例。
type Balancer interface {
	Pick(instances []Instance) (Instance, bool)
}

func newBalancer(strategy string) Balancer {
	switch strategy {
	case BalancerWeighted:
		return &weightedBalancer{}
	case BalancerRandom:
		return &randomBalancer{}
	default:
		return &roundRobinBalancer{}
	}
}

type roundRobinBalancer struct {
	next atomic.Uint64
}

func (b *roundRobinBalancer) Pick(instances []Instance) (Instance, bool) {
	if len(instances) == 0 {
		return Instance{}, false
	}
	idx := (b.next.Add(1) - 1) % uint64(len(instances))
	return instances[idx], true
}

// weightedBalancer 按权重随机选取，权重 <= 0 的实例按 1 计。
type weightedBalancer struct{}

func (b *weightedBalancer) Pick(instances []Instance) (Instance, bool) {
	if len(instances) == 0 {
		return Instance{}, false
	}
	total := 0
	for _, inst := range instances {
		total += normalizeWeight(inst.Weight)
	}
	n := rand.Intn(total)
	for _, inst := range instances {
		n -= normalizeWeight(inst.Weight)
		if n < 0 {
			return inst, true
		}
	}
	return instances[len(instances)-1], true
}

func normalizeWeight(w int) int {
	if w <= 0 {
		return 1
	}
	return w
}

type randomBalancer struct{}

func (b *randomBalancer) Pick(instances []Instance) (Instance, bool) {
	if len(instances) == 0 {
		return Instance{}, false
	}
	return instances[rand.Intn(len(instances))], true
}
