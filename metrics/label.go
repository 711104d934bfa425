package metrics

// Label 指标标签，键值均为字符串。
type Label struct {
	Key   string
	Value string
}

// L 创建标签的简写：
//
//	counter.Inc(ctx, metrics.L("target", "orders"), metrics.L("result", "ok"))
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}
