package metrics

// Option 组件初始化选项函数。
type Option func(*options)

// options 内部选项结构（预留，目前无可配置项）。
type options struct{}
