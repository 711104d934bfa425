package config

// Option 配置加载器选项函数。
type Option func(*settings)

// settings 加载器静态配置。
type settings struct {
	Name      string   // 配置文件名（不含扩展名）
	Paths     []string // 配置文件搜索路径
	FileType  string   // 配置文件类型 (yaml|json|toml)
	EnvPrefix string   // 环境变量前缀
}

func defaultSettings() *settings {
	return &settings{
		Name:      "config",
		Paths:     []string{".", "./config"},
		FileType:  "yaml",
		EnvPrefix: "NEXUS",
	}
}

// WithConfigName 设置配置文件名（不带扩展名）。
func WithConfigName(name string) Option {
	return func(s *settings) {
		s.Name = name
	}
}

// WithConfigPath 追加一个搜索路径。
func WithConfigPath(path string) Option {
	return func(s *settings) {
		s.Paths = append(s.Paths, path)
	}
}

// WithConfigPaths 覆盖搜索路径。
func WithConfigPaths(paths ...string) Option {
	return func(s *settings) {
		s.Paths = paths
	}
}

// WithConfigType 设置配置文件类型。
func WithConfigType(typ string) Option {
	return func(s *settings) {
		s.FileType = typ
	}
}

// WithEnvPrefix 设置环境变量前缀。
func WithEnvPrefix(prefix string) Option {
	return func(s *settings) {
		s.EnvPrefix = prefix
	}
}
