package config

import "github.com/ceyewan/nexus/xerrors"

var (
	// ErrValidationFailed 配置验证失败
	ErrValidationFailed = xerrors.New("config: validation failed")

	// ErrNotLoaded 尚未调用 Load
	ErrNotLoaded = xerrors.New("config: loader not loaded")
)
