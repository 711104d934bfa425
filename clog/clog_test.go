package clog

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newBufferLogger 创建写入内存缓冲区的 Logger（仅测试使用）
func newBufferLogger(t *testing.T, level Level) (*loggerImpl, *bytes.Buffer) {
	t.Helper()

	buf := &bytes.Buffer{}
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.Level(level))

	impl := &loggerImpl{
		handler:  slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: levelVar}),
		levelVar: levelVar,
		out:      buf,
		options:  applyOptions(),
	}
	return impl, buf
}

func TestLogger_Levels(t *testing.T) {
	t.Run("低于当前级别的日志被过滤", func(t *testing.T) {
		logger, buf := newBufferLogger(t, InfoLevel)
		logger.Debug("should be dropped")
		logger.Info("should be kept")
		assert.NotContains(t, buf.String(), "should be dropped")
		assert.Contains(t, buf.String(), "should be kept")
	})

	t.Run("SetLevel 动态放开级别", func(t *testing.T) {
		logger, buf := newBufferLogger(t, InfoLevel)
		require.NoError(t, logger.SetLevel(DebugLevel))
		logger.Debug("debug visible now")
		assert.Contains(t, buf.String(), "debug visible now")
	})
}

func TestLogger_With(t *testing.T) {
	logger, buf := newBufferLogger(t, InfoLevel)

	child := logger.With(String("component", "mesh"))
	child.Info("hello")

	assert.Contains(t, buf.String(), `"component":"mesh"`)

	t.Run("父 Logger 不受子 Logger 影响", func(t *testing.T) {
		buf.Reset()
		logger.Info("plain")
		assert.NotContains(t, buf.String(), "component")
	})
}

func TestLogger_WithNamespace(t *testing.T) {
	logger, buf := newBufferLogger(t, InfoLevel)

	logger.WithNamespace("mesh").WithNamespace("breaker").Info("tripped")

	assert.Contains(t, buf.String(), `"namespace":"mesh.breaker"`)
}

func TestLogger_ContextFields(t *testing.T) {
	logger, buf := newBufferLogger(t, InfoLevel)
	logger.options = applyOptions(WithContextField("correlation_id", "correlation_id"))

	ctx := context.WithValue(context.Background(), "correlation_id", "corr-42")
	logger.InfoContext(ctx, "processed")

	assert.Contains(t, buf.String(), `"correlation_id":"corr-42"`)
}

func TestParseLevel(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want Level
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"Warn", WarnLevel},
		{"error", ErrorLevel},
		{"fatal", FatalLevel},
	} {
		got, err := ParseLevel(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	t.Run("空字段填充默认值", func(t *testing.T) {
		cfg := &Config{}
		require.NoError(t, cfg.validate())
		assert.Equal(t, "info", cfg.Level)
		assert.Equal(t, "console", cfg.Format)
		assert.Equal(t, "stdout", cfg.Output)
	})

	t.Run("非法格式报错", func(t *testing.T) {
		cfg := &Config{Format: "xml"}
		assert.Error(t, cfg.validate())
	})
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	// 不应 panic，也不应产生输出
	logger.Info("silent", String("k", "v"))
	assert.Equal(t, logger, logger.With(String("a", "b")))
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "debug", DebugLevel.String())
	assert.Equal(t, "fatal", FatalLevel.String())
	assert.True(t, strings.HasPrefix(Level(99).String(), "level("))
}
