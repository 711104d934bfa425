package xerrors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	t.Run("包装非 nil 错误保留错误链", func(t *testing.T) {
		base := New("base")
		wrapped := Wrap(base, "context")
		require.Error(t, wrapped)
		assert.Equal(t, "context: base", wrapped.Error())
		assert.True(t, Is(wrapped, base))
	})

	t.Run("nil 错误返回 nil", func(t *testing.T) {
		assert.Nil(t, Wrap(nil, "context"))
		assert.Nil(t, Wrapf(nil, "context %d", 1))
	})
}

func TestWithCode(t *testing.T) {
	t.Run("错误码可以从链中提取", func(t *testing.T) {
		base := New("boom")
		coded := WithCode(base, "ERR_BOOM")
		assert.Equal(t, "ERR_BOOM", GetCode(coded))
		assert.Equal(t, "ERR_BOOM", GetCode(Wrap(coded, "outer")))
		assert.True(t, Is(coded, base))
	})

	t.Run("无错误码返回空串", func(t *testing.T) {
		assert.Equal(t, "", GetCode(New("plain")))
	})
}

func TestCollector(t *testing.T) {
	var c Collector
	first := New("first")
	c.Collect(nil)
	c.Collect(first)
	c.Collect(New("second"))
	assert.Equal(t, first, c.Err())
}

func TestCombine(t *testing.T) {
	t.Run("全部为 nil 时返回 nil", func(t *testing.T) {
		assert.Nil(t, Combine(nil, nil))
	})

	t.Run("单个错误直接返回", func(t *testing.T) {
		e := New("only")
		assert.Equal(t, e, Combine(nil, e))
	})

	t.Run("多个错误合并为 MultiError", func(t *testing.T) {
		e1, e2 := New("e1"), New("e2")
		combined := Combine(e1, e2)
		var multi *MultiError
		require.True(t, As(combined, &multi))
		assert.Len(t, multi.Errors, 2)
		assert.True(t, Is(combined, e1))
		assert.True(t, Is(combined, e2))
	})
}
