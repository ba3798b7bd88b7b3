package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mittai17/piexi/pkg/types"
)

func TestSplitCodeFences(t *testing.T) {
	t.Run("prose only", func(t *testing.T) {
		segs := splitCodeFences("just some text\nover two lines")
		require.Len(t, segs, 1)
		assert.False(t, segs[0].code)
		assert.Equal(t, "just some text\nover two lines", segs[0].text)
	})

	t.Run("fenced block with language", func(t *testing.T) {
		segs := splitCodeFences("before\n```go\nfmt.Println(1)\n```\nafter")
		require.Len(t, segs, 3)
		assert.False(t, segs[0].code)
		assert.True(t, segs[1].code)
		assert.Equal(t, "go", segs[1].lang)
		assert.Equal(t, "fmt.Println(1)", segs[1].text)
		assert.Equal(t, "after", segs[2].text)
	})

	t.Run("unclosed fence runs to the end", func(t *testing.T) {
		segs := splitCodeFences("text\n```python\nprint(1)")
		require.Len(t, segs, 2)
		assert.True(t, segs[1].code)
		assert.Equal(t, "python", segs[1].lang)
		assert.Equal(t, "print(1)", segs[1].text)
	})

	t.Run("empty code block is kept", func(t *testing.T) {
		segs := splitCodeFences("```\n```")
		require.Len(t, segs, 1)
		assert.True(t, segs[0].code)
		assert.Empty(t, segs[0].text)
	})
}

func TestRenderAnswer(t *testing.T) {
	t.Run("plain text passes through", func(t *testing.T) {
		out := renderAnswer("hello world")
		assert.Contains(t, out, "hello world")
	})

	t.Run("code block content survives highlighting", func(t *testing.T) {
		out := renderAnswer("```go\nfmt.Println(42)\n```")
		assert.Contains(t, out, "42")
	})

	t.Run("empty answer renders nothing", func(t *testing.T) {
		assert.Empty(t, renderAnswer(""))
	})
}

func TestFocusLabel(t *testing.T) {
	assert.Equal(t, "All", focusLabel(types.FocusAll))
	assert.Equal(t, "Academic", focusLabel(types.FocusAcademic))
	assert.Equal(t, "Writing", focusLabel(types.FocusWriting))
	assert.Equal(t, "YouTube", focusLabel(types.FocusYouTube))
	assert.Equal(t, "Reddit", focusLabel(types.FocusReddit))
}
