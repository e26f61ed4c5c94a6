package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCodec tokenizes on whitespace so token counts are predictable without
// loading a real BPE vocabulary.
type fakeCodec struct {
	words []string
}

func (f *fakeCodec) Encode(text string, _, _ []string) []int {
	var ids []int
	for _, w := range strings.Fields(text) {
		f.words = append(f.words, w)
		ids = append(ids, len(f.words)-1)
	}
	return ids
}

func (f *fakeCodec) Decode(tokens []int) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = f.words[t]
	}
	return strings.Join(parts, " ")
}

type panickyCodec struct{}

func (panickyCodec) Encode(text string, _, _ []string) []int { panic("no vocabulary") }
func (panickyCodec) Decode(tokens []int) string              { return "" }

func TestPageMarkerProcessor_AddPageMarkers(t *testing.T) {
	t.Run("emits a marker per page and preserves the numeric trail", func(t *testing.T) {
		p := newPageMarkerProcessorWithCodec(&fakeCodec{})
		input := "First page text\n<<1>>\nSecond page text\n<<2>>\n"

		out := p.AddPageMarkers(input)

		assert.Contains(t, out, "--- Page 1 ---")
		assert.Contains(t, out, "--- Page 2 ---")
		assert.Contains(t, out, "<<1>>")
		assert.Contains(t, out, "<<2>>")
		assert.Less(t, strings.Index(out, "--- Page 1 ---"), strings.Index(out, "First page text"))
		assert.Less(t, strings.Index(out, "First page text"), strings.Index(out, "<<1>>"))
	})

	t.Run("inserts interval markers within a long page", func(t *testing.T) {
		p := newPageMarkerProcessorWithCodec(&fakeCodec{})
		var b strings.Builder
		for i := 0; i < 1000; i++ {
			fmt.Fprintf(&b, "word%d ", i)
		}
		b.WriteString("\n<<1>>\n")

		out := p.AddPageMarkers(b.String())

		// 1000 tokens at a 400-token interval means at least three markers.
		count := strings.Count(out, "--- Page 1 ---")
		assert.GreaterOrEqual(t, count, 3)
		assert.Contains(t, out, "word999")
	})

	t.Run("text without markers is treated as page 1", func(t *testing.T) {
		p := newPageMarkerProcessorWithCodec(&fakeCodec{})

		out := p.AddPageMarkers("just some text")

		assert.True(t, strings.HasPrefix(out, "--- Page 1 ---"))
		assert.Contains(t, out, "just some text")
	})

	t.Run("skips empty segments", func(t *testing.T) {
		p := newPageMarkerProcessorWithCodec(&fakeCodec{})

		out := p.AddPageMarkers("<<1>>\n<<2>>\ntrailing text")

		assert.NotContains(t, out, "--- Page 1 ---")
		assert.NotContains(t, out, "--- Page 2 ---")
		assert.Contains(t, out, "--- Page 3 ---")
		assert.Contains(t, out, "<<1>>")
		assert.Contains(t, out, "<<2>>")
	})

	t.Run("returns input unchanged when no codec is available", func(t *testing.T) {
		p := newPageMarkerProcessorWithCodec(nil)
		input := "text\n<<1>>\n"

		assert.Equal(t, input, p.AddPageMarkers(input))
	})

	t.Run("returns input unchanged when tokenization panics", func(t *testing.T) {
		p := newPageMarkerProcessorWithCodec(panickyCodec{})
		input := "text\n<<1>>\n"

		require.NotPanics(t, func() {
			assert.Equal(t, input, p.AddPageMarkers(input))
		})
	})
}
