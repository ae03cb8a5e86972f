package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkFileEmptyReturnsNothing(t *testing.T) {
	c := NewDefaultChunker()
	result, err := c.ChunkFile("", "go", "x.go")
	require.NoError(t, err)
	assert.Empty(t, result.Chunks)
}

func TestChunkFileSmallFileIsSingleChunk(t *testing.T) {
	c := NewDefaultChunker()
	content := "line1\nline2\nline3"
	result, err := c.ChunkFile(content, "text", "x.txt")
	require.NoError(t, err)
	require.Len(t, result.Chunks, 1)
	assert.Equal(t, content, result.Chunks[0].Content)
	assert.Equal(t, 1, result.Chunks[0].StartLine)
	assert.Equal(t, 3, result.Chunks[0].EndLine)
}

func bigText(numLines int) string {
	lines := make([]string, numLines)
	for i := range lines {
		lines[i] = "some content on this line"
	}
	return strings.Join(lines, "\n")
}

func TestSlidingWindowStepMatchesWindowMinusOverlap(t *testing.T) {
	c := NewDefaultChunker()
	result, err := c.ChunkFile(bigText(130), "text", "x.txt")
	require.NoError(t, err)
	require.True(t, len(result.Chunks) >= 2)

	for i := 1; i < len(result.Chunks); i++ {
		diff := result.Chunks[i].StartLine - result.Chunks[i-1].StartLine
		assert.Equal(t, c.WindowSize-c.Overlap, diff)
	}
	last := result.Chunks[len(result.Chunks)-1]
	assert.Equal(t, 130, last.EndLine)
}

func TestChunkGoASTSplitsByDeclaration(t *testing.T) {
	c := NewDefaultChunker()
	var b strings.Builder
	b.WriteString("package sample\n\n")
	for i := 0; i < 60; i++ {
		b.WriteString("type T")
		b.WriteString(string(rune('A' + i%26)))
		b.WriteString(" struct{ X int }\n")
	}
	b.WriteString(`
func DoSomething(x int) int {
	return x + 1
}

type Widget struct{ Name string }

func (w *Widget) Describe() string {
	return w.Name
}
`)

	result, err := c.ChunkFile(b.String(), "go", "sample.go")
	require.NoError(t, err)
	require.NotEmpty(t, result.Symbols)

	var sawFunc, sawMethod bool
	for _, s := range result.Symbols {
		if s.Name == "DoSomething" && s.Kind == "function" {
			sawFunc = true
		}
		if s.Name == "Describe" && s.Kind == "method" && s.ParentQualname == "Widget" {
			sawMethod = true
		}
	}
	assert.True(t, sawFunc)
	assert.True(t, sawMethod)
}

func TestChunkGoASTFallsBackOnParseError(t *testing.T) {
	c := NewDefaultChunker()
	result, err := c.ChunkFile(bigText(130), "go", "broken.go")
	require.NoError(t, err)
	require.NotEmpty(t, result.Chunks)
	assert.Equal(t, ChunkTypeHeuristic, result.Chunks[0].Type)
}
