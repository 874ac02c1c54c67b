package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ByHeadings_HappyPath(t *testing.T) {
	cfg := &Config{Strategy: StrategyByHeadings, MaxChunkSize: 1000, Overlap: 100}
	svc := NewService(cfg, nil)

	chunks := svc.Split("# Heading\n\nalpha beta gamma.", SplitOptions{})

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, "Heading", chunks[0].Title)
	assert.Equal(t, "alpha beta gamma.", chunks[0].Content)
	assert.NotEmpty(t, chunks[0].ContentHash)
}

func TestSplit_ByHeadings_NestedChain(t *testing.T) {
	cfg := &Config{Strategy: StrategyByHeadings, MaxChunkSize: 1000, Overlap: 0}
	svc := NewService(cfg, nil)

	text := "# Top\n\nintro text\n\n## Sub\n\nsub text"
	chunks := svc.Split(text, SplitOptions{})

	require.Len(t, chunks, 2)
	assert.Equal(t, []string{"Top"}, chunks[0].TitleChain)
	assert.Equal(t, []string{"Top", "Sub"}, chunks[1].TitleChain)
}

func TestSplit_ByHeadings_OversizedSectionRecursesBySize(t *testing.T) {
	cfg := &Config{Strategy: StrategyByHeadings, MaxChunkSize: 20, Overlap: 5}
	svc := NewService(cfg, nil)

	body := strings.Repeat("abcdefghij", 5) // 50 chars
	text := "# H\n\n" + body
	chunks := svc.Split(text, SplitOptions{})

	assert.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, "H", c.Title)
	}
}

func TestSplit_BySize_Overlap(t *testing.T) {
	cfg := &Config{Strategy: StrategyBySize, MaxChunkSize: 10, Overlap: 3}
	svc := NewService(cfg, nil)

	chunks := svc.Split(strings.Repeat("x", 25), SplitOptions{})
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Content)), 10)
	}
}

func TestSplit_DropsEmptySections(t *testing.T) {
	cfg := &Config{Strategy: StrategyByParagraphs, MaxChunkSize: 1000, Overlap: 0}
	svc := NewService(cfg, nil)

	chunks := svc.Split("first paragraph\n\n   \n\nsecond paragraph", SplitOptions{})
	for _, c := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(c.Content))
	}
}

func TestSplit_Deterministic(t *testing.T) {
	cfg := DefaultConfig()
	svc := NewService(cfg, nil)

	text := "# A\n\nfoo bar baz.\n\n## B\n\nqux quux."
	a := svc.Split(text, SplitOptions{Name: "doc"})
	b := svc.Split(text, SplitOptions{Name: "doc"})
	assert.Equal(t, a, b)
}

func TestSplit_BySentences_GroupsUnderMaxSize(t *testing.T) {
	cfg := &Config{Strategy: StrategyBySentences, MaxChunkSize: 30, Overlap: 0}
	svc := NewService(cfg, nil)

	chunks := svc.Split("One. Two. Three. Four. Five.", SplitOptions{})
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Content)), 35) // allow small slack from joining
	}
}
