package chunker

import (
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"supplyrag/internal/domain"
)

func docWithText(id, text string) domain.Document {
	return domain.Document{
		ID:    id,
		Pages: []domain.Page{{DocID: id, Page: 1, Text: text}},
	}
}

func TestWindowsOffsets(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 1200; i++ {
		b.WriteByte(byte('a' + i%26))
	}
	text := b.String()

	windows := slices.Collect(Windows(text, 500, 400))
	require.Len(t, windows, 3)

	assert.Equal(t, text[0:500], windows[0])
	assert.Equal(t, text[400:900], windows[1])
	assert.Equal(t, text[800:1200], windows[2], "last window is clipped at text end")

	for i := 1; i < len(windows); i++ {
		prevTail := windows[i-1][400:]
		assert.Equal(t, prevTail, windows[i][:100], "consecutive windows overlap by 100 chars")
	}
}

func TestWindowsShortText(t *testing.T) {
	windows := slices.Collect(Windows("short", 500, 400))
	require.Len(t, windows, 1)
	assert.Equal(t, "short", windows[0])
}

func TestWindowsEmptyText(t *testing.T) {
	windows := slices.Collect(Windows("", 10, 5))
	require.Len(t, windows, 1)
	assert.Equal(t, "", windows[0])
}

func TestWindowsExactFit(t *testing.T) {
	text := strings.Repeat("x", 20)
	windows := slices.Collect(Windows(text, 10, 10))
	assert.Equal(t, []string{text[:10], text[10:]}, windows)
}

func TestWindowsCountsRunes(t *testing.T) {
	text := strings.Repeat("ä", 12)
	windows := slices.Collect(Windows(text, 5, 5))
	require.Len(t, windows, 3)
	assert.Equal(t, strings.Repeat("ä", 5), windows[0])
	assert.Equal(t, strings.Repeat("ä", 2), windows[2])
}

func TestWindowsEarlyStop(t *testing.T) {
	text := strings.Repeat("y", 100)
	count := 0
	for range Windows(text, 10, 5) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestWindowChunkerDeterministic(t *testing.T) {
	c, err := NewWindowChunker(50, 30)
	require.NoError(t, err)

	doc := domain.Document{
		ID: "nvidia-10k",
		Pages: []domain.Page{
			{DocID: "nvidia-10k", Page: 1, Text: strings.Repeat("TSMC manufactures our GPUs. ", 4)},
			{DocID: "nvidia-10k", Page: 2, Text: strings.Repeat("Hynix supplies HBM memory. ", 4)},
		},
	}

	first, err := c.Chunk(doc)
	require.NoError(t, err)
	second, err := c.Chunk(doc)
	require.NoError(t, err)

	require.NotEmpty(t, first)
	assert.Equal(t, first, second)

	for i, chunk := range first {
		assert.Equal(t, i, chunk.Seq)
		assert.Equal(t, "nvidia-10k", chunk.DocID)
		assert.Equal(t, ChunkID("nvidia-10k", i), chunk.ID)
		assert.Len(t, chunk.ID, 32)
	}
}

func TestChunkIDIndependentOfText(t *testing.T) {
	c, err := NewWindowChunker(4, 4)
	require.NoError(t, err)

	chunks, err := c.Chunk(docWithText("doc", "abababab"))
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, chunks[0].Text, chunks[1].Text)
	assert.NotEqual(t, chunks[0].ID, chunks[1].ID, "same text at different offsets gets different IDs")

	other, err := c.Chunk(docWithText("other", "abababab"))
	require.NoError(t, err)
	assert.NotEqual(t, chunks[0].ID, other[0].ID)
}

func TestChunkIDUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for _, doc := range []string{"a", "a:1", "b", "ab"} {
		for seq := 0; seq < 50; seq++ {
			id := ChunkID(doc, seq)
			_, dup := seen[id]
			assert.False(t, dup, "collision for %s:%d", doc, seq)
			seen[id] = struct{}{}
		}
	}
}

func TestNewWindowChunkerRejectsBadGeometry(t *testing.T) {
	tests := []struct {
		name   string
		window int
		stride int
	}{
		{"zero window", 0, 1},
		{"zero stride", 10, 0},
		{"gap stride", 10, 11},
		{"negative", -5, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWindowChunker(tt.window, tt.stride)
			assert.Error(t, err)
		})
	}
}

func TestPagesJoinedWithNewline(t *testing.T) {
	c, err := NewWindowChunker(100, 100)
	require.NoError(t, err)

	doc := domain.Document{
		ID: "d",
		Pages: []domain.Page{
			{Page: 1, Text: "first"},
			{Page: 2, Text: "second"},
		},
	}
	chunks, err := c.Chunk(doc)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "first\nsecond", chunks[0].Text)
}
