package channels

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkAtExactLimitDoesNotSplit(t *testing.T) {
	content := strings.Repeat("a", 100)
	chunks := Chunk(content, 100)
	require.Len(t, chunks, 1)
	require.Equal(t, content, chunks[0])
}

func TestChunkAtLimitPlusOneSplitsAtNewline(t *testing.T) {
	content := strings.Repeat("a", 50) + "\n" + strings.Repeat("b", 50)
	chunks := Chunk(content, 100)
	require.Len(t, chunks, 2)
	require.Equal(t, strings.Repeat("a", 50), chunks[0])
	require.Equal(t, strings.Repeat("b", 50), chunks[1])
}

func TestChunkRoundTripsViaConcatenation(t *testing.T) {
	content := strings.Repeat("word ", 2000)
	chunks := Chunk(content, 500)
	require.True(t, len(chunks) > 1)
	joined := strings.Join(chunks, "")
	// Round-trip up to inter-chunk whitespace normalization (spec §8).
	require.Equal(t, strings.Join(strings.Fields(content), " "), strings.Join(strings.Fields(joined), " "))
}

func TestChunkEmptyContent(t *testing.T) {
	require.Nil(t, Chunk("", 10))
}
