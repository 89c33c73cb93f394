package chunker

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func words(n int, suffix string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%d%s", i, suffix)
	}
	return strings.Join(parts, " ")
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	c := New(20, 5)
	text := "  A short document.\nWith two lines.  "

	segments := c.Split(text)

	require.Len(t, segments, 1)
	assert.Equal(t, text, segments[0], "short input must come back unmodified")
}

func TestSplitEmptyText(t *testing.T) {
	c := New(20, 5)

	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("   \n\t  "))
}

func TestSplitOverlapCoversEveryWord(t *testing.T) {
	c := New(20, 5)
	text := words(50, ".")

	segments := c.Split(text)
	require.Greater(t, len(segments), 1)

	joined := strings.Join(segments, " ")
	for i := 0; i < 50; i++ {
		assert.Contains(t, joined, fmt.Sprintf("word%d.", i))
	}

	// Consecutive segments share the overlap region.
	firstWords := strings.Fields(segments[0])
	secondWords := strings.Fields(segments[1])
	assert.Equal(t, firstWords[len(firstWords)-5:], secondWords[:5])
}

func TestSplitHeaderPrefixedOnEverySegment(t *testing.T) {
	c := New(10, 2)
	text := "# Visa Rules\n" + words(25, "")

	segments := c.Split(text)
	require.Greater(t, len(segments), 1)
	for _, segment := range segments {
		assert.True(t, strings.HasPrefix(segment, "# Visa Rules\n"), "segment missing header: %q", segment)
	}
}

func TestSplitSectionsAreHardBoundaries(t *testing.T) {
	c := New(10, 2)
	text := "# Housing\n" + words(12, "") + "\n## Leases\n" + words(12, "")

	segments := c.Split(text)
	require.NotEmpty(t, segments)
	for _, segment := range segments {
		sameSection := strings.HasPrefix(segment, "# Housing") || strings.HasPrefix(segment, "## Leases")
		assert.True(t, sameSection)
		if strings.HasPrefix(segment, "# Housing") {
			assert.NotContains(t, segment, "## Leases")
		}
	}
}

func TestSplitBackscanStopsAtSentenceEnd(t *testing.T) {
	c := New(10, 0)
	parts := make([]string, 20)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	parts[7] = "end."

	segments := c.Split(strings.Join(parts, " "))

	require.Greater(t, len(segments), 1)
	assert.True(t, strings.HasSuffix(segments[0], "end."), "first segment should cut after the sentence: %q", segments[0])
	assert.True(t, strings.HasPrefix(segments[1], "w8 "), "second segment should resume after the cut: %q", segments[1])
}

func TestSplitBackscanBoundedToHalfChunk(t *testing.T) {
	// The only sentence end sits further back than half a chunk, so the
	// cut stays at the full chunk size instead of chasing it.
	c := New(10, 0)
	parts := make([]string, 30)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	parts[2] = "early."

	segments := c.Split(strings.Join(parts, " "))

	require.Greater(t, len(segments), 1)
	assert.Len(t, strings.Fields(segments[0]), 10)
}

func TestChunkMetadata(t *testing.T) {
	c := New(10, 2)
	now := time.Now()

	chunks := c.Chunk(words(25, ""), "https://intl.example.edu/visa", "Visa Guide", now)

	require.Greater(t, len(chunks), 1)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Metadata.ChunkIndex)
		assert.Equal(t, len(chunks), chunk.Metadata.TotalChunks)
		assert.Equal(t, "https://intl.example.edu/visa", chunk.Metadata.SourceURL)
		assert.Equal(t, "Visa Guide", chunk.Metadata.Title)
		assert.Equal(t, now, chunk.Metadata.IngestedAt)
	}
}

func TestNewClampsOverlap(t *testing.T) {
	c := New(10, 50)
	assert.Equal(t, 5, c.overlapWords)
}
