package translate

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkRoundTrip(t *testing.T) {
	titles := []string{
		"Fender Stratocaster 1996",
		"Roland Juno-106, defekt",
		"MacBook Pro 13\" 2019 | 16GB",
		"Förstärkare Marshall JCM800",
		"2 st högtalare",
	}

	chunks := SplitChunks(titles, 4000)
	require.Len(t, chunks, 1)

	// identity translation
	results, matched := ParseChunk(JoinChunk(chunks[0]), len(chunks[0]))
	assert.Equal(t, len(titles), matched)
	assert.Equal(t, titles, results)
}

func TestChunkBoundary(t *testing.T) {
	var titles []string
	for i := 0; i < 300; i++ {
		titles = append(titles, fmt.Sprintf("Gebrauchter Verstärker Modell %d mit Zubehör", i))
	}

	budget := 500
	chunks := SplitChunks(titles, budget)
	require.Greater(t, len(chunks), 1)

	var rejoined []string
	for _, chunk := range chunks {
		require.NotEmpty(t, chunk)
		assert.LessOrEqual(t, utf8.RuneCountInString(JoinChunk(chunk)), budget)
		rejoined = append(rejoined, chunk...)
	}
	assert.Equal(t, titles, rejoined)
}

func TestChunkBoundaryExactFit(t *testing.T) {
	// two titles whose joined form is exactly the budget
	a := strings.Repeat("a", 10)
	b := strings.Repeat("b", 10)
	budget := utf8.RuneCountInString(JoinChunk([]string{a, b}))

	assert.Len(t, SplitChunks([]string{a, b}, budget), 1)
	assert.Len(t, SplitChunks([]string{a, b}, budget-1), 2)
}

func TestSplitChunksClipsOversizedTitle(t *testing.T) {
	long := strings.Repeat("ü", 250)
	chunks := SplitChunks([]string{"kurz", long, "auch kurz"}, 120)

	total := 0
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(JoinChunk(chunk)), 120)
		total += len(chunk)
	}
	assert.Equal(t, 3, total)
}

func TestParseChunkSurvivesDroppedSeparator(t *testing.T) {
	// translator removed every item separator and reordered spacing
	translated := "0000 ⁞ Used amplifier 0001⁞Guitar case0002 ⁞  Drum kit"

	results, matched := ParseChunk(translated, 3)
	assert.Equal(t, 3, matched)
	assert.Equal(t, []string{"Used amplifier", "Guitar case", "Drum kit"}, results)
}

func TestParseChunkMissingOrdinal(t *testing.T) {
	translated := "0000 ⁞ Amplifier ⁂ Guitar ⁂ 0002 ⁞ Drums"

	results, matched := ParseChunk(translated, 3)
	assert.Equal(t, 2, matched)
	assert.Equal(t, "Amplifier", results[0])
	assert.Equal(t, "", results[1])
	assert.Equal(t, "Drums", results[2])
}

func TestParseChunkIgnoresOutOfRangeAndDuplicateOrdinals(t *testing.T) {
	translated := "0000 ⁞ First ⁂ 0000 ⁞ Again ⁂ 0009 ⁞ Stray"

	results, matched := ParseChunk(translated, 2)
	assert.Equal(t, 1, matched)
	assert.Equal(t, []string{"First", ""}, results)
}

func TestParseChunkPositionalFallback(t *testing.T) {
	// every tag marker rewritten, separators intact
	results, matched := ParseChunk("0000 | Amplifier ⁂ 0001 | Guitar", 2)
	assert.Equal(t, 0, matched)
	assert.Equal(t, []string{"Amplifier", "Guitar"}, results)

	// separator count no longer lines up: nothing is trusted
	results, _ = ParseChunk("Amplifier Guitar", 2)
	assert.Equal(t, []string{"", ""}, results)
}
