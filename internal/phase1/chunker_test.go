package phase1

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitCoversDocumentWithoutGaps(t *testing.T) {
	doc := strings.Repeat("In the year 490 BC the Persians landed at Marathon. ", 40)

	chunks := Split(doc, 256)
	require.NotEmpty(t, chunks)

	// Chunks tile the document exactly.
	pos := 0
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, pos, c.Start)
		assert.Equal(t, doc[c.Start:c.End], c.Text)
		assert.NotEmpty(t, c.Text)
		assert.LessOrEqual(t, len(c.Text), 256)
		pos = c.End
	}
	assert.Equal(t, len(doc), pos)

	// Concatenation reconstructs the original.
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Text)
	}
	assert.Equal(t, doc, sb.String())
}

func TestSplitNeverTearsRunes(t *testing.T) {
	doc := strings.Repeat("Ἀλέξανδρος ὁ Μέγας entered Βαβυλών. ", 30)

	for _, size := range []int{7, 16, 33, 100} {
		chunks := Split(doc, size)
		for _, c := range chunks {
			assert.True(t, utf8.ValidString(c.Text), "size %d chunk %d", size, c.Index)
		}
	}
}

func TestSplitEmptyAndSmall(t *testing.T) {
	assert.Nil(t, Split("", 100))

	chunks := Split("Rome", 100)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Rome", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 4, chunks[0].End)
}

func TestSplitDefaultSize(t *testing.T) {
	doc := strings.Repeat("x", DefaultChunkSize+10)
	chunks := Split(doc, 0)
	require.Len(t, chunks, 2)
	assert.Equal(t, DefaultChunkSize, len(chunks[0].Text))
	assert.Equal(t, 10, len(chunks[1].Text))
}
