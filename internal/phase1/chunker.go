package phase1

import "unicode/utf8"

// Chunk is a fixed-size window of a document. Start and End are absolute
// byte offsets into the original document, so Text == doc[Start:End].
type Chunk struct {
	Index int
	Start int
	End   int
	Text  string
}

// DefaultChunkSize bounds chunk text to fit comfortably in one NER call.
const DefaultChunkSize = 4096

// Split cuts a document into gap-free, position-preserving chunks
// covering the entire text: every byte of the document belongs to
// exactly one chunk. Boundaries are pulled back to rune starts so no
// UTF-8 sequence is torn across chunks.
func Split(text string, size int) []Chunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if len(text) == 0 {
		return nil
	}

	var chunks []Chunk
	for start, index := 0, 0; start < len(text); index++ {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
			// A single rune longer than size cannot happen with size >= 4,
			// but never emit an empty chunk.
			if end == start {
				end = start + size
			}
		}
		chunks = append(chunks, Chunk{
			Index: index,
			Start: start,
			End:   end,
			Text:  text[start:end],
		})
		start = end
	}
	return chunks
}
