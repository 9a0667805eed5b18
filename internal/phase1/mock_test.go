package phase1

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/archivist/internal/model"
	"github.com/sells-group/archivist/internal/ner"
)

// dictRecognizer finds occurrences of a fixed name dictionary in each
// chunk, standing in for the real NER backend.
type dictRecognizer struct {
	names map[string]model.EntityType

	mu    sync.Mutex
	calls int
}

func (r *dictRecognizer) Recognize(_ context.Context, text string) ([]ner.Span, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	var spans []ner.Span
	for name, typ := range r.names {
		for from := 0; ; {
			idx := strings.Index(text[from:], name)
			if idx < 0 {
				break
			}
			start := from + idx
			spans = append(spans, ner.Span{
				Text:  name,
				Type:  typ,
				Start: start,
				End:   start + len(name),
			})
			from = start + len(name)
		}
	}
	return spans, nil
}

// failingRecognizer fails every call with a permanent error.
type failingRecognizer struct{}

func (failingRecognizer) Recognize(context.Context, string) ([]ner.Span, error) {
	return nil, eris.New("recognizer unavailable")
}
