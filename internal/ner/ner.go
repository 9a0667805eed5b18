// Package ner defines the named-entity recognition boundary. The model is
// an opaque service: chunk text in, typed spans out, offsets relative to
// the chunk. The pipeline, not the recognizer, converts to absolute
// document offsets.
package ner

import (
	"context"

	"github.com/sells-group/archivist/internal/model"
)

// Span is one entity occurrence found in a chunk. Start and End are byte
// offsets into the chunk text.
type Span struct {
	Text  string           `json:"text"`
	Type  model.EntityType `json:"entity_type"`
	Start int              `json:"start"`
	End   int              `json:"end"`
}

// Recognizer extracts entity spans from a chunk of text. Implementations
// must honor ctx for timeout and cancellation; calls are blocking,
// retryable, and rate-limited by the implementation.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]Span, error)
}
