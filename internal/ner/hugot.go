package ner

import (
	"context"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/archivist/internal/model"
)

// bioLabelTypes maps NER model labels (after BIO-prefix stripping) onto
// the pipeline taxonomy. distilbert-NER emits PER/LOC/ORG/MISC; MISC is
// the closest bucket for named events (battles, treaties, wars). period
// entities only arrive through recognizers whose models carry the
// taxonomy natively.
var bioLabelTypes = map[string]model.EntityType{
	"PER":  model.TypePerson,
	"LOC":  model.TypeLocation,
	"ORG":  model.TypePolity,
	"MISC": model.TypeEvent,
}

// LocalRecognizer runs a token-classification ONNX model in-process via
// hugot. It is the default backend: no network, throughput bound only by
// CPU.
type LocalRecognizer struct {
	session  *hugot.Session
	pipeline *pipelines.TokenClassificationPipeline
}

// NewLocalRecognizer loads the ONNX model at modelPath and prepares a NER
// pipeline with simple aggregation (whole-entity spans, not BIO tokens).
func NewLocalRecognizer(modelPath string) (*LocalRecognizer, error) {
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, eris.Wrap(err, "ner: create hugot session")
	}

	cfg := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "archivist-ner",
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}),
		},
	}
	p, err := hugot.NewPipeline(session, cfg)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			zap.L().Warn("ner: session cleanup failed", zap.Error(destroyErr))
		}
		return nil, eris.Wrap(err, "ner: create token classification pipeline")
	}

	return &LocalRecognizer{session: session, pipeline: p}, nil
}

// Recognize runs the model over one chunk and returns taxonomy-typed
// spans. Labels outside the taxonomy mapping are dropped.
func (r *LocalRecognizer) Recognize(ctx context.Context, text string) ([]Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := r.pipeline.RunPipeline([]string{text})
	if err != nil {
		return nil, eris.Wrap(err, "ner: run pipeline")
	}
	if len(result.Entities) == 0 {
		return nil, nil
	}

	var spans []Span
	for _, ent := range result.Entities[0] {
		entityType, ok := bioLabelTypes[stripBIO(ent.Entity)]
		if !ok {
			continue
		}
		word := strings.TrimSpace(ent.Word)
		if word == "" {
			continue
		}
		spans = append(spans, Span{
			Text:  word,
			Type:  entityType,
			Start: int(ent.Start),
			End:   int(ent.End),
		})
	}
	return spans, nil
}

// Close releases the ONNX session.
func (r *LocalRecognizer) Close() error {
	return r.session.Destroy()
}

// stripBIO removes B-/I- tagging prefixes from a model label.
func stripBIO(label string) string {
	if strings.HasPrefix(label, "B-") || strings.HasPrefix(label, "I-") {
		return label[2:]
	}
	return label
}
