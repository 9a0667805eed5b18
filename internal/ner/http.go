package ner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/archivist/internal/resilience"
)

// HTTPRecognizer calls a remote NER service. The wire contract matches
// the recognizer interface: POST {"text": ...} returns
// {"spans": [{"text", "entity_type", "start", "end"}]} with offsets
// relative to the submitted chunk.
type HTTPRecognizer struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPRecognizer creates a client for the service at baseURL. rps
// bounds outbound request rate; timeout bounds each call so a stuck
// service can never block the pipeline indefinitely.
func NewHTTPRecognizer(baseURL string, rps float64, timeout time.Duration) *HTTPRecognizer {
	if rps <= 0 {
		rps = 10
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPRecognizer{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

type recognizeRequest struct {
	Text string `json:"text"`
}

type recognizeResponse struct {
	Spans []Span `json:"spans"`
}

// Recognize submits one chunk and decodes the span list. Transient HTTP
// statuses are wrapped so the caller's retry policy picks them up.
func (r *HTTPRecognizer) Recognize(ctx context.Context, text string) ([]Span, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "ner: rate limit wait")
	}

	body, err := json.Marshal(recognizeRequest{Text: text})
	if err != nil {
		return nil, eris.Wrap(err, "ner: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/recognize", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "ner: build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ner: post")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("ner service returned %d: %s", resp.StatusCode, string(data))
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.Transient(err, resp.StatusCode)
		}
		return nil, err
	}

	var out recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, eris.Wrap(err, "ner: decode response")
	}

	spans := out.Spans[:0]
	for _, s := range out.Spans {
		if s.Type.Valid() && s.End > s.Start {
			spans = append(spans, s)
		}
	}
	return spans, nil
}
