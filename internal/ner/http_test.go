package ner

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/archivist/internal/model"
	"github.com/sells-group/archivist/internal/resilience"
)

func TestHTTPRecognize(t *testing.T) {
	var gotPath, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		var req struct {
			Text string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotText = req.Text

		resp := map[string]any{
			"spans": []map[string]any{
				{"text": "Alexander", "entity_type": "person", "start": 0, "end": 9},
				{"text": "Babylon", "entity_type": "location", "start": 23, "end": 30},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	rec := NewHTTPRecognizer(srv.URL, 100, time.Second)
	spans, err := rec.Recognize(context.Background(), "Alexander marched into Babylon")
	require.NoError(t, err)

	assert.Equal(t, "/v1/recognize", gotPath)
	assert.Equal(t, "Alexander marched into Babylon", gotText)
	require.Len(t, spans, 2)
	assert.Equal(t, Span{Text: "Alexander", Type: model.TypePerson, Start: 0, End: 9}, spans[0])
	assert.Equal(t, Span{Text: "Babylon", Type: model.TypeLocation, Start: 23, End: 30}, spans[1])
}

func TestHTTPRecognizeDropsInvalidSpans(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"spans": []map[string]any{
				{"text": "Rome", "entity_type": "location", "start": 0, "end": 4},
				{"text": "???", "entity_type": "unknown", "start": 5, "end": 8},
				{"text": "bad", "entity_type": "person", "start": 9, "end": 9},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	rec := NewHTTPRecognizer(srv.URL, 100, time.Second)
	spans, err := rec.Recognize(context.Background(), "whatever")
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, "Rome", spans[0].Text)
}

func TestHTTPRecognizeTransientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	rec := NewHTTPRecognizer(srv.URL, 100, time.Second)
	_, err := rec.Recognize(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestHTTPRecognizePermanentStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	rec := NewHTTPRecognizer(srv.URL, 100, time.Second)
	_, err := rec.Recognize(context.Background(), "text")
	require.Error(t, err)
	assert.False(t, resilience.IsTransient(err))
}

func TestStripBIO(t *testing.T) {
	assert.Equal(t, "PER", stripBIO("B-PER"))
	assert.Equal(t, "LOC", stripBIO("I-LOC"))
	assert.Equal(t, "MISC", stripBIO("MISC"))
	assert.Equal(t, "O", stripBIO("O"))
}

func TestBIOLabelTaxonomy(t *testing.T) {
	assert.Equal(t, model.TypePerson, bioLabelTypes["PER"])
	assert.Equal(t, model.TypePolity, bioLabelTypes["ORG"])
	assert.Equal(t, model.TypeEvent, bioLabelTypes["MISC"])
	_, ok := bioLabelTypes["O"]
	assert.False(t, ok)
}
