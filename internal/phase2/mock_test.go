package phase2

import (
	"context"

	"github.com/sells-group/archivist/internal/model"
	"github.com/sells-group/archivist/pkg/anthropic"
)

// mockLLM returns canned responses in call order.
type mockLLM struct {
	responses []string
	err       error
	calls     int
	requests  []anthropic.MessageRequest
}

func (m *mockLLM) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	text := ""
	if m.calls < len(m.responses) {
		text = m.responses[m.calls]
	}
	m.calls++
	return &anthropic.MessageResponse{
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage:      anthropic.TokenUsage{InputTokens: 100, OutputTokens: 20},
	}, nil
}

// mockStore is an in-memory pool.Store.
type mockStore struct {
	decided   map[string]model.DecidedEntity
	decisions []model.Decision
	recordErr error
}

func newMockStore() *mockStore {
	return &mockStore{decided: make(map[string]model.DecidedEntity)}
}

func (s *mockStore) Migrate(context.Context) error { return nil }

func (s *mockStore) Close() error { return nil }

func (s *mockStore) AddDecided(_ context.Context, e model.DecidedEntity) error {
	if _, ok := s.decided[e.Key]; !ok {
		s.decided[e.Key] = e
	}
	return nil
}

func (s *mockStore) Candidates(_ context.Context, entityType model.EntityType, _ string) ([]model.DecidedEntity, error) {
	var out []model.DecidedEntity
	for _, e := range s.decided {
		if e.Type == entityType {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *mockStore) RecordDecision(_ context.Context, d model.Decision) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.decisions = append(s.decisions, d)
	return nil
}

func (s *mockStore) ProcessedPendingIDs(context.Context) (map[string]bool, error) {
	ids := make(map[string]bool)
	for _, d := range s.decisions {
		ids[d.PendingID] = true
	}
	return ids, nil
}

func (s *mockStore) Counts(context.Context) (int64, int64, int64, error) {
	review := int64(0)
	for _, d := range s.decisions {
		if d.Outcome == model.OutcomePending {
			review++
		}
	}
	return int64(len(s.decided)), int64(len(s.decisions)), review, nil
}
