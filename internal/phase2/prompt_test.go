package phase2

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/archivist/internal/model"
)

func TestBuildPromptIncludesEvidence(t *testing.T) {
	item := model.PendingItem{
		DisplayText:  "Louis XIV",
		Type:         model.TypePerson,
		MentionCount: 12,
	}
	years := model.YearRange{Start: intp(1643), End: intp(1715)}
	samples := []string{"crowned at Reims in 1654", "the Sun King's court\nat Versailles"}
	cands := []ScoredCandidate{{
		Entity: model.DecidedEntity{
			Key:         "person:louis xiii",
			DisplayText: "Louis XIII",
			Type:        model.TypePerson,
		},
		Score: 0.82,
	}}

	prompt := BuildPrompt(item, years, samples, cands)
	assert.Contains(t, prompt, "Louis XIV")
	assert.Contains(t, prompt, "1643 to 1715")
	assert.Contains(t, prompt, "crowned at Reims")
	assert.Contains(t, prompt, "person:louis xiii")
	// Newlines inside samples are flattened to keep one excerpt per line.
	assert.NotContains(t, prompt, "court\nat")
}

func TestBuildPromptNoContext(t *testing.T) {
	prompt := BuildPrompt(model.PendingItem{DisplayText: "Ur", Type: model.TypeLocation}, model.YearRange{}, nil, nil)
	assert.Contains(t, prompt, "no context recovered")
	assert.Contains(t, prompt, "unknown")
}

func TestParseDecisionLink(t *testing.T) {
	v, err := ParseDecision(`{"decision":"LINK_EXISTING","linked_key":"person:louis xiv","confidence":0.9,"reasoning":"same regnal ordinal and era"}`)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeLinkExisting, v.Outcome)
	assert.Equal(t, "person:louis xiv", v.LinkedKey)
	assert.InDelta(t, 0.9, v.Confidence, 0.001)
}

func TestParseDecisionEmbeddedInProse(t *testing.T) {
	text := "Based on the evidence:\n\n{\"decision\": \"CREATE_NEW\", \"linked_key\": null, \"confidence\": 0.8, \"reasoning\": \"distinct era\"}\n\nLet me know."
	v, err := ParseDecision(text)
	require.NoError(t, err)
	assert.Equal(t, model.OutcomeCreateNew, v.Outcome)
	assert.Empty(t, v.LinkedKey)
}

func TestParseDecisionClampsConfidence(t *testing.T) {
	v, err := ParseDecision(`{"decision":"PENDING","confidence":1.7}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, v.Confidence)

	v, err = ParseDecision(`{"decision":"PENDING","confidence":-0.2}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.Confidence)
}

func TestParseDecisionMalformed(t *testing.T) {
	cases := []string{
		"",
		"no json here",
		`{"decision":"MAYBE","confidence":0.5}`,
		`{"decision":"LINK_EXISTING","confidence":0.5}`,
		`{"decision": broken}`,
	}
	for _, text := range cases {
		_, err := ParseDecision(text)
		assert.Error(t, err, text)
	}
}
