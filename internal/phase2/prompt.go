package phase2

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/archivist/internal/model"
	"github.com/sells-group/archivist/internal/validator"
)

const disambiguateSystemPrompt = `You are a historical entity resolution analyst. You decide whether a newly extracted entity from historical texts is the same real-world referent as an already-registered entity, or a distinct one.

Rules:
- Base your decision only on the evidence provided
- Same surface name does not imply same referent: different people, places, and polities share names across eras
- Differing regnal ordinals (e.g. XIV vs XV) always mean different referents
- When the evidence is genuinely insufficient, answer PENDING rather than guessing
- Respond with ONLY a valid JSON object, no prose around it`

const disambiguateUserPrompt = `New entity:
  Text: %s
  Type: %s
  Mentions: %d
  Inferred time range: %s

Context excerpts from source documents:
%s

Registered candidates:
%s

Decide whether the new entity is one of the registered candidates or a distinct referent. Return a valid JSON object:
{"decision": "CREATE_NEW" | "LINK_EXISTING" | "PENDING", "linked_key": "<candidate key or null>", "confidence": <0.0-1.0>, "reasoning": "<brief explanation>"}`

// BuildPrompt renders the disambiguation user message for an item and its
// ranked candidates.
func BuildPrompt(item model.PendingItem, years model.YearRange, samples []string, cands []ScoredCandidate) string {
	var ctxB strings.Builder
	if len(samples) == 0 {
		ctxB.WriteString("  (no context recovered)\n")
	}
	for i, s := range samples {
		fmt.Fprintf(&ctxB, "  [%d] %s\n", i+1, strings.ReplaceAll(s, "\n", " "))
	}

	var candB strings.Builder
	for i, c := range cands {
		fmt.Fprintf(&candB, "  [%d] key=%s text=%q type=%s mentions=%d time=%s similarity=%.2f\n",
			i+1, c.Entity.Key, c.Entity.DisplayText, c.Entity.Type,
			c.Entity.MentionCount, c.Entity.Years.String(), c.Score)
	}

	return fmt.Sprintf(disambiguateUserPrompt,
		item.DisplayText, item.Type, item.MentionCount, years.String(),
		ctxB.String(), candB.String())
}

// llmDecision is the wire shape of the model's answer.
type llmDecision struct {
	Decision   string  `json:"decision"`
	LinkedKey  *string `json:"linked_key"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// ParseDecision extracts the structured verdict from a model response.
// The JSON object may be embedded in surrounding prose. Any malformed or
// out-of-contract output is an error; the caller maps errors to PENDING,
// never to a guessed outcome.
func ParseDecision(text string) (validator.Verdict, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return validator.Verdict{}, eris.New("phase2: no JSON object in LLM response")
	}

	var d llmDecision
	if err := json.Unmarshal([]byte(text[start:end+1]), &d); err != nil {
		return validator.Verdict{}, eris.Wrap(err, "phase2: parse LLM decision")
	}

	outcome := model.Outcome(strings.ToUpper(strings.TrimSpace(d.Decision)))
	if !outcome.Valid() {
		return validator.Verdict{}, eris.Errorf("phase2: unknown decision %q", d.Decision)
	}

	v := validator.Verdict{
		Outcome:    outcome,
		Confidence: clamp01(d.Confidence),
		Reasoning:  d.Reasoning,
	}
	if d.LinkedKey != nil {
		v.LinkedKey = strings.TrimSpace(*d.LinkedKey)
	}
	if outcome == model.OutcomeLinkExisting && v.LinkedKey == "" {
		return validator.Verdict{}, eris.New("phase2: LINK_EXISTING without linked_key")
	}
	return v, nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
