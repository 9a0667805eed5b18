// Package validator applies the hard, non-overridable rules that vet LLM
// disambiguation decisions. The LLM is trusted for nuanced judgment but
// never to violate structurally verifiable facts: rules only ever
// downgrade a decision toward the safer outcome, never upgrade one.
package validator

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/archivist/internal/model"
)

// DefaultMaxGapYears is the temporal distance beyond which a link needs a
// human decision. Large gaps can still be legitimate (long-lived
// institutions), so the rule defers rather than vetoes.
const DefaultMaxGapYears = 200

// Verdict is a disambiguation decision before or after validation.
type Verdict struct {
	Outcome    model.Outcome
	LinkedKey  string
	Confidence float64
	Reasoning  string
}

// Rules holds the validator configuration.
type Rules struct {
	MaxGapYears int
}

// Default returns the standard rule set.
func Default() Rules {
	return Rules{MaxGapYears: DefaultMaxGapYears}
}

// Apply vets a verdict linking item to cand. Rules fire only on
// LINK_EXISTING; CREATE_NEW and PENDING pass through untouched. The
// returned string is the override reason when a rule changed the outcome,
// empty otherwise.
func (r Rules) Apply(item model.PendingItem, itemYears model.YearRange, cand *model.DecidedEntity, v Verdict) (Verdict, string) {
	if v.Outcome != model.OutcomeLinkExisting || cand == nil {
		return v, ""
	}

	// Differing entity types can never be the same referent.
	if item.Type != cand.Type {
		reason := fmt.Sprintf("type mismatch: %s vs %s", item.Type, cand.Type)
		return r.downgrade(item, v, model.OutcomePending, reason), reason
	}

	// Differing ordinals identify different generations of the same name
	// regardless of LLM confidence: Louis XIV is never Louis XV.
	if itemOrd, ok := Ordinal(item.DisplayText); ok {
		if candOrd, ok := Ordinal(cand.DisplayText); ok && itemOrd != candOrd {
			reason := fmt.Sprintf("ordinal conflict: %d vs %d", itemOrd, candOrd)
			return r.downgrade(item, v, model.OutcomeCreateNew, reason), reason
		}
	}

	// A large temporal gap may still be legitimate, so defer to review
	// instead of rejecting outright.
	maxGap := r.MaxGapYears
	if maxGap <= 0 {
		maxGap = DefaultMaxGapYears
	}
	if gap, ok := itemYears.GapYears(cand.Years); ok && gap > maxGap {
		reason := fmt.Sprintf("temporal gap %d years exceeds %d", gap, maxGap)
		return r.downgrade(item, v, model.OutcomePending, reason), reason
	}

	return v, ""
}

func (r Rules) downgrade(item model.PendingItem, v Verdict, to model.Outcome, reason string) Verdict {
	zap.L().Info("validator override",
		zap.String("entity_key", item.EntityKey),
		zap.String("llm_decision", string(v.Outcome)),
		zap.String("downgraded_to", string(to)),
		zap.String("reason", reason),
	)
	out := v
	out.Outcome = to
	if to != model.OutcomeLinkExisting {
		out.LinkedKey = ""
	}
	return out
}
