package model

import "time"

// Outcome is the disambiguation verdict for a pending item.
type Outcome string

const (
	OutcomeCreateNew    Outcome = "CREATE_NEW"
	OutcomeLinkExisting Outcome = "LINK_EXISTING"
	OutcomePending      Outcome = "PENDING"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeCreateNew, OutcomeLinkExisting, OutcomePending:
		return true
	}
	return false
}

// Decision is the immutable audit record produced by Phase 2. Corrections
// are new records, never edits. Override carries the validator's reason
// when a rule downgraded the LLM's verdict.
type Decision struct {
	ID          string    `json:"id"`
	PendingID   string    `json:"pending_id"`
	EntityKey   string    `json:"entity_key"`
	Outcome     Outcome   `json:"decision"`
	LinkedKey   string    `json:"linked_entity_key,omitempty"`
	Confidence  float64   `json:"confidence"`
	Reasoning   string    `json:"reasoning,omitempty"`
	Override    string    `json:"override,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// DecidedEntity is a member of the decided pool: an entity Phase 2 has
// already finalized, used as the candidate source for later items.
type DecidedEntity struct {
	Key          string     `json:"key"`
	DisplayText  string     `json:"display_text"`
	Type         EntityType `json:"entity_type"`
	MentionCount int        `json:"mention_count"`
	Years        YearRange  `json:"years"`
	FirstSeen    time.Time  `json:"first_seen"`
}
