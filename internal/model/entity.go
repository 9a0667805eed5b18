package model

import (
	"fmt"
	"time"
)

// EntityType is the fixed taxonomy of entities the pipeline extracts.
type EntityType string

const (
	TypePerson   EntityType = "person"
	TypeLocation EntityType = "location"
	TypeEvent    EntityType = "event"
	TypePolity   EntityType = "polity"
	TypePeriod   EntityType = "period"
)

// AllEntityTypes lists every valid entity type.
var AllEntityTypes = []EntityType{TypePerson, TypeLocation, TypeEvent, TypePolity, TypePeriod}

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case TypePerson, TypeLocation, TypeEvent, TypePolity, TypePeriod:
		return true
	}
	return false
}

// Entity is a canonical, deduplicated referent. Key is the stable
// identifier "<type>:<normalized text>"; two entities with the same key
// are the same entity by construction.
type Entity struct {
	Key          string     `json:"key"`
	DisplayText  string     `json:"display_text"`
	Type         EntityType `json:"entity_type"`
	MentionCount int        `json:"mention_count"`
	FirstSeen    time.Time  `json:"first_seen"`
}

// YearRange is an inferred temporal span. Either bound may be unknown.
// Negative years are BC.
type YearRange struct {
	Start *int `json:"start,omitempty"`
	End   *int `json:"end,omitempty"`
}

// Known reports whether at least one bound was inferred.
func (r YearRange) Known() bool {
	return r.Start != nil || r.End != nil
}

// GapYears returns the smallest distance in years between two ranges, or
// (0, false) when either range is unknown. Overlapping ranges have gap 0.
func (r YearRange) GapYears(other YearRange) (int, bool) {
	if !r.Known() || !other.Known() {
		return 0, false
	}
	aLo, aHi := r.bounds()
	bLo, bHi := other.bounds()
	if aHi >= bLo && bHi >= aLo {
		return 0, true
	}
	if aHi < bLo {
		return bLo - aHi, true
	}
	return aLo - bHi, true
}

// Overlap returns the fraction in [0,1] expressing how compatible two
// ranges are: 1 for overlapping, decaying toward 0 as the gap grows.
func (r YearRange) Overlap(other YearRange) float64 {
	gap, ok := r.GapYears(other)
	if !ok {
		// Unknown on either side is neither evidence for nor against.
		return 0.5
	}
	if gap <= 0 {
		return 1
	}
	if gap >= 1000 {
		return 0
	}
	return 1 - float64(gap)/1000
}

func (r YearRange) bounds() (lo, hi int) {
	switch {
	case r.Start != nil && r.End != nil:
		return *r.Start, *r.End
	case r.Start != nil:
		return *r.Start, *r.Start
	default:
		return *r.End, *r.End
	}
}

func (r YearRange) String() string {
	switch {
	case r.Start != nil && r.End != nil:
		return fmt.Sprintf("%d to %d", *r.Start, *r.End)
	case r.Start != nil:
		return fmt.Sprintf("from %d", *r.Start)
	case r.End != nil:
		return fmt.Sprintf("until %d", *r.End)
	default:
		return "unknown"
	}
}
