package registry

import (
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/archivist/internal/model"
)

// MentionSink receives every mention the registry accepts. In production
// this is the append-only mention log.
type MentionSink interface {
	Append(m model.Mention) error
}

// Registry deduplicates entity mentions discovered within Phase 1 into
// canonical keys. It is owned by a single Phase 1 run and mutated only by
// that run's pipeline goroutine.
type Registry struct {
	sink     MentionSink
	entities map[string]*model.Entity
	now      func() time.Time
}

// New creates an empty registry writing mentions to sink.
func New(sink MentionSink) *Registry {
	return &Registry{
		sink:     sink,
		entities: make(map[string]*model.Entity),
		now:      time.Now,
	}
}

// AddMention normalizes text into a registry key, records the mention, and
// returns the canonical entity plus whether this is its first occurrence.
// A first occurrence is the caller's cue to export a pending item; repeat
// occurrences only increment the count and append the mention, so a key is
// never exported twice.
func (r *Registry) AddMention(text string, entityType model.EntityType, sourcePath string, start, end, chunkIndex int) (*model.Entity, bool, error) {
	if !entityType.Valid() {
		return nil, false, eris.Errorf("registry: unknown entity type %q", entityType)
	}

	key := Key(entityType, text)
	ent, ok := r.entities[key]
	isNew := !ok
	if isNew {
		ent = &model.Entity{
			Key:         key,
			DisplayText: text,
			Type:        entityType,
			FirstSeen:   r.now().UTC(),
		}
		r.entities[key] = ent
	}
	ent.MentionCount++

	err := r.sink.Append(model.Mention{
		EntityKey:  key,
		SourcePath: sourcePath,
		Start:      start,
		End:        end,
		ChunkIndex: chunkIndex,
	})
	if err != nil {
		return nil, false, eris.Wrap(err, "registry: append mention")
	}

	return ent, isNew, nil
}

// Get returns the entity for a key, or nil.
func (r *Registry) Get(key string) *model.Entity {
	return r.entities[key]
}

// Len returns the number of distinct entities.
func (r *Registry) Len() int {
	return len(r.entities)
}

// SummaryEntry is the checkpointed view of one entity: counts only, never
// mention lists, so checkpoint size is bounded by distinct entities rather
// than corpus size.
type SummaryEntry struct {
	DisplayText  string           `json:"display_text"`
	Type         model.EntityType `json:"entity_type"`
	MentionCount int              `json:"mention_count"`
	FirstSeen    time.Time        `json:"first_seen"`
}

// Summary exports the registry state for checkpointing. Every key present
// in a summary has already been exported to the pending queue.
func (r *Registry) Summary() map[string]SummaryEntry {
	out := make(map[string]SummaryEntry, len(r.entities))
	for key, ent := range r.entities {
		out[key] = SummaryEntry{
			DisplayText:  ent.DisplayText,
			Type:         ent.Type,
			MentionCount: ent.MentionCount,
			FirstSeen:    ent.FirstSeen,
		}
	}
	return out
}

// Restore rebuilds registry state from a checkpoint summary. Restored keys
// count as already seen, so a resumed run never re-exports them.
func (r *Registry) Restore(summary map[string]SummaryEntry) {
	for key, e := range summary {
		r.entities[key] = &model.Entity{
			Key:          key,
			DisplayText:  e.DisplayText,
			Type:         e.Type,
			MentionCount: e.MentionCount,
			FirstSeen:    e.FirstSeen,
		}
	}
}
