package model

import "time"

// Mention is one occurrence of an entity's surface text at a specific
// location in a specific source document. Start and End are absolute byte
// offsets into the original document, never into the chunk, so
// doc[Start:End] recovers the exact surface text without re-running
// extraction. Mentions are immutable once appended.
type Mention struct {
	EntityKey  string `json:"entity_key"`
	SourcePath string `json:"source_path"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	ChunkIndex int    `json:"chunk_index"`
}

// PendingItem is the queue unit handed to Phase 2. Created once when an
// entity is first discovered in Phase 1, consumed exactly once; failures
// surface as PENDING decisions, never as re-enqueues.
type PendingItem struct {
	ID           string     `json:"id"`
	EntityKey    string     `json:"entity_key"`
	Type         EntityType `json:"entity_type"`
	DisplayText  string     `json:"display_text"`
	MentionCount int        `json:"mention_count"`
	Sample       string     `json:"sample"`
	CreatedAt    time.Time  `json:"created_at"`
}
