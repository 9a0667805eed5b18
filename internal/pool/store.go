// Package pool persists Phase 2 output: the decided-entity pool and the
// immutable decision audit log. Candidates for later items are drawn only
// from here, never from the Phase 1 registry, which would let an item
// match itself or other still-undecided items.
package pool

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sells-group/archivist/internal/model"
	"github.com/sells-group/archivist/internal/registry"
)

// Store is the persistence interface for the decided pool.
type Store interface {
	// Migrate creates or updates the schema.
	Migrate(ctx context.Context) error

	// AddDecided inserts an entity into the decided pool.
	AddDecided(ctx context.Context, e model.DecidedEntity) error

	// Candidates returns decided entities of the given type whose
	// normalized name contains token. Final scoring and ranking happen in
	// the resolver; this is the coarse recall filter.
	Candidates(ctx context.Context, entityType model.EntityType, token string) ([]model.DecidedEntity, error)

	// RecordDecision appends one immutable decision record. Corrections
	// are new records, never edits.
	RecordDecision(ctx context.Context, d model.Decision) error

	// ProcessedPendingIDs returns the IDs of pending items that already
	// have a decision record, so a resumed run can skip them.
	ProcessedPendingIDs(ctx context.Context) (map[string]bool, error)

	// Counts returns pool totals: decided entities, decisions, and
	// decisions awaiting review.
	Counts(ctx context.Context) (decided, decisions, review int64, err error)

	// Close releases the backing connection.
	Close() error
}

// New opens a store for the configured driver: "sqlite" (path DSN) or
// "postgres" (connection string).
func New(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("pool: unknown driver %q", driver)
	}
}

// SearchToken picks the coarse recall token for a display text: the
// longest word of its normalized form. Longest rather than first, so
// "the Great" queries on "great", not "the".
func SearchToken(displayText string) string {
	longest := ""
	for _, w := range strings.Fields(registry.Normalize(displayText)) {
		if len(w) > len(longest) {
			longest = w
		}
	}
	return longest
}

// yearRange converts nullable year columns into a YearRange.
func yearRange(start, end sql.NullInt64) model.YearRange {
	var r model.YearRange
	if start.Valid {
		v := int(start.Int64)
		r.Start = &v
	}
	if end.Valid {
		v := int(end.Int64)
		r.End = &v
	}
	return r
}
