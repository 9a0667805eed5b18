package pool

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/archivist/internal/model"
	"github.com/sells-group/archivist/internal/registry"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS decided_entities (
	key           TEXT PRIMARY KEY,
	display_text  TEXT NOT NULL,
	norm_text     TEXT NOT NULL,
	entity_type   TEXT NOT NULL,
	mention_count INTEGER NOT NULL DEFAULT 0,
	year_start    INTEGER,
	year_end      INTEGER,
	first_seen    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	id           TEXT PRIMARY KEY,
	pending_id   TEXT NOT NULL,
	entity_key   TEXT NOT NULL,
	decision     TEXT NOT NULL,
	linked_key   TEXT,
	confidence   REAL NOT NULL,
	reasoning    TEXT,
	override     TEXT,
	processed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decided_type_norm ON decided_entities(entity_type, norm_text);
CREATE INDEX IF NOT EXISTS idx_decisions_decision ON decisions(decision);
CREATE INDEX IF NOT EXISTS idx_decisions_entity_key ON decisions(entity_key);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) AddDecided(ctx context.Context, e model.DecidedEntity) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decided_entities (key, display_text, norm_text, entity_type, mention_count, year_start, year_end, first_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO NOTHING`,
		e.Key, e.DisplayText, registry.Normalize(e.DisplayText), string(e.Type),
		e.MentionCount, e.Years.Start, e.Years.End, e.FirstSeen.UTC(),
	)
	return eris.Wrapf(err, "sqlite: add decided %s", e.Key)
}

func (s *SQLiteStore) Candidates(ctx context.Context, entityType model.EntityType, token string) ([]model.DecidedEntity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, display_text, entity_type, mention_count, year_start, year_end, first_seen
		 FROM decided_entities
		 WHERE entity_type = ? AND norm_text LIKE '%' || ? || '%'
		 ORDER BY first_seen ASC, key ASC`,
		string(entityType), token,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query candidates")
	}
	defer rows.Close()

	var out []model.DecidedEntity
	for rows.Next() {
		var e model.DecidedEntity
		var typ string
		var yearStart, yearEnd sql.NullInt64
		var firstSeen time.Time
		if err := rows.Scan(&e.Key, &e.DisplayText, &typ, &e.MentionCount, &yearStart, &yearEnd, &firstSeen); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		e.Type = model.EntityType(typ)
		e.Years = yearRange(yearStart, yearEnd)
		e.FirstSeen = firstSeen
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate candidates")
}

func (s *SQLiteStore) RecordDecision(ctx context.Context, d model.Decision) error {
	var linked any
	if d.LinkedKey != "" {
		linked = d.LinkedKey
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions (id, pending_id, entity_key, decision, linked_key, confidence, reasoning, override, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.PendingID, d.EntityKey, string(d.Outcome), linked,
		d.Confidence, d.Reasoning, d.Override, d.ProcessedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: record decision %s", d.ID)
}

func (s *SQLiteStore) ProcessedPendingIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT pending_id FROM decisions`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query processed pending ids")
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pending id")
		}
		ids[id] = true
	}
	return ids, eris.Wrap(rows.Err(), "sqlite: iterate pending ids")
}

func (s *SQLiteStore) Counts(ctx context.Context) (decided, decisions, review int64, err error) {
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decided_entities`).Scan(&decided); err != nil {
		return 0, 0, 0, eris.Wrap(err, "sqlite: count decided")
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decisions`).Scan(&decisions); err != nil {
		return 0, 0, 0, eris.Wrap(err, "sqlite: count decisions")
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decisions WHERE decision = ?`, string(model.OutcomePending)).Scan(&review); err != nil {
		return 0, 0, 0, eris.Wrap(err, "sqlite: count review")
	}
	return decided, decisions, review, nil
}
