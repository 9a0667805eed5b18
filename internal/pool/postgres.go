package pool

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/archivist/internal/model"
	"github.com/sells-group/archivist/internal/registry"
)

// PgxPool is the subset of pgxpool.Pool the store uses; pgxmock
// implements it for tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool PgxPool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 10
	cfg.MaxConnLifetime = 30 * time.Minute

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: p}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS decided_entities (
	key           TEXT PRIMARY KEY,
	display_text  TEXT NOT NULL,
	norm_text     TEXT NOT NULL,
	entity_type   TEXT NOT NULL,
	mention_count BIGINT NOT NULL DEFAULT 0,
	year_start    INT,
	year_end      INT,
	first_seen    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	id           TEXT PRIMARY KEY,
	pending_id   TEXT NOT NULL,
	entity_key   TEXT NOT NULL,
	decision     TEXT NOT NULL,
	linked_key   TEXT,
	confidence   DOUBLE PRECISION NOT NULL,
	reasoning    TEXT,
	override     TEXT,
	processed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decided_type_norm ON decided_entities(entity_type, norm_text);
CREATE INDEX IF NOT EXISTS idx_decisions_decision ON decisions(decision);
CREATE INDEX IF NOT EXISTS idx_decisions_entity_key ON decisions(entity_key);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) AddDecided(ctx context.Context, e model.DecidedEntity) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO decided_entities (key, display_text, norm_text, entity_type, mention_count, year_start, year_end, first_seen)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (key) DO NOTHING`,
		e.Key, e.DisplayText, registry.Normalize(e.DisplayText), string(e.Type),
		e.MentionCount, e.Years.Start, e.Years.End, e.FirstSeen.UTC(),
	)
	return eris.Wrapf(err, "postgres: add decided %s", e.Key)
}

func (s *PostgresStore) Candidates(ctx context.Context, entityType model.EntityType, token string) ([]model.DecidedEntity, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, display_text, entity_type, mention_count, year_start, year_end, first_seen
		 FROM decided_entities
		 WHERE entity_type = $1 AND norm_text LIKE '%' || $2 || '%'
		 ORDER BY first_seen ASC, key ASC`,
		string(entityType), token,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query candidates")
	}
	defer rows.Close()

	var out []model.DecidedEntity
	for rows.Next() {
		var e model.DecidedEntity
		var typ string
		if err := rows.Scan(&e.Key, &e.DisplayText, &typ, &e.MentionCount, &e.Years.Start, &e.Years.End, &e.FirstSeen); err != nil {
			return nil, eris.Wrap(err, "postgres: scan candidate")
		}
		e.Type = model.EntityType(typ)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate candidates")
}

func (s *PostgresStore) RecordDecision(ctx context.Context, d model.Decision) error {
	var linked any
	if d.LinkedKey != "" {
		linked = d.LinkedKey
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO decisions (id, pending_id, entity_key, decision, linked_key, confidence, reasoning, override, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.PendingID, d.EntityKey, string(d.Outcome), linked,
		d.Confidence, d.Reasoning, d.Override, d.ProcessedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: record decision %s", d.ID)
}

func (s *PostgresStore) ProcessedPendingIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT pending_id FROM decisions`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query processed pending ids")
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pending id")
		}
		ids[id] = true
	}
	return ids, eris.Wrap(rows.Err(), "postgres: iterate pending ids")
}

func (s *PostgresStore) Counts(ctx context.Context) (decided, decisions, review int64, err error) {
	if err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM decided_entities`).Scan(&decided); err != nil {
		return 0, 0, 0, eris.Wrap(err, "postgres: count decided")
	}
	if err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM decisions`).Scan(&decisions); err != nil {
		return 0, 0, 0, eris.Wrap(err, "postgres: count decisions")
	}
	if err = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM decisions WHERE decision = $1`, string(model.OutcomePending)).Scan(&review); err != nil {
		return 0, 0, 0, eris.Wrap(err, "postgres: count review")
	}
	return decided, decisions, review, nil
}
