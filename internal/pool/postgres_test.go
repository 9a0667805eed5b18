package pool

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/archivist/internal/model"
)

func newMockedPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresMigrate(t *testing.T) {
	store, mock := newMockedPostgres(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS decided_entities").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAddDecided(t *testing.T) {
	store, mock := newMockedPostgres(t)

	first := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	start, end := -356, -323
	mock.ExpectExec("INSERT INTO decided_entities").
		WithArgs("person:alexander the great", "Alexander the Great", "alexander the great",
			"person", 40, &start, &end, first).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.AddDecided(context.Background(), model.DecidedEntity{
		Key:          "person:alexander the great",
		DisplayText:  "Alexander the Great",
		Type:         model.TypePerson,
		MentionCount: 40,
		Years:        model.YearRange{Start: &start, End: &end},
		FirstSeen:    first,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCandidates(t *testing.T) {
	store, mock := newMockedPostgres(t)

	first := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	start, end := 1643, 1715
	rows := pgxmock.NewRows([]string{
		"key", "display_text", "entity_type", "mention_count", "year_start", "year_end", "first_seen",
	}).
		AddRow("person:louis xiv", "Louis XIV", "person", 12, &start, &end, first).
		AddRow("person:louis xiii", "Louis XIII", "person", 5, (*int)(nil), (*int)(nil), first.Add(time.Hour))

	mock.ExpectQuery("SELECT key, display_text, entity_type").
		WithArgs("person", "louis").
		WillReturnRows(rows)

	cands, err := store.Candidates(context.Background(), model.TypePerson, "louis")
	require.NoError(t, err)
	require.Len(t, cands, 2)

	assert.Equal(t, "person:louis xiv", cands[0].Key)
	assert.Equal(t, model.TypePerson, cands[0].Type)
	require.NotNil(t, cands[0].Years.Start)
	assert.Equal(t, 1643, *cands[0].Years.Start)
	assert.Nil(t, cands[1].Years.Start)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRecordDecision(t *testing.T) {
	store, mock := newMockedPostgres(t)

	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO decisions").
		WithArgs("d1", "p1", "person:louis xv", "CREATE_NEW", nil,
			0.99, "ordinal conflict", "ordinal conflict: 15 vs 14", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.RecordDecision(context.Background(), model.Decision{
		ID:          "d1",
		PendingID:   "p1",
		EntityKey:   "person:louis xv",
		Outcome:     model.OutcomeCreateNew,
		Confidence:  0.99,
		Reasoning:   "ordinal conflict",
		Override:    "ordinal conflict: 15 vs 14",
		ProcessedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCounts(t *testing.T) {
	store, mock := newMockedPostgres(t)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM decided_entities").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM decisions$").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(9)))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM decisions WHERE decision").
		WithArgs("PENDING").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))

	decided, decisions, review, err := store.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), decided)
	assert.Equal(t, int64(9), decisions)
	assert.Equal(t, int64(2), review)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProcessedPendingIDs(t *testing.T) {
	store, mock := newMockedPostgres(t)

	mock.ExpectQuery("SELECT DISTINCT pending_id FROM decisions").
		WillReturnRows(pgxmock.NewRows([]string{"pending_id"}).AddRow("p1").AddRow("p2"))

	ids, err := store.ProcessedPendingIDs(context.Background())
	require.NoError(t, err)
	assert.True(t, ids["p1"])
	assert.True(t, ids["p2"])
	assert.Len(t, ids, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
