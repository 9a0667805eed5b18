package phase1

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/archivist/internal/checkpoint"
	"github.com/sells-group/archivist/internal/journal"
	"github.com/sells-group/archivist/internal/model"
	"github.com/sells-group/archivist/internal/ner"
	"github.com/sells-group/archivist/internal/registry"
)

// harness wires a runner over real journals and a real checkpoint in a
// temp directory.
type harness struct {
	corpusDir string
	stateDir  string
	mentions  *journal.MentionLog
	pending   *journal.PendingLog
	ckpt      *checkpoint.Manager
	state     *checkpoint.State
	reg       *registry.Registry
}

func newHarness(t *testing.T, corpusDir string) *harness {
	t.Helper()
	stateDir := t.TempDir()

	ckpt := checkpoint.NewManager(filepath.Join(stateDir, "checkpoint.json"))
	state, err := ckpt.Load()
	require.NoError(t, err)

	mentions, err := journal.OpenMentions(filepath.Join(stateDir, "mentions.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { mentions.Close() })

	pending, err := journal.OpenPending(filepath.Join(stateDir, "pending.jsonl"), state.PendingOffset)
	require.NoError(t, err)
	t.Cleanup(func() { pending.Close() })

	reg := registry.New(mentions)
	reg.Restore(state.Registry)

	return &harness{
		corpusDir: corpusDir,
		stateDir:  stateDir,
		mentions:  mentions,
		pending:   pending,
		ckpt:      ckpt,
		state:     state,
		reg:       reg,
	}
}

// reopen simulates a process restart against the same state directory.
func (h *harness) reopen(t *testing.T) *harness {
	t.Helper()
	require.NoError(t, h.mentions.Close())
	require.NoError(t, h.pending.Close())

	ckpt := checkpoint.NewManager(filepath.Join(h.stateDir, "checkpoint.json"))
	state, err := ckpt.Load()
	require.NoError(t, err)

	mentions, err := journal.OpenMentions(filepath.Join(h.stateDir, "mentions.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { mentions.Close() })

	pending, err := journal.OpenPending(filepath.Join(h.stateDir, "pending.jsonl"), state.PendingOffset)
	require.NoError(t, err)
	t.Cleanup(func() { pending.Close() })

	reg := registry.New(mentions)
	reg.Restore(state.Registry)

	return &harness{
		corpusDir: h.corpusDir,
		stateDir:  h.stateDir,
		mentions:  mentions,
		pending:   pending,
		ckpt:      ckpt,
		state:     state,
		reg:       reg,
	}
}

func (h *harness) runner(rec ner.Recognizer, cfg Config) *Runner {
	return NewRunner(cfg, rec, h.reg, h.pending, h.ckpt, h.state)
}

func (h *harness) pendingItems(t *testing.T) []model.PendingItem {
	t.Helper()
	var items []model.PendingItem
	require.NoError(t, journal.ScanPending(filepath.Join(h.stateDir, "pending.jsonl"), func(item model.PendingItem) bool {
		items = append(items, item)
		return true
	}))
	return items
}

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestRunExtractsAndExportsOnce(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{
		"vol1/ch1.txt": "Alexander marched from Pella toward Babylon. Babylon fell without a siege.",
		"vol1/ch2.txt": "The garrison of Babylon watched Alexander enter the gates.",
	})
	rec := &dictRecognizer{names: map[string]model.EntityType{
		"Alexander": model.TypePerson,
		"Babylon":   model.TypeLocation,
		"Pella":     model.TypeLocation,
	}}

	h := newHarness(t, corpus)
	stats, err := h.runner(rec, Config{ChunkSize: 32}).Run(context.Background(), corpus)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.DocumentsProcessed)
	assert.Equal(t, 3, stats.EntitiesDiscovered)
	assert.Equal(t, 6, stats.MentionsAdded)
	assert.Zero(t, stats.ChunksSkipped)

	// Each distinct entity is exported exactly once despite repeats.
	items := h.pendingItems(t)
	require.Len(t, items, 3)
	seen := make(map[string]bool)
	for _, item := range items {
		assert.False(t, seen[item.EntityKey], item.EntityKey)
		seen[item.EntityKey] = true
	}
	assert.True(t, seen["person:alexander"])
	assert.True(t, seen["location:babylon"])
	assert.True(t, seen["location:pella"])

	// Mention offsets point at the exact surface text in the document.
	doc, err := os.ReadFile(filepath.Join(corpus, "vol1/ch1.txt"))
	require.NoError(t, err)
	count := 0
	require.NoError(t, h.mentions.MentionsFor("location:babylon", func(m model.Mention) bool {
		if m.SourcePath == "vol1/ch1.txt" {
			assert.Equal(t, "Babylon", string(doc[m.Start:m.End]))
			count++
		}
		return true
	}))
	assert.Equal(t, 2, count)

	// Checkpoint claims both documents and every exported entity.
	assert.True(t, h.state.Processed["vol1/ch1.txt"])
	assert.True(t, h.state.Processed["vol1/ch2.txt"])
	assert.Len(t, h.state.Registry, 3)
	assert.Positive(t, h.state.PendingOffset)
}

func TestRunResumeSkipsProcessedAndNeverReExports(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{
		"a.txt": "Plato taught in Athens.",
	})
	rec := &dictRecognizer{names: map[string]model.EntityType{
		"Plato":  model.TypePerson,
		"Athens": model.TypeLocation,
	}}

	h := newHarness(t, corpus)
	_, err := h.runner(rec, Config{}).Run(context.Background(), corpus)
	require.NoError(t, err)

	// A new document arrives mentioning one known and one new entity.
	require.NoError(t, os.WriteFile(filepath.Join(corpus, "b.txt"),
		[]byte("Aristotle studied under Plato in Athens."), 0o644))

	h2 := h.reopen(t)
	rec2 := &dictRecognizer{names: map[string]model.EntityType{
		"Plato":     model.TypePerson,
		"Athens":    model.TypeLocation,
		"Aristotle": model.TypePerson,
	}}
	stats, err := h2.runner(rec2, Config{}).Run(context.Background(), corpus)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.DocumentsProcessed)
	assert.Equal(t, 1, stats.DocumentsSkipped)
	assert.Equal(t, 1, stats.EntitiesDiscovered)

	// Plato and Athens were exported by the first run only.
	items := h2.pendingItems(t)
	keys := make(map[string]int)
	for _, item := range items {
		keys[item.EntityKey]++
	}
	assert.Equal(t, 1, keys["person:plato"])
	assert.Equal(t, 1, keys["location:athens"])
	assert.Equal(t, 1, keys["person:aristotle"])
}

func TestRunTruncatesOrphanPendingTail(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{
		"a.txt": "Plato taught in Athens.",
	})
	rec := &dictRecognizer{names: map[string]model.EntityType{
		"Plato": model.TypePerson,
	}}

	h := newHarness(t, corpus)
	_, err := h.runner(rec, Config{}).Run(context.Background(), corpus)
	require.NoError(t, err)
	offsetBefore := h.state.PendingOffset

	// Simulate a crash after a flush but before its checkpoint: bytes
	// past the checkpointed offset that no checkpoint claims.
	pendingFile := filepath.Join(h.stateDir, "pending.jsonl")
	f, err := os.OpenFile(pendingFile, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"id":"orphan","entity_key":"person:socrates"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	h2 := h.reopen(t)
	items := h2.pendingItems(t)
	require.Len(t, items, 1)
	assert.Equal(t, "person:plato", items[0].EntityKey)
	assert.Equal(t, offsetBefore, h2.state.PendingOffset)
}

func TestRunFlagsUnreadableDocument(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{
		"good.txt": "Plato taught in Athens.",
	})
	// A dangling symlink walks as a file but cannot be read.
	require.NoError(t, os.Symlink(filepath.Join(corpus, "absent"), filepath.Join(corpus, "broken.txt")))

	rec := &dictRecognizer{names: map[string]model.EntityType{
		"Plato": model.TypePerson,
	}}

	h := newHarness(t, corpus)
	stats, err := h.runner(rec, Config{}).Run(context.Background(), corpus)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.DocumentsProcessed)
	assert.Equal(t, 1, stats.DocumentsFlagged)
	assert.Equal(t, []string{"broken.txt"}, h.state.AuditFlagged)

	// Flagged documents are marked processed so resume does not loop.
	assert.True(t, h.state.Processed["broken.txt"])
}

func TestRunSkipsFailingChunksButKeepsDocument(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{
		"a.txt": "Plato taught in Athens for many years before the academy closed its doors.",
	})

	h := newHarness(t, corpus)
	stats, err := h.runner(failingRecognizer{}, Config{ChunkSize: 24, ChunkRetries: 2}).Run(context.Background(), corpus)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.DocumentsProcessed)
	assert.Positive(t, stats.ChunksSkipped)
	assert.Zero(t, stats.MentionsAdded)
	assert.True(t, h.state.Processed["a.txt"])
}

func TestRunHonorsExtensionFilter(t *testing.T) {
	corpus := writeCorpus(t, map[string]string{
		"a.txt": "Plato taught in Athens.",
		"b.dat": "Plato again.",
	})
	rec := &dictRecognizer{names: map[string]model.EntityType{
		"Plato": model.TypePerson,
	}}

	h := newHarness(t, corpus)
	stats, err := h.runner(rec, Config{Extensions: []string{".txt"}}).Run(context.Background(), corpus)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.DocumentsProcessed)
	assert.False(t, h.state.Processed["b.dat"])
}
