// Package phase1 is the extract+merge pipeline: it turns raw source
// documents into mention records and newly discovered pending items, with
// periodic checkpoints so an interrupted run resumes exactly where it
// left off.
package phase1

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/archivist/internal/checkpoint"
	"github.com/sells-group/archivist/internal/journal"
	"github.com/sells-group/archivist/internal/model"
	"github.com/sells-group/archivist/internal/ner"
	"github.com/sells-group/archivist/internal/registry"
	"github.com/sells-group/archivist/internal/resilience"
)

// Config tunes the Phase 1 runner.
type Config struct {
	// ChunkSize is the chunk length in bytes.
	ChunkSize int
	// CheckpointEvery is the number of documents between flush+checkpoint
	// steps. Checkpoint writes are O(distinct entities), far smaller than
	// O(mentions), which is why saving is periodic rather than per-record.
	CheckpointEvery int
	// ChunkRetries bounds retries of a failed NER call before the chunk
	// is skipped.
	ChunkRetries int
	// NERTimeout bounds each NER call.
	NERTimeout time.Duration
	// Concurrency bounds in-flight NER calls within one document.
	Concurrency int
	// Extensions filters corpus files (lowercase, with dot). Empty means
	// every regular file.
	Extensions []string
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = 25
	}
	if c.ChunkRetries <= 0 {
		c.ChunkRetries = 3
	}
	if c.NERTimeout <= 0 {
		c.NERTimeout = 60 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	return c
}

// Runner owns one Phase 1 run. The registry and pending buffer are
// mutated only by Run's goroutine; NER calls fan out, their results are
// applied sequentially in chunk order.
type Runner struct {
	cfg     Config
	rec     ner.Recognizer
	reg     *registry.Registry
	pending *journal.PendingLog
	ckpt    *checkpoint.Manager
	state   *checkpoint.State
}

// NewRunner assembles a runner from its collaborators. state is the
// loaded (or fresh) checkpoint; the registry must already be restored
// from it.
func NewRunner(cfg Config, rec ner.Recognizer, reg *registry.Registry, pending *journal.PendingLog, ckpt *checkpoint.Manager, state *checkpoint.State) *Runner {
	return &Runner{
		cfg:     cfg.withDefaults(),
		rec:     rec,
		reg:     reg,
		pending: pending,
		ckpt:    ckpt,
		state:   state,
	}
}

// Stats summarizes a completed (or interrupted-and-finished) run.
type Stats struct {
	DocumentsProcessed int
	DocumentsSkipped   int
	DocumentsFlagged   int
	ChunksSkipped      int
	MentionsAdded      int
	EntitiesDiscovered int
}

// Run processes every unprocessed document under corpusDir. The unit of
// resumability is a whole document: a document interrupted mid-chunking
// is simply redone in full on resume, which the registry tolerates as
// bounded duplication under exact-key merge.
func (r *Runner) Run(ctx context.Context, corpusDir string) (*Stats, error) {
	paths, err := listCorpus(corpusDir, r.cfg.Extensions)
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	sinceCheckpoint := 0
	for _, rel := range paths {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if r.state.Processed[rel] {
			stats.DocumentsSkipped++
			continue
		}

		if err := r.processDocument(ctx, corpusDir, rel, stats); err != nil {
			return stats, err
		}
		r.state.Processed[rel] = true
		sinceCheckpoint++

		if sinceCheckpoint >= r.cfg.CheckpointEvery {
			if err := r.flushAndCheckpoint(); err != nil {
				return stats, err
			}
			sinceCheckpoint = 0
		}
	}

	if err := r.flushAndCheckpoint(); err != nil {
		return stats, err
	}

	zap.L().Info("phase 1 complete",
		zap.Int("documents_processed", stats.DocumentsProcessed),
		zap.Int("documents_skipped", stats.DocumentsSkipped),
		zap.Int("documents_flagged", stats.DocumentsFlagged),
		zap.Int("chunks_skipped", stats.ChunksSkipped),
		zap.Int("mentions_added", stats.MentionsAdded),
		zap.Int("entities_discovered", stats.EntitiesDiscovered),
	)
	return stats, nil
}

// processDocument chunks one document, runs NER per chunk, and feeds
// every span into the registry. An unreadable document is logged, marked
// processed to avoid retry loops, and flagged for manual audit; it never
// aborts the run.
func (r *Runner) processDocument(ctx context.Context, corpusDir, rel string, stats *Stats) error {
	data, err := os.ReadFile(filepath.Join(corpusDir, rel))
	if err != nil {
		zap.L().Error("unreadable source document, flagging for audit",
			zap.String("source_path", rel),
			zap.Error(err),
		)
		r.state.AuditFlagged = append(r.state.AuditFlagged, rel)
		stats.DocumentsFlagged++
		return nil
	}

	chunks := Split(string(data), r.cfg.ChunkSize)
	results := make([][]ner.Span, len(chunks))
	chunkErrs := make([]error, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			results[i], chunkErrs[i] = r.recognizeChunk(gctx, chunk)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Chunk failures are skipped, not fatal: one opaque-service hiccup
	// must not discard the rest of the document.
	for i, chunkErr := range chunkErrs {
		if chunkErr != nil {
			zap.L().Warn("chunk extraction failed after retries, skipping",
				zap.String("source_path", rel),
				zap.Int("chunk_index", i),
				zap.Error(chunkErr),
			)
			stats.ChunksSkipped++
		}
	}

	// Apply results sequentially in chunk order: registry and pending
	// buffer have a single writer.
	for i, chunk := range chunks {
		for _, span := range results[i] {
			if span.Start < 0 || span.End > len(chunk.Text) || span.End <= span.Start {
				zap.L().Warn("span offsets outside chunk, dropping",
					zap.String("source_path", rel),
					zap.Int("chunk_index", chunk.Index),
					zap.Int("start", span.Start),
					zap.Int("end", span.End),
				)
				continue
			}
			ent, isNew, err := r.reg.AddMention(
				span.Text, span.Type, rel,
				chunk.Start+span.Start, chunk.Start+span.End, chunk.Index,
			)
			if err != nil {
				return eris.Wrapf(err, "phase1: add mention in %s", rel)
			}
			stats.MentionsAdded++
			if isNew {
				stats.EntitiesDiscovered++
				r.pending.Enqueue(model.PendingItem{
					ID:           uuid.New().String(),
					EntityKey:    ent.Key,
					Type:         ent.Type,
					DisplayText:  ent.DisplayText,
					MentionCount: ent.MentionCount,
					Sample:       span.Text,
					CreatedAt:    ent.FirstSeen,
				})
			}
		}
	}
	stats.DocumentsProcessed++
	return nil
}

// recognizeChunk calls the NER service with bounded retry and a per-call
// timeout.
func (r *Runner) recognizeChunk(ctx context.Context, chunk Chunk) ([]ner.Span, error) {
	policy := resilience.Policy{MaxAttempts: r.cfg.ChunkRetries}
	return resilience.Do(ctx, policy, "ner.recognize", func(ctx context.Context) ([]ner.Span, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.NERTimeout)
		defer cancel()
		return r.rec.Recognize(callCtx, chunk.Text)
	})
}

// flushAndCheckpoint is the one atomic logical step that makes resume
// safe: flush the pending buffer first, then save a checkpoint recording
// the flushed offset. A checkpoint therefore never claims entities whose
// queue entries are not yet durable. Failures here are fatal.
func (r *Runner) flushAndCheckpoint() error {
	r.pending.UpdateBuffered(func(item *model.PendingItem) {
		if ent := r.reg.Get(item.EntityKey); ent != nil {
			item.MentionCount = ent.MentionCount
		}
	})

	offset, err := r.pending.Flush()
	if err != nil {
		return eris.Wrap(err, "phase1: flush pending queue")
	}

	r.state.Registry = r.reg.Summary()
	r.state.PendingOffset = offset
	if err := r.ckpt.Save(r.state); err != nil {
		return eris.Wrap(err, "phase1: save checkpoint")
	}

	zap.L().Debug("checkpoint saved",
		zap.Int("processed_documents", len(r.state.Processed)),
		zap.Int("entities", len(r.state.Registry)),
		zap.Int64("pending_offset", offset),
	)
	return nil
}

// listCorpus walks root and returns matching files as sorted relative
// paths. The full relative path, never the bare filename, identifies a
// document so same-named files in different directories cannot collide.
func listCorpus(root string, extensions []string) ([]string, error) {
	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[strings.ToLower(ext)] = true
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if len(allowed) > 0 && !allowed[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "phase1: walk corpus %s", root)
	}
	sort.Strings(paths)
	return paths, nil
}
