package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/archivist/internal/checkpoint"
	"github.com/sells-group/archivist/internal/journal"
	"github.com/sells-group/archivist/internal/ner"
	"github.com/sells-group/archivist/internal/phase1"
	"github.com/sells-group/archivist/internal/registry"
)

func checkpointPath() string { return filepath.Join(cfg.State.Dir, "checkpoint.json") }
func mentionsPath() string   { return filepath.Join(cfg.State.Dir, "mentions.jsonl") }
func pendingPath() string    { return filepath.Join(cfg.State.Dir, "pending.jsonl") }

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run Phase 1: chunk, extract, and merge entity mentions",
	Long: `Walk the corpus directory, chunk each document, run NER on every
chunk, and merge recognized spans into the entity registry. Progress is
checkpointed periodically; an interrupted run resumes from the last
checkpoint without reprocessing completed documents or re-exporting
entities to the pending queue.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "extract"))

		if err := os.MkdirAll(cfg.State.Dir, 0o755); err != nil {
			return eris.Wrapf(err, "extract: create state dir %s", cfg.State.Dir)
		}

		ckpt := checkpoint.NewManager(checkpointPath())
		state, err := ckpt.Load()
		if err != nil {
			return eris.Wrap(err, "extract: load checkpoint")
		}

		mentions, err := journal.OpenMentions(mentionsPath())
		if err != nil {
			return eris.Wrap(err, "extract: open mention store")
		}
		defer mentions.Close()

		pending, err := journal.OpenPending(pendingPath(), state.PendingOffset)
		if err != nil {
			return eris.Wrap(err, "extract: open pending queue")
		}
		defer pending.Close()

		reg := registry.New(mentions)
		reg.Restore(state.Registry)

		rec, err := buildRecognizer()
		if err != nil {
			return err
		}
		if c, ok := rec.(interface{ Close() error }); ok {
			defer c.Close()
		}

		log.Info("starting extraction",
			zap.String("corpus", cfg.Corpus.Dir),
			zap.Int("already_processed", len(state.Processed)),
			zap.Int("known_entities", reg.Len()),
		)

		runner := phase1.NewRunner(phase1.Config{
			ChunkSize:       cfg.Extract.ChunkSize,
			CheckpointEvery: cfg.Extract.CheckpointEvery,
			ChunkRetries:    cfg.Extract.ChunkRetries,
			NERTimeout:      time.Duration(cfg.Extract.NERTimeoutSecs) * time.Second,
			Concurrency:     cfg.Extract.Concurrency,
			Extensions:      cfg.Corpus.Extensions,
		}, rec, reg, pending, ckpt, state)

		stats, err := runner.Run(ctx, cfg.Corpus.Dir)
		if err != nil {
			return eris.Wrap(err, "extract")
		}

		fmt.Printf("Extraction complete: %d documents processed, %d skipped, %d flagged; %d mentions, %d new entities\n",
			stats.DocumentsProcessed, stats.DocumentsSkipped, stats.DocumentsFlagged,
			stats.MentionsAdded, stats.EntitiesDiscovered)
		return nil
	},
}

// buildRecognizer picks the NER backend from configuration.
func buildRecognizer() (ner.Recognizer, error) {
	switch cfg.NER.Provider {
	case "local", "":
		return ner.NewLocalRecognizer(cfg.NER.ModelPath)
	case "http":
		if cfg.NER.BaseURL == "" {
			return nil, eris.New("extract: ner.base_url required for http provider")
		}
		timeout := time.Duration(cfg.Extract.NERTimeoutSecs) * time.Second
		return ner.NewHTTPRecognizer(cfg.NER.BaseURL, cfg.NER.RequestsPerSecond, timeout), nil
	default:
		return nil, eris.Errorf("extract: unknown ner provider %q", cfg.NER.Provider)
	}
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
