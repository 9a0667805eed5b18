package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/archivist/internal/journal"
	"github.com/sells-group/archivist/internal/phase2"
	"github.com/sells-group/archivist/internal/pool"
	"github.com/sells-group/archivist/pkg/anthropic"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Run Phase 2: disambiguate pending entities against the decided pool",
	Long: `Stream the pending queue in export order and decide, for each
entity, whether it is a new referent or the same as one already in the
decided pool. Items with no plausible candidates are created directly;
the rest go to the LLM, whose answer is vetted by hard validation rules
before an immutable decision record is written. Items already decided
are skipped, so an interrupted run resumes cleanly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "resolve"))

		if cfg.Anthropic.Key == "" {
			return eris.New("resolve: anthropic.key is required")
		}

		store, err := pool.New(ctx, cfg.Pool.Driver, cfg.Pool.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "resolve: open pool store")
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return eris.Wrap(err, "resolve: migrate")
		}

		mentions, err := journal.OpenMentions(mentionsPath())
		if err != nil {
			return eris.Wrap(err, "resolve: open mention store")
		}
		defer mentions.Close()

		llm := anthropic.NewClient(cfg.Anthropic.Key)
		recoverer := phase2.NewContextRecoverer(mentions, cfg.Corpus.Dir)

		runner := phase2.NewRunner(phase2.Config{
			Model:             cfg.Anthropic.Model,
			MaxTokens:         cfg.Anthropic.MaxTokens,
			MaxCandidates:     cfg.Resolve.MaxCandidates,
			MinNameSimilarity: cfg.Resolve.MinNameSimilarity,
			Weights: phase2.Weights{
				Name:     cfg.Resolve.NameWeight,
				Temporal: cfg.Resolve.TemporalWeight,
				Context:  cfg.Resolve.ContextWeight,
			},
			MaxGapYears:       cfg.Resolve.MaxGapYears,
			LLMTimeout:        time.Duration(cfg.Resolve.LLMTimeoutSecs) * time.Second,
			RequestsPerSecond: cfg.Resolve.RequestsPerSecond,
			ContextSamples:    cfg.Resolve.ContextSamples,
			ContextWindow:     cfg.Resolve.ContextWindow,
		}, llm, store, recoverer)

		log.Info("starting resolution",
			zap.String("pool_driver", cfg.Pool.Driver),
			zap.String("model", cfg.Anthropic.Model),
		)

		stats, err := runner.Run(ctx, pendingPath())
		if err != nil {
			return eris.Wrap(err, "resolve")
		}

		fmt.Printf("Resolution complete: %d processed, %d skipped; %d created, %d linked, %d deferred, %d overridden\n",
			stats.ItemsProcessed, stats.ItemsSkipped,
			stats.Created, stats.Linked, stats.Deferred, stats.Overridden)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
