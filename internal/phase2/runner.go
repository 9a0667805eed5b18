// Package phase2 resolves the pending queue produced by extraction:
// each exported entity is matched against the decided pool, judged by the
// LLM when candidates exist, vetted by the hard validator rules, and
// recorded as an immutable decision.
package phase2

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/archivist/internal/journal"
	"github.com/sells-group/archivist/internal/model"
	"github.com/sells-group/archivist/internal/pool"
	"github.com/sells-group/archivist/internal/resilience"
	"github.com/sells-group/archivist/internal/validator"
	"github.com/sells-group/archivist/pkg/anthropic"
)

// Config holds resolution settings.
type Config struct {
	Model             string
	MaxTokens         int64
	MaxCandidates     int
	MinNameSimilarity float64
	Weights           Weights
	MaxGapYears       int
	LLMTimeout        time.Duration
	RequestsPerSecond float64
	ContextSamples    int
	ContextWindow     int
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "claude-haiku-4-5-20251001"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1024
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 5
	}
	if c.MinNameSimilarity <= 0 {
		c.MinNameSimilarity = 0.35
	}
	if c.Weights == (Weights{}) {
		c.Weights = DefaultWeights()
	}
	if c.MaxGapYears <= 0 {
		c.MaxGapYears = validator.DefaultMaxGapYears
	}
	if c.LLMTimeout <= 0 {
		c.LLMTimeout = 60 * time.Second
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 2
	}
	if c.ContextSamples <= 0 {
		c.ContextSamples = 3
	}
	if c.ContextWindow <= 0 {
		c.ContextWindow = 200
	}
	return c
}

// Stats summarizes a resolution run.
type Stats struct {
	ItemsProcessed int
	ItemsSkipped   int
	Created        int
	Linked         int
	Deferred       int
	Overridden     int
	Usage          anthropic.TokenUsage
}

// Runner drives Phase 2 over the pending queue.
type Runner struct {
	cfg       Config
	llm       anthropic.Client
	store     pool.Store
	recoverer *ContextRecoverer
	rules     validator.Rules
	limiter   *rate.Limiter
	usage     anthropic.TokenUsage
	now       func() time.Time
	newID     func() string
}

// NewRunner wires a resolution runner.
func NewRunner(cfg Config, llm anthropic.Client, store pool.Store, recoverer *ContextRecoverer) *Runner {
	cfg = cfg.withDefaults()
	return &Runner{
		cfg:       cfg,
		llm:       llm,
		store:     store,
		recoverer: recoverer,
		rules:     validator.Rules{MaxGapYears: cfg.MaxGapYears},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Run streams the pending queue at pendingPath in append order, resolving
// each item not already decided. Items are independent, so a failed item
// is deferred with a log entry and the run continues; only store write
// failures abort, because losing a decision record would fork the pool's
// history.
func (r *Runner) Run(ctx context.Context, pendingPath string) (Stats, error) {
	done, err := r.store.ProcessedPendingIDs(ctx)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	var runErr error
	err = journal.ScanPending(pendingPath, func(item model.PendingItem) bool {
		if err := ctx.Err(); err != nil {
			runErr = err
			return false
		}
		if done[item.ID] {
			stats.ItemsSkipped++
			return true
		}
		if err := r.resolveItem(ctx, item, &stats); err != nil {
			runErr = err
			return false
		}
		stats.ItemsProcessed++
		return true
	})
	if err != nil {
		return stats, err
	}
	if runErr != nil {
		return stats, runErr
	}

	stats.Usage = r.usage
	stats.Usage.LogCost(r.cfg.Model, "resolve")
	zap.L().Info("resolution complete",
		zap.Int("processed", stats.ItemsProcessed),
		zap.Int("skipped", stats.ItemsSkipped),
		zap.Int("created", stats.Created),
		zap.Int("linked", stats.Linked),
		zap.Int("deferred", stats.Deferred),
		zap.Int("overridden", stats.Overridden),
	)
	return stats, nil
}

func (r *Runner) resolveItem(ctx context.Context, item model.PendingItem, stats *Stats) error {
	samples := r.recoverer.Samples(item.EntityKey, r.cfg.ContextSamples, r.cfg.ContextWindow)
	if len(samples) == 0 && item.Sample != "" {
		samples = []string{item.Sample}
	}
	itemYears := InferYears(samples)

	cands, err := r.store.Candidates(ctx, item.Type, pool.SearchToken(item.DisplayText))
	if err != nil {
		return err
	}
	ranked := rankCandidates(item, itemYears, contextTokens(samples), cands,
		r.cfg.Weights, r.cfg.MinNameSimilarity, r.cfg.MaxCandidates)

	var verdict validator.Verdict
	var override string
	if len(ranked) == 0 {
		// Nothing plausible in the pool; a distinct referent is the only
		// defensible outcome and needs no LLM call.
		verdict = validator.Verdict{
			Outcome:    model.OutcomeCreateNew,
			Confidence: 0.95,
			Reasoning:  "no candidates in decided pool",
		}
	} else {
		verdict, override = r.judge(ctx, item, itemYears, samples, ranked)
	}

	return r.record(ctx, item, itemYears, verdict, override, stats)
}

// judge asks the LLM to disambiguate and vets the answer. Malformed or
// failed LLM output defers the item to review rather than guessing.
func (r *Runner) judge(ctx context.Context, item model.PendingItem, itemYears model.YearRange, samples []string, ranked []ScoredCandidate) (validator.Verdict, string) {
	if err := r.limiter.Wait(ctx); err != nil {
		return deferVerdict("rate limiter interrupted"), ""
	}

	prompt := BuildPrompt(item, itemYears, samples, ranked)
	resp, err := resilience.Do(ctx, resilience.DefaultPolicy(), "phase2: disambiguate",
		func(ctx context.Context) (*anthropic.MessageResponse, error) {
			callCtx, cancel := context.WithTimeout(ctx, r.cfg.LLMTimeout)
			defer cancel()
			return r.llm.CreateMessage(callCtx, anthropic.MessageRequest{
				Model:     r.cfg.Model,
				MaxTokens: r.cfg.MaxTokens,
				System:    disambiguateSystemPrompt,
				Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
			})
		})
	if err != nil {
		zap.L().Warn("disambiguation call failed, deferring",
			zap.String("entity_key", item.EntityKey),
			zap.Error(err),
		)
		return deferVerdict("LLM call failed: " + eris.ToString(err, false)), ""
	}
	r.usage.Add(resp.Usage)

	verdict, err := ParseDecision(resp.Text())
	if err != nil {
		zap.L().Warn("malformed disambiguation response, deferring",
			zap.String("entity_key", item.EntityKey),
			zap.Error(err),
		)
		return deferVerdict("malformed LLM response"), ""
	}

	// The linked key must name one of the candidates actually offered.
	var linked *model.DecidedEntity
	if verdict.Outcome == model.OutcomeLinkExisting {
		for i := range ranked {
			if ranked[i].Entity.Key == verdict.LinkedKey {
				linked = &ranked[i].Entity
				break
			}
		}
		if linked == nil {
			zap.L().Warn("LLM linked to unknown candidate, deferring",
				zap.String("entity_key", item.EntityKey),
				zap.String("linked_key", verdict.LinkedKey),
			)
			return deferVerdict("linked key not among candidates"), ""
		}
	}

	return r.rules.Apply(item, itemYears, linked, verdict)
}

// record persists the decision and, for new referents, admits the entity
// to the decided pool so later items can match it.
func (r *Runner) record(ctx context.Context, item model.PendingItem, itemYears model.YearRange, v validator.Verdict, override string, stats *Stats) error {
	d := model.Decision{
		ID:          r.newID(),
		PendingID:   item.ID,
		EntityKey:   item.EntityKey,
		Outcome:     v.Outcome,
		LinkedKey:   v.LinkedKey,
		Confidence:  v.Confidence,
		Reasoning:   v.Reasoning,
		Override:    override,
		ProcessedAt: r.now().UTC(),
	}
	if err := r.store.RecordDecision(ctx, d); err != nil {
		return err
	}

	switch v.Outcome {
	case model.OutcomeCreateNew:
		stats.Created++
		if err := r.store.AddDecided(ctx, model.DecidedEntity{
			Key:          item.EntityKey,
			DisplayText:  item.DisplayText,
			Type:         item.Type,
			MentionCount: item.MentionCount,
			Years:        itemYears,
			FirstSeen:    item.CreatedAt,
		}); err != nil {
			return err
		}
	case model.OutcomeLinkExisting:
		stats.Linked++
	case model.OutcomePending:
		stats.Deferred++
	}
	if override != "" {
		stats.Overridden++
	}

	zap.L().Debug("decision recorded",
		zap.String("entity_key", item.EntityKey),
		zap.String("decision", string(v.Outcome)),
		zap.Float64("confidence", v.Confidence),
	)
	return nil
}

func deferVerdict(reason string) validator.Verdict {
	return validator.Verdict{Outcome: model.OutcomePending, Confidence: 0, Reasoning: reason}
}
