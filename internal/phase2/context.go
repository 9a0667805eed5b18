package phase2

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/archivist/internal/journal"
	"github.com/sells-group/archivist/internal/model"
)

// ContextRecoverer reconstructs original text windows around a pending
// item's mentions. Pending items deliberately carry only a display
// sample; real context comes from the mention store plus the source
// document, recovered here on demand.
type ContextRecoverer struct {
	mentions  *journal.MentionLog
	corpusDir string

	// One-document cache: consecutive mentions of a key usually cluster
	// in the same source file.
	cachedPath string
	cachedDoc  []byte
}

// NewContextRecoverer reads windows from corpusDir guided by the mention
// log.
func NewContextRecoverer(mentions *journal.MentionLog, corpusDir string) *ContextRecoverer {
	return &ContextRecoverer{mentions: mentions, corpusDir: corpusDir}
}

// Samples returns up to max context windows of window bytes either side
// of the key's mentions. Unreadable or shifted sources are skipped;
// recovery is best-effort.
func (c *ContextRecoverer) Samples(key string, max, window int) []string {
	var samples []string
	err := c.mentions.MentionsFor(key, func(m model.Mention) bool {
		doc, err := c.load(m.SourcePath)
		if err != nil {
			zap.L().Warn("context recovery: source unreadable",
				zap.String("source_path", m.SourcePath),
				zap.Error(err),
			)
			return true
		}
		if m.Start < 0 || m.End > len(doc) || m.End <= m.Start {
			return true
		}
		lo := m.Start - window
		if lo < 0 {
			lo = 0
		}
		hi := m.End + window
		if hi > len(doc) {
			hi = len(doc)
		}
		samples = append(samples, string(doc[lo:hi]))
		return len(samples) < max
	})
	if err != nil {
		zap.L().Warn("context recovery: mention scan failed", zap.String("entity_key", key), zap.Error(err))
	}
	return samples
}

func (c *ContextRecoverer) load(rel string) ([]byte, error) {
	if rel == c.cachedPath && c.cachedDoc != nil {
		return c.cachedDoc, nil
	}
	doc, err := os.ReadFile(filepath.Join(c.corpusDir, rel))
	if err != nil {
		return nil, err
	}
	c.cachedPath = rel
	c.cachedDoc = doc
	return doc, nil
}

var yearRe = regexp.MustCompile(`\b(\d{1,4})\s*(BCE|BC|CE|AD)?\b`)

// InferYears extracts a temporal range from recovered context windows:
// the min and max plausible year mentioned near the entity. Years without
// an era marker must have 3-4 digits to count; "BC"/"BCE" negate.
func InferYears(samples []string) model.YearRange {
	var lo, hi *int
	for _, s := range samples {
		for _, m := range yearRe.FindAllStringSubmatch(s, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			era := m[2]
			if era == "" && len(m[1]) < 3 {
				continue
			}
			if n > 2100 {
				continue
			}
			if era == "BC" || era == "BCE" {
				n = -n
			}
			y := n
			if lo == nil || y < *lo {
				v := y
				lo = &v
			}
			if hi == nil || y > *hi {
				v := y
				hi = &v
			}
		}
	}
	return model.YearRange{Start: lo, End: hi}
}

// contextTokens builds the token set used for context similarity.
func contextTokens(samples []string) map[string]bool {
	tokens := make(map[string]bool)
	for _, s := range samples {
		for _, w := range strings.Fields(strings.ToLower(s)) {
			w = strings.Trim(w, ".,;:!?\"'()[]")
			if len(w) > 2 {
				tokens[w] = true
			}
		}
	}
	return tokens
}
