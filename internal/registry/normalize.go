package registry

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/archivist/internal/model"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize standardizes surface text for key construction:
//  1. Unicode NFKC normalization
//  2. Case folding
//  3. Whitespace collapsed to single spaces, trimmed
//
// Merging in Phase 1 is purely syntactic over this form, with no fuzzy
// matching. Same surface text in different documents can still
// denote different referents ("Plato" the philosopher vs. a namesake);
// that known over-merge is observed and split in Phase 2, not here.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	// Casers are stateful, so build one per call.
	text = cases.Fold().String(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Key computes the stable registry key for a surface text and type.
func Key(entityType model.EntityType, text string) string {
	return string(entityType) + ":" + Normalize(text)
}
