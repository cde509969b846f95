package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var codeNormalizer = transform.Chain(
	norm.NFKC,
	width.Fold,
	runes.Remove(runes.In(unicode.Zs)),
)

var upperCaser = cases.Upper(language.Und)

// NormalizeCode canonicalises a user-entered redemption code: Unicode
// compatibility normalisation, full-width to half-width folding, space
// removal, and upper-casing. "ﬆore５０ " and "STORE50" compare equal after
// normalisation.
func NormalizeCode(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	folded, _, err := transform.String(codeNormalizer, trimmed)
	if err != nil {
		folded = trimmed
	}
	return upperCaser.String(folded)
}
