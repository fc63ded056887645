package dedup

import (
	"regexp"
	"strings"
)

var (
	// A title that is itself a markdown link collapses to its link text.
	markdownLinkRe = regexp.MustCompile(`^\[(.+)\]\([^)]*\)$`)
	// Decorative bullets and arrows occasionally prefixed by feed markup.
	leadingBulletRe = regexp.MustCompile(`^[\s•·▪◦‣*\-–—>]+`)
	// Truncation markers appended by upstream renderers.
	trailingEllipsisRe = regexp.MustCompile(`(\.{3}|…)+\s*$`)
	whitespaceRunRe    = regexp.MustCompile(`\s+`)
)

// Normalize maps a raw title to its dedup fingerprint text. It is a total,
// deterministic function: trim, unwrap a whole-title markdown link, strip
// decorative bullets and trailing ellipses, case-fold, collapse whitespace
// runs. Two titles normalizing to the same string are the same fingerprint.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if m := markdownLinkRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	s = leadingBulletRe.ReplaceAllString(s, "")
	s = trailingEllipsisRe.ReplaceAllString(s, "")
	s = strings.ToLower(s)
	s = whitespaceRunRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
