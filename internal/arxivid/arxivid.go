// Package arxivid normalizes arXiv identifiers so that every revision of a
// paper maps to the same dedup key.
package arxivid

import (
	"regexp"
	"strings"
)

var (
	absURLExpr  = regexp.MustCompile(`(?i)arxiv\.org/abs/(.+)$`)
	versionExpr = regexp.MustCompile(`(?i)v\d+$`)
)

// Canonical strips the revision suffix from a raw arXiv identifier. It accepts
// bare IDs ("2501.01234v2"), prefixed IDs ("arXiv:2501.01234v2") and abstract
// URLs ("http://arxiv.org/abs/2501.01234v2"), and is idempotent.
func Canonical(raw string) string {
	id := strings.TrimSpace(raw)
	if m := absURLExpr.FindStringSubmatch(id); m != nil {
		id = m[1]
	}
	id = strings.TrimPrefix(id, "arXiv:")
	id = strings.Trim(id, "/")
	return versionExpr.ReplaceAllString(id, "")
}

// AbsURL returns the version-independent abstract page URL for a canonical ID.
func AbsURL(canonical string) string {
	return "https://arxiv.org/abs/" + canonical
}
