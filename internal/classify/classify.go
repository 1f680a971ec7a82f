// Package classify tags papers that look introductory or educational and
// produces the ranked, size-limited per-topic lists.
package classify

import (
	"regexp"
	"sort"
	"strings"

	"ArxivDigest/internal/domain"
)

// Multi-word markers are matched as whole phrases; \b keeps single-word
// markers from firing inside unrelated words ("Surveying", "notesbook").
var markerExpr = regexp.MustCompile(`(?i)\b(?:` + strings.Join([]string{
	`surveys?`,
	`tutorials?`,
	`reviews?`,
	`primer`,
	`introduction`,
	`introductory`,
	`lecture notes?`,
	`pedagogical`,
	`overviews?`,
	`a guide`,
	`(?:for )?beginners?`,
	`fundamentals?`,
	`foundations?`,
	`from scratch`,
	`step by step`,
	`how to`,
	`explainer`,
	`roadmap`,
}, `|`) + `)\b`)

var separatorExpr = regexp.MustCompile(`[-_/]`)

// IsEducational reports whether the title or summary carries one of the
// educational-intent markers. Matching is case-insensitive and deterministic.
func IsEducational(title, summary string) bool {
	target := title + "\n" + summary
	target = separatorExpr.ReplaceAllString(target, " ")
	target = strings.Join(strings.Fields(target), " ")
	return markerExpr.MatchString(target)
}

// Classify derives the educational flag for each paper without mutating it.
func Classify(papers []domain.Paper) []domain.ClassifiedPaper {
	classified := make([]domain.ClassifiedPaper, 0, len(papers))
	for _, p := range papers {
		classified = append(classified, domain.ClassifiedPaper{
			Paper:       p,
			Educational: IsEducational(p.Title, p.Summary),
		})
	}
	return classified
}

// RankAndLimit sorts papers by submission time descending (ties broken by
// canonical ID ascending) and returns the top maxLatest papers plus the top
// maxEducational among those flagged educational. The lists may overlap;
// limits clamp instead of erroring.
func RankAndLimit(papers []domain.ClassifiedPaper, maxLatest, maxEducational int) (latest, educational []domain.ClassifiedPaper) {
	ranked := make([]domain.ClassifiedPaper, len(papers))
	copy(ranked, papers)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].Paper, ranked[j].Paper
		if !a.SubmittedAt.Equal(b.SubmittedAt) {
			return a.SubmittedAt.After(b.SubmittedAt)
		}
		return a.ID < b.ID
	})

	latest = head(ranked, maxLatest)

	var pool []domain.ClassifiedPaper
	for _, p := range ranked {
		if p.Educational {
			pool = append(pool, p)
		}
	}
	educational = head(pool, maxEducational)

	return latest, educational
}

func head(papers []domain.ClassifiedPaper, limit int) []domain.ClassifiedPaper {
	if limit < 0 {
		limit = 0
	}
	if limit > len(papers) {
		limit = len(papers)
	}
	return papers[:limit]
}
