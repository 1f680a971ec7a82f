// Package render turns per-topic ranked lists into Discord-sized message
// chunks. Chunk boundaries fall on block or line boundaries, never inside one
// paper's rendered line.
package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"ArxivDigest/internal/config"
	"ArxivDigest/internal/domain"
)

const ellipsis = "..."

// Section is one topic's ranked output ready for rendering.
type Section struct {
	Topic       string
	Latest      []domain.ClassifiedPaper
	Educational []domain.ClassifiedPaper
}

// Empty reports whether the section carries no papers at all.
func (s Section) Empty() bool {
	return len(s.Latest) == 0 && len(s.Educational) == 0
}

// Renderer formats digest blocks and splits them into bounded messages.
type Renderer struct {
	headerTemplate   string
	titleMaxLength   int
	maxContentLength int
	skipEmptyTopics  bool
	location         *time.Location
}

// New builds a renderer from the Discord channel settings and report timezone.
func New(cfg config.DiscordConfig, loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{
		headerTemplate:   cfg.HeaderTemplate,
		titleMaxLength:   cfg.TitleMaxLength,
		maxContentLength: cfg.MaxContentLength,
		skipEmptyTopics:  cfg.SkipEmptyTopics,
		location:         loc,
	}
}

// Render produces the ordered message chunks for one run.
func (r *Renderer) Render(now, cutoff time.Time, sections []Section) []string {
	blocks := r.buildBlocks(now, cutoff, sections)
	return splitBlocks(blocks, r.maxContentLength)
}

func (r *Renderer) buildBlocks(now, cutoff time.Time, sections []Section) []string {
	local := now.In(r.location)
	header := r.headerTemplate
	header = strings.ReplaceAll(header, "{date}", local.Format("2006-01-02"))
	header = strings.ReplaceAll(header, "{datetime}", local.Format("2006-01-02 15:04 MST"))

	counts := make([]string, 0, len(sections))
	for _, s := range sections {
		counts = append(counts, fmt.Sprintf("%s (latest %d, educational %d)", s.Topic, len(s.Latest), len(s.Educational)))
	}

	blocks := []string{strings.Join([]string{
		header,
		"Cutoff (UTC): " + cutoff.UTC().Format(time.RFC3339),
		"Counts: " + strings.Join(counts, ", "),
	}, "\n")}

	for _, s := range sections {
		if s.Empty() && r.skipEmptyTopics {
			continue
		}
		blocks = append(blocks, r.topicBlock(s))
	}

	return blocks
}

func (r *Renderer) topicBlock(s Section) string {
	lines := []string{
		fmt.Sprintf("[%s] latest %d / educational ✔︎ %d", s.Topic, len(s.Latest), len(s.Educational)),
		"Latest (submittedDate desc):",
	}
	if len(s.Latest) == 0 {
		lines = append(lines, "- (no new papers)")
	}
	for _, p := range s.Latest {
		lines = append(lines, r.entryLine(p))
	}

	lines = append(lines, "Educational / Beginner-friendly ✔︎:")
	if len(s.Educational) == 0 {
		lines = append(lines, "- (no educational papers)")
	}
	for _, p := range s.Educational {
		lines = append(lines, r.entryLine(p))
	}

	return strings.Join(lines, "\n")
}

func (r *Renderer) entryLine(p domain.ClassifiedPaper) string {
	mark := ""
	if p.Educational {
		mark = "✔︎ "
	}
	title := truncate(compact(p.Paper.Title), r.titleMaxLength)
	if title == "" {
		title = "(untitled)"
	}
	return fmt.Sprintf("- %s%s - %s - %s - %s",
		mark, title, authorLabel(p.Paper.Authors), category(p.Paper), p.Paper.URL)
}

func category(p domain.Paper) string {
	if p.PrimaryCategory != "" {
		return p.PrimaryCategory
	}
	return "unknown"
}

func authorLabel(authors []string) string {
	if len(authors) == 0 {
		return "Unknown"
	}
	if len(authors) > 1 {
		return authors[0] + " et al."
	}
	return authors[0]
}

func compact(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// truncate limits the title to maxLen characters. Titles carry accents and
// math symbols, so the cut counts runes, never bytes.
func truncate(text string, maxLen int) string {
	if maxLen < 0 {
		maxLen = 0
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= len(ellipsis) {
		return string(runes[:maxLen])
	}
	return strings.TrimRight(string(runes[:maxLen-len(ellipsis)]), " ") + ellipsis
}

// splitBlocks packs blocks into messages of at most maxLen characters. A block
// that does not fit is split at line boundaries; a single line longer than
// maxLen is hard-split as a last resort.
func splitBlocks(blocks []string, maxLen int) []string {
	var messages []string
	var current string

	flush := func() {
		if current != "" {
			messages = append(messages, current)
			current = ""
		}
	}

	appendPiece := func(piece string) {
		if current == "" {
			if len(piece) <= maxLen {
				current = piece
				return
			}
			messages = append(messages, hardSplit(piece, maxLen)...)
			return
		}

		candidate := current + "\n\n" + piece
		if len(candidate) <= maxLen {
			current = candidate
			return
		}

		flush()
		if len(piece) <= maxLen {
			current = piece
			return
		}
		messages = append(messages, hardSplit(piece, maxLen)...)
	}

	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		if len(block) <= maxLen {
			appendPiece(block)
			continue
		}

		for _, piece := range splitAtLines(block, maxLen) {
			appendPiece(piece)
		}
	}

	flush()
	return messages
}

// splitAtLines breaks an oversized block into pieces that each fit maxLen,
// cutting only between lines (except single lines beyond the limit).
func splitAtLines(block string, maxLen int) []string {
	var pieces []string
	var current string

	for _, line := range strings.Split(block, "\n") {
		if len(line) > maxLen {
			if current != "" {
				pieces = append(pieces, current)
				current = ""
			}
			pieces = append(pieces, hardSplit(line, maxLen)...)
			continue
		}

		if current == "" {
			current = line
			continue
		}

		candidate := current + "\n" + line
		if len(candidate) <= maxLen {
			current = candidate
			continue
		}

		pieces = append(pieces, current)
		current = line
	}

	if current != "" {
		pieces = append(pieces, current)
	}
	return pieces
}

// hardSplit cuts on the last rune boundary at or before maxLen bytes, so no
// chunk ever carries half of a multi-byte rune.
func hardSplit(text string, maxLen int) []string {
	if maxLen <= 0 {
		return []string{text}
	}
	var parts []string
	for len(text) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = maxLen
		}
		parts = append(parts, text[:cut])
		text = text[cut:]
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}
