package render

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"ArxivDigest/internal/config"
	"ArxivDigest/internal/domain"
)

func testConfig() config.DiscordConfig {
	return config.DiscordConfig{
		MaxContentLength: 2000,
		TitleMaxLength:   120,
		HeaderTemplate:   "arXiv Digest ({date})",
	}
}

func entry(id, title string, educational bool) domain.ClassifiedPaper {
	return domain.ClassifiedPaper{
		Paper: domain.Paper{
			ID:              id,
			Title:           title,
			Authors:         []string{"Alice Example", "Bob Example"},
			PrimaryCategory: "cs.LG",
			URL:             "https://arxiv.org/abs/" + id,
			SubmittedAt:     time.Date(2026, time.August, 20, 9, 0, 0, 0, time.UTC),
		},
		Educational: educational,
	}
}

func TestRenderHeaderAndSections(t *testing.T) {
	t.Parallel()

	r := New(testConfig(), time.UTC)
	now := time.Date(2026, time.August, 21, 6, 0, 0, 0, time.UTC)
	cutoff := time.Date(2026, time.August, 19, 18, 0, 0, 0, time.UTC)

	sections := []Section{
		{
			Topic:       "llm",
			Latest:      []domain.ClassifiedPaper{entry("2508.00001", "Attention Revisited", false), entry("2508.00002", "A Survey of Attention", true)},
			Educational: []domain.ClassifiedPaper{entry("2508.00002", "A Survey of Attention", true)},
		},
		{Topic: "quantum"},
	}

	messages := r.Render(now, cutoff, sections)
	if len(messages) == 0 {
		t.Fatalf("expected at least one message")
	}

	all := strings.Join(messages, "\n")
	if !strings.Contains(all, "arXiv Digest (2026-08-21)") {
		t.Fatalf("header date substitution missing:\n%s", all)
	}
	if !strings.Contains(all, "Cutoff (UTC): 2026-08-19T18:00:00Z") {
		t.Fatalf("cutoff line missing:\n%s", all)
	}
	if !strings.Contains(all, "llm (latest 2, educational 1)") {
		t.Fatalf("counts line missing:\n%s", all)
	}
	if !strings.Contains(all, "✔︎ A Survey of Attention") {
		t.Fatalf("educational checkmark missing:\n%s", all)
	}
	if !strings.Contains(all, "- (no new papers)") || !strings.Contains(all, "- (no educational papers)") {
		t.Fatalf("empty topic notice missing:\n%s", all)
	}
	if !strings.Contains(all, "Alice Example et al.") {
		t.Fatalf("author label missing:\n%s", all)
	}
}

func TestRenderSkipsEmptyTopicsWhenConfigured(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.SkipEmptyTopics = true
	r := New(cfg, time.UTC)

	messages := r.Render(time.Now(), time.Now(), []Section{{Topic: "empty"}})
	all := strings.Join(messages, "\n")
	if strings.Contains(all, "[empty]") {
		t.Fatalf("empty topic block should be omitted:\n%s", all)
	}
}

func TestRenderChunksRespectLimitAndItemBoundaries(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxContentLength = 300
	r := New(cfg, time.UTC)

	var latest []domain.ClassifiedPaper
	for i := 0; i < 12; i++ {
		latest = append(latest, entry(fmt.Sprintf("2508.%05d", i+1), fmt.Sprintf("Paper Number %d With A Reasonably Long Title", i+1), false))
	}
	sections := []Section{{Topic: "llm", Latest: latest}}

	messages := r.Render(time.Now().UTC(), time.Now().UTC(), sections)
	if len(messages) < 2 {
		t.Fatalf("expected content to split into multiple chunks, got %d", len(messages))
	}

	for i, msg := range messages {
		if len(msg) > cfg.MaxContentLength {
			t.Fatalf("chunk %d exceeds limit: %d > %d", i, len(msg), cfg.MaxContentLength)
		}
	}

	// Every item line must survive chunking exactly once and unbroken.
	all := strings.Join(messages, "\n")
	for _, p := range latest {
		line := r.entryLine(p)
		if got := strings.Count(all, line); got != 1 {
			t.Fatalf("item line occurs %d times, want 1: %s", got, line)
		}
	}
}

func TestTruncateTitle(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.TitleMaxLength = 20
	r := New(cfg, time.UTC)

	line := r.entryLine(entry("2508.00001", "A Very Long Title That Will Definitely Be Truncated", false))
	if !strings.Contains(line, "...") {
		t.Fatalf("expected truncated title with ellipsis: %s", line)
	}
	if strings.Contains(line, "Definitely") {
		t.Fatalf("title not truncated: %s", line)
	}
}

func TestTruncateCutsOnRuneBoundaries(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.TitleMaxLength = 10
	r := New(cfg, time.UTC)

	line := r.entryLine(entry("2508.00001", "Équations Différentielles Stochastiques", false))
	if !utf8.ValidString(line) {
		t.Fatalf("truncated line is invalid UTF-8: %q", line)
	}
	if !strings.Contains(line, "...") {
		t.Fatalf("expected truncated title with ellipsis: %s", line)
	}
}

func TestHardSplitKeepsValidUTF8(t *testing.T) {
	t.Parallel()

	// 300 two-byte runes with an odd byte limit forces every naive byte cut
	// to land mid-rune.
	long := strings.Repeat("é", 300)
	chunks := splitBlocks([]string{long}, 101)

	for i, chunk := range chunks {
		if len(chunk) > 101 {
			t.Fatalf("chunk %d exceeds limit: %d bytes", i, len(chunk))
		}
		if !utf8.ValidString(chunk) {
			t.Fatalf("chunk %d is invalid UTF-8: %q", i, chunk)
		}
	}
	if strings.Join(chunks, "") != long {
		t.Fatalf("splitting lost content")
	}
}

func TestSplitBlocksHardSplitsSingleLongLine(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 450)
	chunks := splitBlocks([]string{long}, 200)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 hard-split chunks, got %d", len(chunks))
	}
	if strings.Join(chunks, "") != long {
		t.Fatalf("hard split lost content")
	}
}
