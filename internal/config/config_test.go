package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ARXIV_DIGEST_CONFIG", "")
	t.Setenv("DISCORD_WEBHOOK_URL", "")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("ARXIV_DIGEST_STATE_PATH", "")

	cfg := Load()

	if cfg.Arxiv.Endpoint != "https://export.arxiv.org/api/query" {
		t.Fatalf("unexpected endpoint: %s", cfg.Arxiv.Endpoint)
	}
	if cfg.Arxiv.InterQueryDelaySeconds < 3.0 {
		t.Fatalf("inter-query delay below arXiv minimum: %f", cfg.Arxiv.InterQueryDelaySeconds)
	}
	if cfg.State.Backend != "file" {
		t.Fatalf("unexpected state backend: %s", cfg.State.Backend)
	}
	if cfg.Digest.LookbackHours != 36 {
		t.Fatalf("unexpected lookback: %d", cfg.Digest.LookbackHours)
	}
	if len(cfg.Topics) == 0 {
		t.Fatalf("expected default topics")
	}
}

func TestLoadFileOverlayAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
arxiv:
  interQueryDelaySeconds: 1.0
  maxResultsPerTopic: 50
  pageSize: 500
discord:
  headerTemplate: "Digest {date}"
digest:
  lookbackHours: 0
topics:
  - name: quantum
    categories: [quant-ph]
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ARXIV_DIGEST_CONFIG", path)
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.example/webhook")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("ARXIV_DIGEST_STATE_PATH", "")

	cfg := Load()

	// Below-policy delay and invalid lookback are clamped, not honored.
	if cfg.Arxiv.InterQueryDelaySeconds < 3.0 {
		t.Fatalf("delay not clamped: %f", cfg.Arxiv.InterQueryDelaySeconds)
	}
	if cfg.Digest.LookbackHours != 36 {
		t.Fatalf("invalid lookback not reset: %d", cfg.Digest.LookbackHours)
	}
	// Page size never exceeds the per-topic cap.
	if cfg.Arxiv.PageSize != 50 {
		t.Fatalf("page size not clamped to cap: %d", cfg.Arxiv.PageSize)
	}

	if cfg.Discord.HeaderTemplate != "Digest {date}" {
		t.Fatalf("file overlay lost: %s", cfg.Discord.HeaderTemplate)
	}
	if cfg.Discord.WebhookURL != "https://discord.example/webhook" {
		t.Fatalf("env override lost: %s", cfg.Discord.WebhookURL)
	}
	if len(cfg.Topics) != 1 || cfg.Topics[0].Name != "quantum" {
		t.Fatalf("topics overlay lost: %+v", cfg.Topics)
	}
}
