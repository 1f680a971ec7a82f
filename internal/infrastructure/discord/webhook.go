// Package discord delivers digest chunks through a webhook.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ArxivDigest/internal/config"
	"ArxivDigest/internal/ports"
)

// Webhook posts messages to a Discord channel webhook with mention
// suppression. Each Send carries exactly one chunk.
type Webhook struct {
	url              string
	maxContentLength int
	maxRetries       int
	client           *http.Client
	sleep            func(time.Duration)
	logger           *slog.Logger
}

var _ ports.Notifier = (*Webhook)(nil)

type payload struct {
	Content         string          `json:"content"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

type allowedMentions struct {
	Parse []string `json:"parse"`
}

// NewWebhook builds a notifier from the Discord channel settings.
func NewWebhook(cfg config.DiscordConfig, client *http.Client, logger *slog.Logger) *Webhook {
	if client == nil {
		timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Webhook{
		url:              cfg.WebhookURL,
		maxContentLength: cfg.MaxContentLength,
		maxRetries:       cfg.MaxRetries,
		client:           client,
		sleep:            time.Sleep,
		logger:           logger,
	}
}

// Send posts one chunk. Transient failures (network, 5xx, 429) are retried a
// bounded number of times with backoff; other statuses fail immediately and a
// cancelled context ends the retry loop.
func (w *Webhook) Send(ctx context.Context, content string) error {
	if content == "" {
		return nil
	}
	if w.url == "" {
		return fmt.Errorf("discord webhook misconfigured: empty url")
	}
	if len(content) > w.maxContentLength {
		return fmt.Errorf("content too long: %d > %d", len(content), w.maxContentLength)
	}

	body, err := json.Marshal(payload{
		Content:         content,
		AllowedMentions: allowedMentions{Parse: []string{}},
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	backoff := 2 * time.Second
	var lastErr error
	for attempt := 0; attempt <= w.maxRetries; attempt++ {
		if attempt > 0 {
			w.debug("retrying delivery", "attempt", attempt, "backoff", backoff)
			w.sleep(backoff)
			backoff *= 2
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		retryable, err := w.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return lastErr
}

func (w *Webhook) post(ctx context.Context, body []byte) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return false, nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("discord webhook error %s: %s", resp.Status, strings.TrimSpace(string(detail)))

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return true, err
	}
	return false, err
}

func (w *Webhook) debug(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Debug(msg, args...)
	}
}
