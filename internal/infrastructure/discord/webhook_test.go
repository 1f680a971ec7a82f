package discord

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ArxivDigest/internal/config"
)

func newTestWebhook(server *httptest.Server, maxRetries int) *Webhook {
	w := NewWebhook(config.DiscordConfig{
		WebhookURL:       server.URL,
		MaxContentLength: 2000,
		MaxRetries:       maxRetries,
	}, server.Client(), nil)
	w.sleep = func(time.Duration) {}
	return w
}

func TestSendPostsContentWithMentionSuppression(t *testing.T) {
	t.Parallel()

	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Errorf("invalid payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	wh := newTestWebhook(server, 0)
	if err := wh.Send(context.Background(), "hello digest"); err != nil {
		t.Fatalf("Send error: %v", err)
	}

	if got["content"] != "hello digest" {
		t.Fatalf("unexpected content: %v", got["content"])
	}
	mentions, ok := got["allowed_mentions"].(map[string]any)
	if !ok {
		t.Fatalf("allowed_mentions missing: %v", got)
	}
	parse, ok := mentions["parse"].([]any)
	if !ok || len(parse) != 0 {
		t.Fatalf("mention parse list should be empty: %v", mentions)
	}
}

func TestSendRejectsOversizedContent(t *testing.T) {
	t.Parallel()

	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	wh := newTestWebhook(server, 0)
	err := wh.Send(context.Background(), strings.Repeat("x", 2001))
	if err == nil {
		t.Fatalf("expected error for oversized content")
	}
	if requests != 0 {
		t.Fatalf("oversized content must not be posted")
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			http.Error(w, "flaky", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	wh := newTestWebhook(server, 2)
	if err := wh.Send(context.Background(), "retry me"); err != nil {
		t.Fatalf("Send error after retries: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestSendGivesUpAfterBoundedRetries(t *testing.T) {
	t.Parallel()

	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	wh := newTestWebhook(server, 2)
	if err := wh.Send(context.Background(), "doomed"); err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestSendStopsRetryingOnCancelledContext(t *testing.T) {
	t.Parallel()

	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	wh := newTestWebhook(server, 5)
	wh.sleep = func(time.Duration) { cancel() }

	if err := wh.Send(ctx, "cancelled"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("cancelled context must stop retries, got %d attempts", attempts)
	}
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var attempts int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	wh := newTestWebhook(server, 3)
	if err := wh.Send(context.Background(), "rejected"); err == nil {
		t.Fatalf("expected error on 400 response")
	}
	if attempts != 1 {
		t.Fatalf("client errors must not be retried, got %d attempts", attempts)
	}
}
