// Package arxiv implements the metadata client for the arXiv search API.
// Responses are Atom feeds; one topic maps to one search_query, fetched in
// pages sorted by submission time descending.
package arxiv

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"ArxivDigest/internal/arxivid"
	"ArxivDigest/internal/config"
	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/scanner"
)

// Client queries the export.arxiv.org API for one topic at a time.
type Client struct {
	endpoint   string
	userAgent  string
	pageSize   int
	maxRetries int
	client     *http.Client
	parser     *gofeed.Parser
	sleep      func(time.Duration)
	logger     *slog.Logger
}

var _ scanner.Source = (*Client)(nil)

// NewClient wires an HTTP client; a nil client gets a sane default timeout.
func NewClient(cfg config.ArxivConfig, client *http.Client, logger *slog.Logger) *Client {
	if client == nil {
		timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		userAgent:  cfg.UserAgent,
		pageSize:   cfg.PageSize,
		maxRetries: cfg.MaxRetries,
		client:     client,
		parser:     gofeed.NewParser(),
		sleep:      time.Sleep,
		logger:     logger,
	}
}

// Name identifies the strategy inside the registry.
func (c *Client) Name() string {
	return "api"
}

// Fetch retrieves up to topic.MaxResults papers for the topic, newest first.
// A feed with zero entries is a valid empty result, not an error.
func (c *Client) Fetch(ctx context.Context, topic scanner.Topic) ([]domain.Paper, error) {
	query, err := BuildSearchQuery(topic)
	if err != nil {
		return nil, err
	}

	pageSize := c.pageSize
	if pageSize <= 0 || pageSize > topic.MaxResults {
		pageSize = topic.MaxResults
	}

	var papers []domain.Paper
	for start := 0; start < topic.MaxResults; start += pageSize {
		if start > 0 {
			// Page requests count against the same rate budget as topic queries.
			c.sleep(3100 * time.Millisecond)
		}

		remaining := topic.MaxResults - start
		if remaining > pageSize {
			remaining = pageSize
		}

		body, err := c.get(ctx, c.pageURL(query, start, remaining))
		if err != nil {
			return nil, fmt.Errorf("topic %s: %w", topic.Name, err)
		}

		page, err := c.parsePage(body, topic.Name)
		if err != nil {
			return nil, fmt.Errorf("topic %s: %w", topic.Name, err)
		}

		papers = append(papers, page...)
		if len(page) < remaining {
			break
		}
	}

	c.debug("fetch done", "topic", topic.Name, "papers", len(papers))
	return papers, nil
}

func (c *Client) pageURL(query string, start, maxResults int) string {
	values := url.Values{}
	values.Set("search_query", query)
	values.Set("start", strconv.Itoa(start))
	values.Set("max_results", strconv.Itoa(maxResults))
	values.Set("sortBy", "submittedDate")
	values.Set("sortOrder", "descending")
	return c.endpoint + "?" + values.Encode()
}

// get performs one HTTP request with bounded retries. Network errors, 5xx and
// 429 are retried with exponential backoff; other statuses fail immediately.
// A cancelled context ends the retry loop instead of starting a new attempt.
func (c *Client) get(ctx context.Context, pageURL string) (string, error) {
	backoff := 2 * time.Second
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.debug("retrying request", "attempt", attempt, "backoff", backoff)
			c.sleep(backoff)
			backoff *= 2
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		body, retryable, err := c.do(ctx, pageURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	return "", lastErr
}

func (c *Client) do(ctx context.Context, pageURL string) (body string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return "", true, fmt.Errorf("arxiv returned %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("read feed body: %w", err)
	}

	return string(raw), false, nil
}

// parsePage maps the Atom payload onto Paper values. Entries missing an
// identifier or submission timestamp mean the feed does not match the schema
// this client is built against, so the whole page fails.
func (c *Client) parsePage(body, topicName string) ([]domain.Paper, error) {
	feed, err := c.parser.ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	papers := make([]domain.Paper, 0, len(feed.Items))
	for _, item := range feed.Items {
		rawID := item.GUID
		canonical := arxivid.Canonical(rawID)
		if canonical == "" {
			return nil, fmt.Errorf("parse feed: entry %q has no arXiv identifier", item.Title)
		}
		if item.PublishedParsed == nil {
			return nil, fmt.Errorf("parse feed: entry %s has no published timestamp", canonical)
		}

		papers = append(papers, domain.Paper{
			ID:              canonical,
			RawID:           rawID,
			Title:           compact(item.Title),
			Summary:         compact(item.Description),
			Authors:         authorNames(item),
			PrimaryCategory: primaryCategory(item),
			Categories:      item.Categories,
			URL:             arxivid.AbsURL(canonical),
			SubmittedAt:     item.PublishedParsed.UTC(),
			Topic:           topicName,
		})
	}

	return papers, nil
}

func authorNames(item *gofeed.Item) []string {
	names := make([]string, 0, len(item.Authors))
	for _, a := range item.Authors {
		if a == nil {
			continue
		}
		if name := compact(a.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// primaryCategory prefers the arxiv namespace extension; the first plain
// category tag is the fallback.
func primaryCategory(item *gofeed.Item) string {
	if exts, ok := item.Extensions["arxiv"]; ok {
		if primary, ok := exts["primary_category"]; ok && len(primary) > 0 {
			if term := primary[0].Attrs["term"]; term != "" {
				return term
			}
		}
	}
	if len(item.Categories) > 0 {
		return item.Categories[0]
	}
	return ""
}

func compact(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// BuildSearchQuery assembles the API search_query for a topic:
// (all:"term1" OR ...) AND (cat:c1 OR ...). Terms already carrying a field
// prefix are passed through verbatim.
func BuildSearchQuery(topic scanner.Topic) (string, error) {
	var termParts []string
	for _, term := range topic.QueryTerms {
		if part := quoteTerm(term); part != "" {
			termParts = append(termParts, part)
		}
	}

	var catParts []string
	for _, cat := range topic.Categories {
		if cat = strings.TrimSpace(cat); cat != "" {
			catParts = append(catParts, "cat:"+cat)
		}
	}

	var groups []string
	if len(termParts) > 0 {
		groups = append(groups, "("+strings.Join(termParts, " OR ")+")")
	}
	if len(catParts) > 0 {
		groups = append(groups, "("+strings.Join(catParts, " OR ")+")")
	}

	if len(groups) == 0 {
		return "", fmt.Errorf("topic %s has no query terms or categories", topic.Name)
	}

	return strings.Join(groups, " AND "), nil
}

var fieldPrefixes = []string{"all:", "ti:", "abs:", "cat:", "au:", "jr:", "rn:", "id:"}

func quoteTerm(term string) string {
	term = strings.TrimSpace(term)
	if term == "" {
		return ""
	}

	lowered := strings.ToLower(term)
	for _, prefix := range fieldPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return term
		}
	}

	escaped := strings.ReplaceAll(term, `"`, `\"`)
	return `all:"` + escaped + `"`
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
