// Package listing scans export.arxiv.org HTML listing pages as an alternate
// metadata source for topics that configure listing URLs (useful when the API
// endpoint is degraded). Listing dates carry day precision only.
package listing

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ArxivDigest/internal/arxivid"
	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/scanner"
)

var dateExpr = regexp.MustCompile(`\d{1,2} [A-Za-z]{3} \d{4}`)

// Scanner crawls listing pages and extracts recent submissions.
type Scanner struct {
	client    *http.Client
	userAgent string
	pageSize  int
	logger    *slog.Logger
}

var _ scanner.Source = (*Scanner)(nil)

// NewScanner wires an HTTP client; pageSize defaults to 200.
func NewScanner(client *http.Client, userAgent string, logger *slog.Logger) *Scanner {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &Scanner{client: client, userAgent: userAgent, pageSize: 200, logger: logger}
}

// Name identifies the strategy inside the registry.
func (s *Scanner) Name() string {
	return "listing"
}

// Fetch walks each configured listing URL and returns up to topic.MaxResults
// papers, newest first in page order.
func (s *Scanner) Fetch(ctx context.Context, topic scanner.Topic) ([]domain.Paper, error) {
	if len(topic.Listings) == 0 {
		return nil, fmt.Errorf("topic %s has no listing urls", topic.Name)
	}

	results := make([]domain.Paper, 0)
	seen := map[string]struct{}{}

	for _, listing := range topic.Listings {
		skip := 0
		for len(results) < topic.MaxResults {
			pageURL, err := buildPageURL(listing.URL, skip, s.pageSize)
			if err != nil {
				return nil, fmt.Errorf("topic %s listing %s: %w", topic.Name, listing.Name, err)
			}

			doc, err := s.fetchDocument(ctx, pageURL)
			if err != nil {
				return nil, fmt.Errorf("topic %s listing %s: %w", topic.Name, listing.Name, err)
			}

			papers, processed := s.extractPapers(doc, topic.Name, listing.Name)
			for _, paper := range papers {
				if _, ok := seen[paper.ID]; ok {
					continue
				}
				seen[paper.ID] = struct{}{}
				results = append(results, paper)
				if len(results) >= topic.MaxResults {
					break
				}
			}

			if processed < s.pageSize {
				break
			}
			skip += s.pageSize
		}
	}

	s.debug("listing fetch done", "topic", topic.Name, "papers", len(results))
	return results, nil
}

func (s *Scanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func (s *Scanner) extractPapers(doc *goquery.Document, topicName, category string) ([]domain.Paper, int) {
	var (
		collected []domain.Paper
		processed int
	)

	doc.Find("dl > dt").Each(func(i int, dt *goquery.Selection) {
		dd := dt.Next()
		processed++

		paper, err := parseEntry(dt, dd, topicName, category)
		if err != nil {
			return
		}
		collected = append(collected, paper)
	})

	return collected, processed
}

func parseEntry(dt, dd *goquery.Selection, topicName, category string) (domain.Paper, error) {
	link := dt.Find("a[href*=\"/abs/\"]").First()

	rawID := strings.TrimSpace(link.Text())
	if rawID == "" {
		if href, exists := link.Attr("href"); exists {
			rawID = strings.TrimPrefix(href, "/abs/")
		}
	}

	canonical := arxivid.Canonical(rawID)
	if canonical == "" {
		return domain.Paper{}, fmt.Errorf("listing entry has no arXiv identifier")
	}

	title := strings.TrimSpace(dd.Find(".list-title").First().Text())
	title = strings.TrimSpace(strings.TrimPrefix(title, "Title:"))

	summary := dd.Find("p.mathjax").First().Text()
	summary = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(summary), "Abstract:"))

	authors := parseAuthors(dd)

	dateText := strings.TrimSpace(dd.Find(".list-date").First().Text())
	if dateText == "" {
		dateText = strings.TrimSpace(dd.Find(".list-dateline").First().Text())
	}

	submittedAt := time.Now().UTC()
	if match := dateExpr.FindString(dateText); match != "" {
		if parsed, err := time.Parse("2 Jan 2006", match); err == nil {
			submittedAt = parsed.UTC()
		}
	}

	return domain.Paper{
		ID:              canonical,
		RawID:           rawID,
		Title:           title,
		Summary:         summary,
		Authors:         authors,
		PrimaryCategory: category,
		Categories:      []string{category},
		URL:             arxivid.AbsURL(canonical),
		SubmittedAt:     submittedAt,
		Topic:           topicName,
	}, nil
}

func parseAuthors(dd *goquery.Selection) []string {
	var authors []string
	dd.Find(".list-authors a").Each(func(i int, a *goquery.Selection) {
		if name := strings.TrimSpace(a.Text()); name != "" {
			authors = append(authors, name)
		}
	})
	return authors
}

func buildPageURL(base string, skip, pageSize int) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid listing url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("skip", strconv.Itoa(skip))
	query.Set("show", strconv.Itoa(pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (s *Scanner) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
