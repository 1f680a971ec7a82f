package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ArxivDigest/internal/classify"
	"ArxivDigest/internal/config"
	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
	"ArxivDigest/internal/render"
	"ArxivDigest/internal/scanner"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Registry *scanner.Registry
	Store    ports.StateStore
	Notifier ports.Notifier
	Renderer *render.Renderer

	Topics          []config.TopicConfig
	MaxResults      int
	InterQueryDelay time.Duration
	Lookback        time.Duration
	MaxLatest       int
	MaxEducational  int

	Now    func() time.Time
	Sleep  func(time.Duration)
	Logger *slog.Logger
}

// Pipeline implements one digest run: load state, compute the cutoff, fetch
// every topic sequentially under the rate-limit delay, filter, classify,
// rank, render, deliver, and persist state only on full success.
type Pipeline struct {
	deps PipelineDeps
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = time.Sleep
	}
	return &Pipeline{deps: deps}
}

// Run executes one digest cycle. A failed topic is skipped so the remaining
// topics still produce a partial digest, but any topic or delivery failure
// makes the run fail as a whole: state is persisted all-or-nothing, so a
// failed run never advances last_success_utc or marks papers seen.
func (p *Pipeline) Run(ctx context.Context) error {
	d := p.deps
	start := d.Now().UTC()

	state, err := d.Store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	cutoff := ComputeCutoff(state.LastSuccess, d.Lookback, start)
	p.info("run started", "start", start.Format(time.RFC3339), "cutoff", cutoff.Format(time.RFC3339), "topics", len(d.Topics))

	var (
		sections     []render.Section
		deliveredIDs []string
		topicErrs    []error
		selectedThis = map[string]struct{}{}
	)

	for i, topic := range d.Topics {
		if i > 0 {
			// arXiv asks for serialized queries with a fixed pause between them.
			d.Sleep(d.InterQueryDelay)
		}

		section, ids, err := p.processTopic(ctx, topic, state, cutoff, selectedThis)
		if err != nil {
			p.error("topic failed", "topic", topic.Name, "error", err)
			topicErrs = append(topicErrs, fmt.Errorf("topic %s: %w", topic.Name, err))
			continue
		}

		sections = append(sections, section)
		deliveredIDs = append(deliveredIDs, ids...)
	}

	if len(sections) == 0 && len(topicErrs) > 0 {
		return fmt.Errorf("all topics failed: %w", errors.Join(topicErrs...))
	}

	messages := d.Renderer.Render(start, cutoff, sections)
	p.info("digest rendered", "sections", len(sections), "selected", len(deliveredIDs), "messages", len(messages))

	for i, msg := range messages {
		if err := d.Notifier.Send(ctx, msg); err != nil {
			return fmt.Errorf("deliver chunk %d/%d: %w", i+1, len(messages), err)
		}
	}

	if len(topicErrs) > 0 {
		// Partial digest was delivered, but the run must not advance state:
		// the failed topics' papers would otherwise be skipped forever.
		return fmt.Errorf("%d topic(s) failed: %w", len(topicErrs), errors.Join(topicErrs...))
	}

	state.LastSuccess = start
	state.MarkSeen(deliveredIDs...)
	if err := d.Store.Save(ctx, state); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	p.info("run succeeded", "delivered", len(deliveredIDs), "seen_total", len(state.SeenIDs))
	return nil
}

func (p *Pipeline) processTopic(
	ctx context.Context,
	topic config.TopicConfig,
	state domain.RunState,
	cutoff time.Time,
	selectedThis map[string]struct{},
) (render.Section, []string, error) {
	d := p.deps

	source, err := d.Registry.Resolve(sourceName(topic))
	if err != nil {
		return render.Section{}, nil, err
	}

	papers, err := source.Fetch(ctx, toScannerTopic(topic, d.MaxResults))
	if err != nil {
		return render.Section{}, nil, err
	}

	candidates := make([]domain.Paper, 0, len(papers))
	for _, paper := range papers {
		if paper.SubmittedAt.Before(cutoff) {
			continue
		}
		if state.Seen(paper.ID) {
			continue
		}
		if _, ok := selectedThis[paper.ID]; ok {
			// Already picked under an earlier topic this run.
			continue
		}
		candidates = append(candidates, paper)
	}

	classified := classify.Classify(candidates)
	latest, educational := classify.RankAndLimit(classified, d.MaxLatest, d.MaxEducational)

	section := render.Section{Topic: topic.Name, Latest: latest, Educational: educational}

	var ids []string
	for _, p := range latest {
		if _, ok := selectedThis[p.Paper.ID]; !ok {
			selectedThis[p.Paper.ID] = struct{}{}
			ids = append(ids, p.Paper.ID)
		}
	}
	for _, p := range educational {
		if _, ok := selectedThis[p.Paper.ID]; !ok {
			selectedThis[p.Paper.ID] = struct{}{}
			ids = append(ids, p.Paper.ID)
		}
	}

	p.debug("topic processed",
		"topic", topic.Name,
		"fetched", len(papers),
		"candidates", len(candidates),
		"latest", len(latest),
		"educational", len(educational))

	return section, ids, nil
}

func sourceName(topic config.TopicConfig) string {
	if topic.Source != "" {
		return topic.Source
	}
	return "api"
}

func toScannerTopic(topic config.TopicConfig, maxResults int) scanner.Topic {
	listings := make([]scanner.Listing, 0, len(topic.Listings))
	for _, l := range topic.Listings {
		listings = append(listings, scanner.Listing{Name: l.Name, URL: l.URL})
	}
	return scanner.Topic{
		Name:       topic.Name,
		QueryTerms: topic.QueryTerms,
		Categories: topic.Categories,
		MaxResults: maxResults,
		Listings:   listings,
	}
}

func (p *Pipeline) info(msg string, args ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Info(msg, args...)
	}
}

func (p *Pipeline) debug(msg string, args ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Debug(msg, args...)
	}
}

func (p *Pipeline) error(msg string, args ...any) {
	if p.deps.Logger != nil {
		p.deps.Logger.Error(msg, args...)
	}
}
