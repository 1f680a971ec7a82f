package scanner

import (
	"context"
	"fmt"

	"ArxivDigest/internal/domain"
)

// Listing describes a concrete listing-page endpoint provided by config.
type Listing struct {
	Name string
	URL  string
}

// Topic carries all parameters required to execute one topic fetch.
type Topic struct {
	Name       string
	QueryTerms []string
	Categories []string
	MaxResults int
	Listings   []Listing
}

// Source captures a single fetch strategy (API feed, HTML listing, etc.).
type Source interface {
	Name() string
	Fetch(ctx context.Context, topic Topic) ([]domain.Paper, error)
}

// Registry keeps a mapping from source names to their implementations.
type Registry struct {
	sources map[string]Source
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]Source{}}
}

// Register adds or replaces a source implementation.
func (r *Registry) Register(source Source) {
	if r.sources == nil {
		r.sources = map[string]Source{}
	}
	r.sources[source.Name()] = source
}

// Resolve returns a source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Source, error) {
	if source, ok := r.sources[name]; ok {
		return source, nil
	}
	return nil, fmt.Errorf("source %s is not registered", name)
}
