package domain

import "time"

// Paper is a core entity describing one arXiv submission's metadata.
type Paper struct {
	ID              string // canonical identifier, revision suffix stripped
	RawID           string // identifier as reported by the source, may carry vN
	Title           string
	Summary         string
	Authors         []string
	PrimaryCategory string
	Categories      []string
	URL             string
	SubmittedAt     time.Time
	Topic           string
}

// ClassifiedPaper carries the educational flag alongside the immutable paper.
type ClassifiedPaper struct {
	Paper       Paper
	Educational bool
}

// RunState is the cross-run memory of the digest: the instant of the last
// fully-successful run and the set of canonical IDs already announced.
// A zero LastSuccess means no run has ever succeeded.
type RunState struct {
	LastSuccess time.Time
	SeenIDs     map[string]struct{}
}

// NewRunState returns an empty state safe to mutate.
func NewRunState() RunState {
	return RunState{SeenIDs: map[string]struct{}{}}
}

// Seen reports whether the canonical ID was announced by a previous run.
func (s RunState) Seen(id string) bool {
	_, ok := s.SeenIDs[id]
	return ok
}

// MarkSeen records canonical IDs as announced. The set only grows.
func (s *RunState) MarkSeen(ids ...string) {
	if s.SeenIDs == nil {
		s.SeenIDs = map[string]struct{}{}
	}
	for _, id := range ids {
		if id != "" {
			s.SeenIDs[id] = struct{}{}
		}
	}
}
