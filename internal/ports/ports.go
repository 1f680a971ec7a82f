package ports

import (
	"context"

	"ArxivDigest/internal/domain"
)

// StateStore is the sole authority for the persisted run state. Load must
// recover a fresh state from missing or unreadable storage; Save must be
// atomic with respect to process crash.
type StateStore interface {
	Load(ctx context.Context) (domain.RunState, error)
	Save(ctx context.Context, state domain.RunState) error
}

// Notifier delivers one rendered message chunk to the chat channel.
type Notifier interface {
	Send(ctx context.Context, content string) error
}
