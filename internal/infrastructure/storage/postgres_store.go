package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
)

// insertBatchSize bounds the VALUES list of one announced_papers insert.
const insertBatchSize = 500

// PostgresStore persists the run state in two tables: a single digest_state
// row carrying last_success_utc and an announced_papers table holding the
// seen canonical IDs. Save runs in one transaction, which gives the same
// crash-safety the file backend gets from atomic rename.
type PostgresStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType

	// loaded holds the IDs present at Load time; Save only inserts the
	// difference instead of replaying the whole seen set every run.
	loaded map[string]struct{}
}

var _ ports.StateStore = (*PostgresStore)(nil)

// OpenPostgres connects and verifies the DSN.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Load reads the persisted state; absent rows yield a fresh state.
func (s *PostgresStore) Load(ctx context.Context) (domain.RunState, error) {
	state := domain.NewRunState()

	var lastSuccess sql.NullTime
	err := s.builder.
		Select("last_success_utc").
		From("digest_state").
		Where(sq.Eq{"id": 1}).
		RunWith(s.db).
		QueryRowContext(ctx).
		Scan(&lastSuccess)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return domain.RunState{}, fmt.Errorf("query digest state: %w", err)
	}
	if lastSuccess.Valid {
		state.LastSuccess = lastSuccess.Time.UTC()
	}

	rows, err := s.builder.
		Select("arxiv_id").
		From("announced_papers").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return domain.RunState{}, fmt.Errorf("query announced papers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return domain.RunState{}, fmt.Errorf("scan announced id: %w", err)
		}
		state.MarkSeen(id)
	}
	if err := rows.Err(); err != nil {
		return domain.RunState{}, fmt.Errorf("rows iteration: %w", err)
	}

	s.loaded = make(map[string]struct{}, len(state.SeenIDs))
	for id := range state.SeenIDs {
		s.loaded[id] = struct{}{}
	}

	return state, nil
}

// Save upserts last_success_utc and inserts the IDs that appeared since Load,
// transactionally and in bounded batches.
func (s *PostgresStore) Save(ctx context.Context, state domain.RunState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var lastSuccess any
	if !state.LastSuccess.IsZero() {
		lastSuccess = state.LastSuccess.UTC()
	}

	_, err = s.builder.
		Insert("digest_state").
		Columns("id", "last_success_utc").
		Values(1, lastSuccess).
		Suffix("ON CONFLICT (id) DO UPDATE SET last_success_utc = EXCLUDED.last_success_utc").
		RunWith(tx).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("upsert digest state: %w", err)
	}

	ids := newSeenIDs(s.loaded, state.SeenIDs)
	now := time.Now().UTC()
	for start := 0; start < len(ids); start += insertBatchSize {
		end := min(start+insertBatchSize, len(ids))

		insert := s.builder.
			Insert("announced_papers").
			Columns("arxiv_id", "announced_at")
		for _, id := range ids[start:end] {
			insert = insert.Values(id, now)
		}
		_, err = insert.
			Suffix("ON CONFLICT (arxiv_id) DO NOTHING").
			RunWith(tx).
			ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("insert announced papers: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}

	if s.loaded == nil {
		s.loaded = map[string]struct{}{}
	}
	for _, id := range ids {
		s.loaded[id] = struct{}{}
	}
	return nil
}

// newSeenIDs returns the seen IDs absent from loaded, sorted for
// deterministic batches. A nil loaded set treats every ID as new; the
// ON CONFLICT clause still keeps the insert idempotent.
func newSeenIDs(loaded, seen map[string]struct{}) []string {
	ids := make([]string, 0, len(seen))
	for id := range seen {
		if _, ok := loaded[id]; ok {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
