package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"sales-assistant/internal/aggregate"
	"sales-assistant/internal/models"
)

// Snapshot is one loaded version of the dataset. It is never modified after
// it is published.
type Snapshot struct {
	Rows       []models.Transaction
	Vocabulary map[models.Column][]string
	LoadedAt   time.Time
	Source     string
}

func newSnapshot(rows []models.Transaction, source string) *Snapshot {
	vocab := make(map[models.Column][]string, len(models.Columns))
	for _, c := range models.Columns {
		vocab[c] = aggregate.Distinct(rows, c)
	}
	return &Snapshot{
		Rows:       rows,
		Vocabulary: vocab,
		LoadedAt:   time.Now(),
		Source:     source,
	}
}

// Usable reports whether the snapshot has rows and at least one price.
func (s *Snapshot) Usable() bool {
	return s != nil && aggregate.Usable(s.Rows)
}

// Values returns the vocabulary of column c.
func (s *Snapshot) Values(c models.Column) []string {
	if s == nil {
		return nil
	}
	return s.Vocabulary[c]
}

// DefaultLoadTimeout bounds one load of the source.
const DefaultLoadTimeout = 2 * time.Minute

// Store hands out the current snapshot. The first Snapshot call loads the
// source; concurrent first callers wait for that one load. A load is not tied
// to the caller that started it: a caller that gives up stops waiting while
// the load carries on, bounded by LoadTimeout, for everyone else.
type Store struct {
	source Source
	logger *slog.Logger

	LoadTimeout time.Duration

	group   singleflight.Group
	mu      sync.RWMutex
	current *Snapshot
	loads   atomic.Int64
}

func NewStore(source Source, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{source: source, logger: logger, LoadTimeout: DefaultLoadTimeout}
}

func (s *Store) get() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap := s.get(); snap != nil {
		return snap, nil
	}
	return s.shared(ctx, "load", func(loadCtx context.Context) (*Snapshot, error) {
		if snap := s.get(); snap != nil {
			return snap, nil
		}
		return s.load(loadCtx)
	})
}

// Reload reads the source again and swaps the snapshot in. On failure the
// previous snapshot stays current.
func (s *Store) Reload(ctx context.Context) (*Snapshot, error) {
	return s.shared(ctx, "reload", s.load)
}

// shared runs fn once per key for all concurrent callers. fn gets a context
// that keeps ctx's values but not its cancellation.
func (s *Store) shared(ctx context.Context, key string, fn func(context.Context) (*Snapshot, error)) (*Snapshot, error) {
	ch := s.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.LoadTimeout)
		defer cancel()
		return fn(loadCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for dataset: %w", context.Cause(ctx))
	}
}

// Set replaces the snapshot with rows.
func (s *Store) Set(rows []models.Transaction) *Snapshot {
	snap := newSnapshot(rows, "memory")
	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
	return snap
}

// Loads counts completed source loads.
func (s *Store) Loads() int64 {
	return s.loads.Load()
}

func (s *Store) load(ctx context.Context) (*Snapshot, error) {
	if s.source == nil {
		return nil, fmt.Errorf("no dataset source configured")
	}

	start := time.Now()
	s.logger.Info("loading dataset", "source", s.source.Name())

	rows, err := s.source.Load(ctx)
	if err != nil {
		s.logger.Error("dataset load failed", "source", s.source.Name(), "error", err)
		return nil, fmt.Errorf("load %s: %w", s.source.Name(), err)
	}

	snap := newSnapshot(rows, s.source.Name())
	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
	s.loads.Add(1)

	duration := time.Since(start)
	s.logger.Info("dataset loaded",
		"records", len(rows),
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(len(rows))/max(duration.Seconds(), 1e-9)))
	return snap, nil
}

// Stats summarises the current snapshot for monitoring.
func (s *Store) Stats() map[string]any {
	snap := s.get()
	if snap == nil {
		return map[string]any{"loaded": false}
	}
	stats := map[string]any{
		"loaded":       true,
		"source":       snap.Source,
		"record_count": len(snap.Rows),
		"priced_count": aggregate.PricedCount(snap.Rows),
		"loaded_at":    snap.LoadedAt,
		"usable":       snap.Usable(),
	}
	for _, c := range models.Columns {
		stats[string(c)] = len(snap.Vocabulary[c])
	}
	return stats
}
