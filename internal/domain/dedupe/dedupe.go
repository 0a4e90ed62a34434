// Package dedupe tracks games already dispatched within a run so a game is
// processed at most once even if the cursor replays rows.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/okian/pitchelo/internal/domain/model"
)

// Deduper records dispatched game IDs.
type Deduper interface {
	// SeenAndRecord atomically checks whether id was seen and records it if
	// not. Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id model.GameID) bool

	// Unrecord removes an ID so the game can be retried. Used when a game
	// was recorded but its update failed and rolled back.
	Unrecord(ctx context.Context, id model.GameID)

	Size() int64
}

// inMemoryDeduper implements Deduper with a mutex-guarded set. Runs are
// bounded by the games cap, so no eviction is needed; WithMaxSize guards
// against a runaway run.
type inMemoryDeduper struct {
	mu      sync.RWMutex
	seen    map[model.GameID]struct{}
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[model.GameID]struct{})
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id model.GameID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return true
	}
	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		// Treat an over-full set as seen so the caller skips rather than
		// growing without bound.
		return true
	}
	d.seen[id] = struct{}{}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id model.GameID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		delete(d.seen, id)
		d.size.Add(-1)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
