package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/pitchelo/internal/domain/model"
	"github.com/okian/pitchelo/internal/domain/record"
	"github.com/okian/pitchelo/internal/domain/seed"
)

type ratingKey struct {
	Player model.PlayerID
	Season model.Season
}

// Memory implements Store over in-process maps. It backs tests and local
// runs without a database; semantics mirror the Postgres store, including
// rating-less gap rows.
type Memory struct {
	mu          sync.RWMutex
	games       map[model.GameID]model.Game
	appearances map[model.GameID][]model.Appearance
	events      map[model.GameID][]model.GameEvent
	ratings     map[ratingKey]*float64
	valuations  []model.Valuation
	checkpoints map[string]model.Checkpoint
	validGames  []model.GameTask
	applyHook   func(ctx context.Context, ratings []model.PlayerRating) error
}

// MemoryOption applies a configuration option to the Memory store.
type MemoryOption func(*Memory)

// WithApplyHook installs a hook invoked before ApplyGame commits. A hook
// error aborts the write, leaving the store untouched.
func WithApplyHook(hook func(ctx context.Context, ratings []model.PlayerRating) error) MemoryOption {
	return func(m *Memory) {
		m.applyHook = hook
	}
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		games:       make(map[model.GameID]model.Game),
		appearances: make(map[model.GameID][]model.Appearance),
		events:      make(map[model.GameID][]model.GameEvent),
		ratings:     make(map[ratingKey]*float64),
		checkpoints: make(map[string]model.Checkpoint),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddGame loads a game with its lineup and events.
func (m *Memory) AddGame(game model.Game, appearances []model.Appearance, events []model.GameEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if game.Season == 0 {
		game.Season = model.SeasonOf(game.Date)
	}
	m.games[game.ID] = game
	m.appearances[game.ID] = append([]model.Appearance(nil), appearances...)
	m.events[game.ID] = append([]model.GameEvent(nil), events...)
}

// AddValuation loads a market-valuation row.
func (m *Memory) AddValuation(v model.Valuation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valuations = append(m.valuations, v)
}

// SeedRating sets a known season rating.
func (m *Memory) SeedRating(player model.PlayerID, season model.Season, rating float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := rating
	m.ratings[ratingKey{Player: player, Season: season}] = &r
}

func (m *Memory) ValidGamesAfter(_ context.Context, cp model.Checkpoint, limit int) ([]model.GameTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.GameTask
	for _, t := range m.validGames {
		if !after(t, cp) {
			continue
		}
		out = append(out, t)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func after(t model.GameTask, cp model.Checkpoint) bool {
	if t.Date.After(cp.Date) {
		return true
	}
	return t.Date.Equal(cp.Date) && t.GameID > cp.GameID
}

func (m *Memory) GameSnapshot(_ context.Context, id model.GameID) (record.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	game, ok := m.games[id]
	if !ok {
		return record.Snapshot{}, fmt.Errorf("game %d: %w", id, ErrNotFound)
	}
	return record.Snapshot{
		Game:        game,
		Appearances: append([]model.Appearance(nil), m.appearances[id]...),
		Events:      append([]model.GameEvent(nil), m.events[id]...),
	}, nil
}

func (m *Memory) PlayerRating(_ context.Context, player model.PlayerID, season model.Season) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.ratings[ratingKey{Player: player, Season: season}]
	if !ok || r == nil {
		return 0, fmt.Errorf("rating for player %d season %d: %w", player, season, ErrNotFound)
	}
	return *r, nil
}

func (m *Memory) ApplyGame(ctx context.Context, ratings []model.PlayerRating) error {
	if len(ratings) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.applyHook != nil {
		if err := m.applyHook(ctx, ratings); err != nil {
			return err
		}
	}
	for _, r := range ratings {
		v := r.Rating
		m.ratings[ratingKey{Player: r.PlayerID, Season: r.Season}] = &v
	}
	return nil
}

func (m *Memory) Valuations(_ context.Context) ([]model.Valuation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Valuation(nil), m.valuations...), nil
}

func (m *Memory) Checkpoint(_ context.Context, process string) (model.Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkpoints[process], nil
}

func (m *Memory) SetCheckpoint(_ context.Context, process string, cp model.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints[process] = cp
	return nil
}

func (m *Memory) RefreshValidGames(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	known := make(map[model.GameID]bool, len(m.validGames))
	for _, t := range m.validGames {
		known[t.GameID] = true
	}

	var added int64
	for id, game := range m.games {
		if known[id] || len(m.appearances[id]) == 0 {
			continue
		}
		m.validGames = append(m.validGames, model.GameTask{GameID: id, Date: game.Date})
		added++
	}

	sort.Slice(m.validGames, func(a, b int) bool {
		if !m.validGames[a].Date.Equal(m.validGames[b].Date) {
			return m.validGames[a].Date.Before(m.validGames[b].Date)
		}
		return m.validGames[a].GameID < m.validGames[b].GameID
	})
	return added, nil
}

func (m *Memory) FillSeasonGaps(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seasonsByPlayer := make(map[model.PlayerID][]model.Season)
	for _, v := range m.valuations {
		seasonsByPlayer[v.PlayerID] = append(seasonsByPlayer[v.PlayerID], model.SeasonOf(v.Date))
	}

	var added int64
	for player, observed := range seasonsByPlayer {
		for _, season := range seed.GapSeasons(observed) {
			key := ratingKey{Player: player, Season: season}
			if _, exists := m.ratings[key]; exists {
				continue
			}
			m.ratings[key] = nil
			added++
		}
	}
	return added, nil
}

// Close is a no-op for the in-memory store.
func (m *Memory) Close() {}

// RatingCount returns the number of rating rows carrying a value.
func (m *Memory) RatingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, r := range m.ratings {
		if r != nil {
			n++
		}
	}
	return n
}
