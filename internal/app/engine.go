// Package app wires the store, worker pool, and rating domain into the
// resumable update engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	taskqueue "github.com/okian/pitchelo/internal/adapters/mq/queue"
	workerpool "github.com/okian/pitchelo/internal/adapters/mq/worker"
	"github.com/okian/pitchelo/internal/adapters/repository"
	"github.com/okian/pitchelo/internal/domain/dedupe"
	"github.com/okian/pitchelo/internal/domain/model"
	"github.com/okian/pitchelo/internal/domain/rating"
	"github.com/okian/pitchelo/internal/domain/record"
	"github.com/okian/pitchelo/internal/domain/seed"
	"github.com/okian/pitchelo/pkg/logger"
	"github.com/okian/pitchelo/pkg/metrics"
)

// DefaultProcessName is the process_progress row the engine checkpoints
// under.
const DefaultProcessName = "rating_update"

// Stats summarizes one engine run.
type Stats struct {
	Processed  int
	Failed     int
	Skipped    int
	Checkpoint model.Checkpoint
}

// Engine drives the chronological, batched rating update over the match
// history.
type Engine struct {
	store   repository.Store
	deduper dedupe.Deduper

	params      rating.Params
	seedCfg     seed.Config
	processName string
	batchSize   int
	maxGames    int
	workerCount int
	queueSize   int

	// Built per run from the valuation history.
	initializer *seed.Initializer

	logger logger.Logger
}

// New constructs an Engine over the given store.
func New(store repository.Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		params:      rating.DefaultParams(),
		processName: DefaultProcessName,
		batchSize:   100,
		maxGames:    1000,
		workerCount: 4,
		queueSize:   4096,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(e.maxGames * 2))
	e.logger = logger.Named("engine")
	return e
}

// Run processes games from the last checkpoint until the history or the
// games cap is exhausted. One failed game never aborts the run.
func (e *Engine) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	if err := e.prepare(ctx); err != nil {
		return stats, err
	}

	cp, err := e.store.Checkpoint(ctx, e.processName)
	if err != nil {
		return stats, fmt.Errorf("loading checkpoint: %w", err)
	}
	if cp.Zero() {
		e.logger.Info(ctx, "no checkpoint, starting from the beginning")
	} else {
		e.logger.Info(ctx, "resuming after checkpoint",
			logger.Time("date", cp.Date),
			logger.Int64("gameID", int64(cp.GameID)),
		)
	}

	queue := taskqueue.NewInMemoryQueue(taskqueue.WithCapacity(e.queueSize))
	results := make(chan workerpool.Result, e.queueSize)

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	var wg sync.WaitGroup
	for i := 0; i < e.workerCount; i++ {
		w := workerpool.NewInMemoryWorker(queue, e, results,
			workerpool.WithName(fmt.Sprintf("worker-%d", i)))
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(workerCtx)
		}()
	}
	metrics.UpdateWorkerCount(e.workerCount)
	defer func() {
		queue.Close() //nolint:errcheck,gosec
		stopWorkers()
		wg.Wait()
		metrics.UpdateWorkerCount(0)
	}()

	fetched := 0
	for fetched < e.maxGames {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		limit := e.batchSize
		if remaining := e.maxGames - fetched; remaining < limit {
			limit = remaining
		}
		tasks, err := e.store.ValidGamesAfter(ctx, cp, limit)
		if err != nil {
			return stats, fmt.Errorf("fetching batch: %w", err)
		}
		if len(tasks) == 0 {
			break
		}
		fetched += len(tasks)

		dispatched := 0
		for _, t := range tasks {
			if e.deduper.SeenAndRecord(ctx, t.GameID) {
				stats.Skipped++
				metrics.RecordGameSkipped()
				continue
			}
			if !queue.Enqueue(ctx, t) {
				e.deduper.Unrecord(ctx, t.GameID)
				e.logger.Warn(ctx, "queue rejected task, will retry next batch",
					logger.Int64("gameID", int64(t.GameID)))
				break
			}
			dispatched++
		}

		batch := make([]workerpool.Result, 0, dispatched)
		for len(batch) < dispatched {
			select {
			case r := <-results:
				batch = append(batch, r)
			case <-ctx.Done():
				return stats, ctx.Err()
			}
		}

		// The cursor only advances over games that produced a result;
		// undispatched games stay after cp and are fetched again.
		if next := e.persistBatch(ctx, batch, &stats); !next.Zero() {
			cp = next
			if err := e.store.SetCheckpoint(ctx, e.processName, cp); err != nil {
				return stats, fmt.Errorf("saving checkpoint: %w", err)
			}
			metrics.RecordBatchFlushed()
		}

		e.logger.Info(ctx, "batch complete",
			logger.Int("batch", len(batch)),
			logger.Int("processed", stats.Processed),
			logger.Int("failed", stats.Failed),
		)
	}

	stats.Checkpoint = cp
	e.logger.Info(ctx, "run complete",
		logger.Int("processed", stats.Processed),
		logger.Int("failed", stats.Failed),
		logger.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

// prepare refreshes the processable set, fills season gaps, and builds the
// cold-start initializer from the valuation history.
func (e *Engine) prepare(ctx context.Context) error {
	added, err := e.store.RefreshValidGames(ctx)
	if err != nil {
		return fmt.Errorf("refreshing valid games: %w", err)
	}
	gaps, err := e.store.FillSeasonGaps(ctx)
	if err != nil {
		return fmt.Errorf("filling season gaps: %w", err)
	}
	valuations, err := e.store.Valuations(ctx)
	if err != nil {
		return fmt.Errorf("loading valuations: %w", err)
	}
	e.initializer = seed.New(e.seedCfg, valuations)

	e.logger.Info(ctx, "prepared run",
		logger.Int64("newValidGames", added),
		logger.Int64("seasonGapRows", gaps),
		logger.Int("valuations", len(valuations)),
	)
	return nil
}

// persistBatch writes the batch results one game at a time in (date, id)
// order and returns the advanced checkpoint. A game that fails to persist
// is rolled back, logged, and released for a future retry; the cursor
// still moves past it.
func (e *Engine) persistBatch(ctx context.Context, batch []workerpool.Result, stats *Stats) model.Checkpoint {
	sort.Slice(batch, func(a, b int) bool {
		if !batch[a].Date.Equal(batch[b].Date) {
			return batch[a].Date.Before(batch[b].Date)
		}
		return batch[a].GameID < batch[b].GameID
	})

	start := time.Now()
	defer func() {
		metrics.RecordBatchPersistLatency(float64(time.Since(start).Milliseconds()))
	}()

	var cp model.Checkpoint
	for _, r := range batch {
		cp = model.Checkpoint{Date: r.Date, GameID: r.GameID}

		if r.Err != nil {
			stats.Failed++
			metrics.RecordGameFailed()
			continue
		}
		if err := e.store.ApplyGame(ctx, r.Ratings); err != nil {
			stats.Failed++
			metrics.RecordGameFailed()
			e.deduper.Unrecord(ctx, r.GameID)
			e.logger.Error(ctx, "game rolled back",
				logger.Int64("gameID", int64(r.GameID)),
				logger.Error(err),
			)
			continue
		}
		stats.Processed++
		metrics.RecordGameProcessed()
	}
	return cp
}

// Process computes one game's rating outcome. It implements the worker
// pool's Processor; every failure lands in Result.Err.
func (e *Engine) Process(ctx context.Context, t workerpool.Task) workerpool.Result {
	result := workerpool.Result{GameID: t.GameID, Date: t.Date}

	snap, err := e.store.GameSnapshot(ctx, t.GameID)
	if err != nil {
		result.Err = fmt.Errorf("snapshot: %w", err)
		return result
	}
	season := snap.Game.Season
	result.Season = season

	pregame, err := e.resolveRatings(ctx, snap)
	if err != nil {
		result.Err = fmt.Errorf("resolving ratings: %w", err)
		return result
	}

	rec, err := record.New(ctx, snap, pregame)
	if err != nil {
		result.Err = fmt.Errorf("reconstructing game: %w", err)
		return result
	}

	for _, club := range []model.ClubID{snap.Game.HomeClubID, snap.Game.AwayClubID} {
		clubSubject, err := rating.NewClubSubject(rec, club)
		if err != nil {
			result.Err = err
			return result
		}
		clubDelta := rating.Delta(e.params, clubSubject)

		for _, a := range snap.Appearances {
			if a.ClubID != club {
				continue
			}
			old := pregame[a.PlayerID]
			subject, err := rating.NewPlayerSubject(rec, club, a.PlayerID, old)
			if err != nil {
				result.Err = err
				return result
			}
			playerDelta := rating.Delta(e.params, subject)
			updated := rating.BlendedPlayerUpdate(e.params, old, playerDelta, clubDelta, subject.MinutesPlayed())

			result.Ratings = append(result.Ratings, model.PlayerRating{
				PlayerID: a.PlayerID,
				Season:   season,
				Rating:   updated,
			})
		}
	}
	return result
}

// pregameRatings satisfies record.RatingSource from a resolved map.
type pregameRatings map[model.PlayerID]float64

func (p pregameRatings) Rating(_ context.Context, player model.PlayerID, _ model.Season) (float64, error) {
	r, ok := p[player]
	if !ok {
		return 0, fmt.Errorf("player %d has no resolved rating", player)
	}
	return r, nil
}

// resolveRatings produces the pre-game rating of every roster player,
// seeding the ones that have never been rated this season: teammate
// average first, market-value z-score second, baseline last.
func (e *Engine) resolveRatings(ctx context.Context, snap record.Snapshot) (pregameRatings, error) {
	season := snap.Game.Season
	resolved := make(pregameRatings, len(snap.Appearances))

	type pending struct {
		player model.PlayerID
		club   model.ClubID
	}
	var unrated []pending
	ratedByClub := make(map[model.ClubID][]float64)
	rosterByClub := make(map[model.ClubID]int)

	for _, a := range snap.Appearances {
		rosterByClub[a.ClubID]++
		r, err := e.store.PlayerRating(ctx, a.PlayerID, season)
		switch {
		case err == nil:
			resolved[a.PlayerID] = r
			ratedByClub[a.ClubID] = append(ratedByClub[a.ClubID], r)
		case errors.Is(err, repository.ErrNotFound):
			unrated = append(unrated, pending{player: a.PlayerID, club: a.ClubID})
		default:
			return nil, err
		}
	}

	for _, p := range unrated {
		teammates := rosterByClub[p.club] - 1
		seeded, source := e.initializer.Initialize(p.player, season, ratedByClub[p.club], teammates)
		resolved[p.player] = seeded
		metrics.RecordSeedInitialization(string(source))
	}
	return resolved, nil
}
