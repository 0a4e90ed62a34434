package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/okian/pitchelo/internal/domain/model"
	"github.com/okian/pitchelo/internal/domain/record"
	"github.com/okian/pitchelo/pkg/logger"
	"github.com/okian/pitchelo/pkg/metrics"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
	log  logger.Logger
}

// NewPostgres connects to the database and verifies the connection. A
// failed ping is fatal for the caller: nothing works without the store.
func NewPostgres(ctx context.Context, url string, opts ...Option) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	s.apply(cfg)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, upstream("connect", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, upstream("ping", err)
	}

	return &Postgres{pool: pool, log: logger.Named("store")}, nil
}

func upstream(op string, err error) error {
	metrics.RecordStoreError(op)
	return fmt.Errorf("%s: %w", op, errors.Join(ErrUpstream, err))
}

func observe(start time.Time) {
	metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
}

const validGamesAfterSQL = `
SELECT game_id, date
FROM valid_games
WHERE date > $1 OR (date = $1 AND game_id > $2)
ORDER BY date, game_id
LIMIT $3`

func (s *Postgres) ValidGamesAfter(ctx context.Context, cp model.Checkpoint, limit int) ([]model.GameTask, error) {
	defer observe(time.Now())

	rows, err := s.pool.Query(ctx, validGamesAfterSQL, cp.Date, cp.GameID, limit)
	if err != nil {
		return nil, upstream("valid_games", err)
	}
	defer rows.Close()

	var tasks []model.GameTask
	for rows.Next() {
		var t model.GameTask
		if err := rows.Scan(&t.GameID, &t.Date); err != nil {
			return nil, upstream("valid_games scan", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, upstream("valid_games rows", err)
	}
	return tasks, nil
}

const (
	gameSQL = `
SELECT game_id, COALESCE(season, 0), date, home_club_id, away_club_id
FROM games
WHERE game_id = $1`

	appearancesSQL = `
SELECT player_id, player_club_id, COALESCE(minutes_played, 0)
FROM appearances
WHERE game_id = $1`

	eventsSQL = `
SELECT type, COALESCE(minute, 0), club_id, COALESCE(player_id, 0), COALESCE(player_in_id, 0)
FROM game_events
WHERE game_id = $1 AND type IN ('Goals', 'Substitutions')
ORDER BY minute`
)

func (s *Postgres) GameSnapshot(ctx context.Context, id model.GameID) (record.Snapshot, error) {
	defer observe(time.Now())

	var snap record.Snapshot
	err := s.pool.QueryRow(ctx, gameSQL, id).Scan(
		&snap.Game.ID, &snap.Game.Season, &snap.Game.Date,
		&snap.Game.HomeClubID, &snap.Game.AwayClubID,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return record.Snapshot{}, fmt.Errorf("game %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return record.Snapshot{}, upstream("game", err)
	}
	if snap.Game.Season == 0 {
		snap.Game.Season = model.SeasonOf(snap.Game.Date)
	}

	rows, err := s.pool.Query(ctx, appearancesSQL, id)
	if err != nil {
		return record.Snapshot{}, upstream("appearances", err)
	}
	defer rows.Close()
	for rows.Next() {
		a := model.Appearance{GameID: id}
		if err := rows.Scan(&a.PlayerID, &a.ClubID, &a.MinutesPlayed); err != nil {
			return record.Snapshot{}, upstream("appearances scan", err)
		}
		snap.Appearances = append(snap.Appearances, a)
	}
	if err := rows.Err(); err != nil {
		return record.Snapshot{}, upstream("appearances rows", err)
	}

	evRows, err := s.pool.Query(ctx, eventsSQL, id)
	if err != nil {
		return record.Snapshot{}, upstream("events", err)
	}
	defer evRows.Close()
	for evRows.Next() {
		e := model.GameEvent{GameID: id}
		if err := evRows.Scan(&e.Type, &e.Minute, &e.ClubID, &e.PlayerID, &e.PlayerInID); err != nil {
			return record.Snapshot{}, upstream("events scan", err)
		}
		snap.Events = append(snap.Events, e)
	}
	if err := evRows.Err(); err != nil {
		return record.Snapshot{}, upstream("events rows", err)
	}

	return snap, nil
}

const playerRatingSQL = `
SELECT elo
FROM players_elo
WHERE player_id = $1 AND season = $2 AND elo IS NOT NULL`

func (s *Postgres) PlayerRating(ctx context.Context, player model.PlayerID, season model.Season) (float64, error) {
	defer observe(time.Now())

	var rating float64
	err := s.pool.QueryRow(ctx, playerRatingSQL, player, season).Scan(&rating)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("rating for player %d season %d: %w", player, season, ErrNotFound)
	}
	if err != nil {
		return 0, upstream("player_rating", err)
	}
	return rating, nil
}

const upsertRatingSQL = `
INSERT INTO players_elo (player_id, season, elo)
VALUES ($1, $2, $3)
ON CONFLICT (player_id, season) DO UPDATE SET elo = EXCLUDED.elo`

// ApplyGame writes every rating row of one game in a single transaction.
// Any failure rolls the whole game back.
func (s *Postgres) ApplyGame(ctx context.Context, ratings []model.PlayerRating) error {
	if len(ratings) == 0 {
		return nil
	}
	defer observe(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return upstream("begin", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	b := &pgx.Batch{}
	for _, r := range ratings {
		b.Queue(upsertRatingSQL, r.PlayerID, r.Season, r.Rating)
	}
	br := tx.SendBatch(ctx, b)
	for range ratings {
		if _, err := br.Exec(); err != nil {
			br.Close() //nolint:errcheck,gosec
			return upstream("upsert rating", err)
		}
	}
	if err := br.Close(); err != nil {
		return upstream("close batch", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return upstream("commit", err)
	}

	for range ratings {
		metrics.RecordRatingUpsert()
	}
	return nil
}

const valuationsSQL = `
SELECT player_id, date, market_value_in_eur
FROM player_valuations
WHERE market_value_in_eur IS NOT NULL`

func (s *Postgres) Valuations(ctx context.Context) ([]model.Valuation, error) {
	defer observe(time.Now())

	rows, err := s.pool.Query(ctx, valuationsSQL)
	if err != nil {
		return nil, upstream("valuations", err)
	}
	defer rows.Close()

	var out []model.Valuation
	for rows.Next() {
		var v model.Valuation
		if err := rows.Scan(&v.PlayerID, &v.Date, &v.MarketValue); err != nil {
			return nil, upstream("valuations scan", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, upstream("valuations rows", err)
	}
	return out, nil
}

const (
	checkpointSQL = `
SELECT last_processed_date, last_processed_game_id
FROM process_progress
WHERE process_name = $1`

	setCheckpointSQL = `
INSERT INTO process_progress (process_name, last_processed_date, last_processed_game_id, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (process_name) DO UPDATE
SET last_processed_date = EXCLUDED.last_processed_date,
    last_processed_game_id = EXCLUDED.last_processed_game_id,
    updated_at = now()`
)

func (s *Postgres) Checkpoint(ctx context.Context, process string) (model.Checkpoint, error) {
	defer observe(time.Now())

	var cp model.Checkpoint
	err := s.pool.QueryRow(ctx, checkpointSQL, process).Scan(&cp.Date, &cp.GameID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Checkpoint{}, nil
	}
	if err != nil {
		return model.Checkpoint{}, upstream("checkpoint", err)
	}
	return cp, nil
}

func (s *Postgres) SetCheckpoint(ctx context.Context, process string, cp model.Checkpoint) error {
	defer observe(time.Now())

	if _, err := s.pool.Exec(ctx, setCheckpointSQL, process, cp.Date, cp.GameID); err != nil {
		return upstream("set checkpoint", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Postgres) Close() {
	s.pool.Close()
}
