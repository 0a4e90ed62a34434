package repository

import (
	"context"
	"time"
)

// Games without a single appearance row cannot be reconstructed, so they
// are excluded from processing up front rather than failing one by one.
const refreshValidGamesSQL = `
INSERT INTO valid_games (game_id, date)
SELECT g.game_id, g.date
FROM games g
WHERE EXISTS (SELECT 1 FROM appearances a WHERE a.game_id = g.game_id)
ON CONFLICT (game_id) DO NOTHING`

// RefreshValidGames repopulates the processable-games table.
func (s *Postgres) RefreshValidGames(ctx context.Context) (int64, error) {
	defer observe(time.Now())

	tag, err := s.pool.Exec(ctx, refreshValidGamesSQL)
	if err != nil {
		return 0, upstream("refresh valid_games", err)
	}
	return tag.RowsAffected(), nil
}

// Seasons run July through June; the season of a valuation is its year
// when taken in July or later, the previous year otherwise.
const fillSeasonGapsSQL = `
INSERT INTO players_elo (player_id, season)
SELECT b.player_id, s.season
FROM (
    SELECT player_id,
           MIN(CASE WHEN EXTRACT(MONTH FROM date) >= 7
                    THEN EXTRACT(YEAR FROM date)
                    ELSE EXTRACT(YEAR FROM date) - 1 END)::int AS first_season,
           MAX(CASE WHEN EXTRACT(MONTH FROM date) >= 7
                    THEN EXTRACT(YEAR FROM date)
                    ELSE EXTRACT(YEAR FROM date) - 1 END)::int AS last_season
    FROM player_valuations
    GROUP BY player_id
) b
CROSS JOIN LATERAL generate_series(b.first_season, b.last_season) AS s(season)
WHERE NOT EXISTS (
    SELECT 1 FROM players_elo pe
    WHERE pe.player_id = b.player_id AND pe.season = s.season
)
ON CONFLICT (player_id, season) DO NOTHING`

// FillSeasonGaps inserts rating-less rows for every season between a
// player's first and last valued season. The rating engine fills the
// actual values when those seasons are processed.
func (s *Postgres) FillSeasonGaps(ctx context.Context) (int64, error) {
	defer observe(time.Now())

	tag, err := s.pool.Exec(ctx, fillSeasonGapsSQL)
	if err != nil {
		return 0, upstream("fill season gaps", err)
	}
	return tag.RowsAffected(), nil
}
