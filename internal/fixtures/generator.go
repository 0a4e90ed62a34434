// Package fixtures generates a synthetic match history as SQL, for loading
// a local database the engine can run against.
package fixtures

import (
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/okian/pitchelo/internal/domain/model"
)

// Config controls the size and shape of the generated league.
type Config struct {
	Clubs          int
	PlayersPerClub int
	Games          int
	StartDate      time.Time
	Seed           int64
}

// DefaultConfig is a small league: enough games for a few batches.
func DefaultConfig() Config {
	return Config{
		Clubs:          8,
		PlayersPerClub: 13, // 11 starters, 2 on the bench
		Games:          200,
		StartDate:      time.Date(2018, time.August, 11, 0, 0, 0, 0, time.UTC),
		Seed:           1,
	}
}

// Generator emits a reproducible synthetic league.
type Generator struct {
	cfg Config
	rng *rand.Rand
}

// New creates a Generator. The same config always generates the same SQL.
func New(cfg Config) *Generator {
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))} //nolint:gosec // fixtures, not crypto
}

const schema = `
CREATE TABLE IF NOT EXISTS games (
    game_id       BIGINT PRIMARY KEY,
    season        INT,
    date          DATE NOT NULL,
    home_club_id  BIGINT NOT NULL,
    away_club_id  BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS appearances (
    game_id        BIGINT NOT NULL,
    player_id      BIGINT NOT NULL,
    player_club_id BIGINT NOT NULL,
    minutes_played INT,
    PRIMARY KEY (game_id, player_id)
);

CREATE TABLE IF NOT EXISTS game_events (
    game_id      BIGINT NOT NULL,
    type         TEXT NOT NULL,
    minute       INT,
    club_id      BIGINT,
    player_id    BIGINT,
    player_in_id BIGINT
);

CREATE TABLE IF NOT EXISTS player_valuations (
    player_id           BIGINT NOT NULL,
    date                DATE NOT NULL,
    market_value_in_eur NUMERIC
);

CREATE TABLE IF NOT EXISTS players_elo (
    player_id BIGINT NOT NULL,
    season    INT NOT NULL,
    elo       DOUBLE PRECISION,
    PRIMARY KEY (player_id, season)
);

CREATE TABLE IF NOT EXISTS valid_games (
    game_id BIGINT PRIMARY KEY,
    date    DATE NOT NULL
);

CREATE TABLE IF NOT EXISTS process_progress (
    process_name           TEXT PRIMARY KEY,
    last_processed_date    DATE,
    last_processed_game_id BIGINT,
    updated_at             TIMESTAMPTZ
);
`

// WriteSQL emits the schema and the generated league.
func (g *Generator) WriteSQL(w io.Writer) error {
	header := fmt.Sprintf("-- synthetic match history, batch %s\n-- clubs=%d players/club=%d games=%d seed=%d\n",
		uuid.NewString(), g.cfg.Clubs, g.cfg.PlayersPerClub, g.cfg.Games, g.cfg.Seed)
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}
	if _, err := io.WriteString(w, schema); err != nil {
		return err
	}

	if err := g.writeValuations(w); err != nil {
		return err
	}
	return g.writeGames(w)
}

func (g *Generator) playerID(club, slot int) int64 {
	return int64(club)*100 + int64(slot)
}

func (g *Generator) writeValuations(w io.Writer) error {
	date := g.cfg.StartDate.AddDate(0, 0, -30)
	for club := 1; club <= g.cfg.Clubs; club++ {
		for slot := 1; slot <= g.cfg.PlayersPerClub; slot++ {
			value := 500_000 + g.rng.Intn(50_000_000)
			_, err := fmt.Fprintf(w,
				"INSERT INTO player_valuations (player_id, date, market_value_in_eur) VALUES (%d, '%s', %d);\n",
				g.playerID(club, slot), date.Format("2006-01-02"), value)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Generator) writeGames(w io.Writer) error {
	date := g.cfg.StartDate
	for i := 0; i < g.cfg.Games; i++ {
		gameID := int64(i + 1)
		home := 1 + g.rng.Intn(g.cfg.Clubs)
		away := 1 + g.rng.Intn(g.cfg.Clubs-1)
		if away >= home {
			away++
		}

		_, err := fmt.Fprintf(w,
			"INSERT INTO games (game_id, season, date, home_club_id, away_club_id) VALUES (%d, %d, '%s', %d, %d);\n",
			gameID, model.SeasonOf(date), date.Format("2006-01-02"), home, away)
		if err != nil {
			return err
		}

		for _, club := range []int{home, away} {
			if err := g.writeLineup(w, gameID, club); err != nil {
				return err
			}
			if err := g.writeGoals(w, gameID, club); err != nil {
				return err
			}
		}

		// A handful of games per date, league rounds a week apart.
		if (i+1)%4 == 0 {
			date = date.AddDate(0, 0, 7)
		}
	}
	return nil
}

// writeLineup emits 11 starters and one substitution from the bench.
func (g *Generator) writeLineup(w io.Writer, gameID int64, club int) error {
	subMinute := 46 + g.rng.Intn(40)
	outSlot := 1 + g.rng.Intn(11)
	inSlot := 12 + g.rng.Intn(g.cfg.PlayersPerClub-11)

	for slot := 1; slot <= 11; slot++ {
		minutes := model.FullGameMinutes
		if slot == outSlot {
			minutes = subMinute
		}
		_, err := fmt.Fprintf(w,
			"INSERT INTO appearances (game_id, player_id, player_club_id, minutes_played) VALUES (%d, %d, %d, %d);\n",
			gameID, g.playerID(club, slot), club, minutes)
		if err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w,
		"INSERT INTO appearances (game_id, player_id, player_club_id, minutes_played) VALUES (%d, %d, %d, %d);\n",
		gameID, g.playerID(club, inSlot), club, model.FullGameMinutes-subMinute)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w,
		"INSERT INTO game_events (game_id, type, minute, club_id, player_id, player_in_id) VALUES (%d, 'Substitutions', %d, %d, %d, %d);\n",
		gameID, subMinute, club, g.playerID(club, outSlot), g.playerID(club, inSlot))
	return err
}

func (g *Generator) writeGoals(w io.Writer, gameID int64, club int) error {
	goals := g.rng.Intn(4)
	for n := 0; n < goals; n++ {
		minute := 1 + g.rng.Intn(model.FullGameMinutes)
		scorer := 1 + g.rng.Intn(11)
		_, err := fmt.Fprintf(w,
			"INSERT INTO game_events (game_id, type, minute, club_id, player_id, player_in_id) VALUES (%d, 'Goals', %d, %d, %d, NULL);\n",
			gameID, minute, club, g.playerID(club, scorer))
		if err != nil {
			return err
		}
	}
	return nil
}
