// Package model contains domain models passed between layers.
package model

import "time"

// FullGameMinutes is the regulation length of a match. Appearances that
// report no minutes are treated as full-match participation.
const FullGameMinutes = 90

// Identifier types for the store's entities.
type (
	GameID   int64
	ClubID   int64
	PlayerID int64
	Season   int
)

// Game is one row of the games table. Immutable once recorded.
type Game struct {
	ID         GameID
	Season     Season
	Date       time.Time
	HomeClubID ClubID
	AwayClubID ClubID
}

// Appearance is the authoritative lineup row: one per player per game.
type Appearance struct {
	GameID        GameID
	PlayerID      PlayerID
	ClubID        ClubID
	MinutesPlayed int
}

// EventType discriminates game_events rows.
type EventType string

const (
	EventGoal         EventType = "Goals"
	EventSubstitution EventType = "Substitutions"
)

// GameEvent is one row of the game_events table. PlayerInID is only set
// for substitutions.
type GameEvent struct {
	GameID     GameID
	Type       EventType
	Minute     int
	ClubID     ClubID
	PlayerID   PlayerID
	PlayerInID PlayerID
}

// PlayingInterval is the [Start, End] minute range a player was on the
// pitch. Derived, never persisted.
type PlayingInterval struct {
	Start int
	End   int
}

// Minutes returns the interval length.
func (p PlayingInterval) Minutes() int { return p.End - p.Start }

// PlayerRating is one row of players_elo, unique on (PlayerID, Season).
type PlayerRating struct {
	PlayerID PlayerID
	Season   Season
	Rating   float64
}

// Valuation is one row of player_valuations.
type Valuation struct {
	PlayerID    PlayerID
	Date        time.Time
	MarketValue float64
}

// Checkpoint marks the last fully processed game for resumable runs.
type Checkpoint struct {
	Date   time.Time
	GameID GameID
}

// Zero reports whether no game has been processed yet.
func (c Checkpoint) Zero() bool { return c.Date.IsZero() && c.GameID == 0 }

// GameTask is the unit of work dispatched to the worker pool.
type GameTask struct {
	GameID GameID
	Date   time.Time
}

// GameResult is what a worker returns for one game: the new player season
// ratings to persist, or the error that aborted the game.
type GameResult struct {
	GameID  GameID
	Date    time.Time
	Season  Season
	Ratings []PlayerRating
	Err     error
}

// SeasonOf maps a date to its football season: seasons run July through
// June, so a May 2019 game belongs to season 2018.
func SeasonOf(date time.Time) Season {
	if date.Month() >= time.July {
		return Season(date.Year())
	}
	return Season(date.Year() - 1)
}
