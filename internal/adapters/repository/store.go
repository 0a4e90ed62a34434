// Package repository defines the match-history store interface and its
// Postgres and in-memory implementations.
package repository

import (
	"context"

	"github.com/okian/pitchelo/internal/domain/model"
	"github.com/okian/pitchelo/internal/domain/record"
)

// Store provides read/write access to the match history and rating state.
type Store interface {
	// ValidGamesAfter returns up to limit processable games strictly after
	// the checkpoint, ordered by (date, game_id).
	ValidGamesAfter(ctx context.Context, cp model.Checkpoint, limit int) ([]model.GameTask, error)

	// GameSnapshot returns the game row with its appearances and events.
	// Returns ErrNotFound for an unknown game.
	GameSnapshot(ctx context.Context, id model.GameID) (record.Snapshot, error)

	// PlayerRating returns the season rating for a player.
	// Returns ErrNotFound when the pair has never been rated.
	PlayerRating(ctx context.Context, player model.PlayerID, season model.Season) (float64, error)

	// ApplyGame persists one game's rating rows atomically: either every
	// row lands or none do.
	ApplyGame(ctx context.Context, ratings []model.PlayerRating) error

	// Valuations returns the full market-valuation history.
	Valuations(ctx context.Context) ([]model.Valuation, error)

	// Checkpoint returns the resume point for a named process, or a zero
	// checkpoint when the process has never run.
	Checkpoint(ctx context.Context, process string) (model.Checkpoint, error)

	// SetCheckpoint records the resume point for a named process.
	SetCheckpoint(ctx context.Context, process string, cp model.Checkpoint) error

	// RefreshValidGames repopulates the processable-games table: games
	// with at least one appearance row. Returns the number of rows added.
	RefreshValidGames(ctx context.Context) (int64, error)

	// FillSeasonGaps synthesizes missing (player, season) rating rows
	// between a player's first and last valued season. Ratings stay null.
	// Returns the number of rows added.
	FillSeasonGaps(ctx context.Context) (int64, error)

	// Close releases the store's resources.
	Close()
}
