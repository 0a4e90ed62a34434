// Package record reconstructs per-game facts from raw store rows: playing
// intervals, goal timelines, match impact, and minutes-weighted club ratings.
//
// A Record is a value object built eagerly, once, for a single game, and is
// owned exclusively by that game's unit of work. It never mutates after
// construction.
package record

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/pitchelo/internal/domain/model"
)

// Slot identifies a (club, player) pair within one game.
type Slot struct {
	Club   model.ClubID
	Player model.PlayerID
}

// Snapshot carries the raw rows for one game, fetched by the caller.
type Snapshot struct {
	Game        model.Game
	Appearances []model.Appearance
	Events      []model.GameEvent
}

// RatingSource supplies a player's season rating, seeding one if the player
// has never been rated. Gaps are the source's concern, not the record's.
type RatingSource interface {
	Rating(ctx context.Context, playerID model.PlayerID, season model.Season) (float64, error)
}

// Record holds all derived facts for one game.
type Record struct {
	game        model.Game
	intervals   map[Slot]model.PlayingInterval
	goals       map[model.ClubID][]int
	impacts     map[Slot]int
	clubRatings map[model.ClubID]float64
	minutes     map[Slot]int // reported minutes_played per roster slot
}

// New builds a Record from a snapshot, deriving every fact eagerly.
// Player season ratings come from src; the game's season is taken from the
// game date, not the stored season column, so mid-season winter games land
// in the season that started the previous July.
func New(ctx context.Context, snap Snapshot, src RatingSource) (*Record, error) {
	r := &Record{
		game:        snap.Game,
		intervals:   make(map[Slot]model.PlayingInterval, len(snap.Appearances)),
		goals:       make(map[model.ClubID][]int, 2),
		impacts:     make(map[Slot]int, len(snap.Appearances)),
		clubRatings: make(map[model.ClubID]float64, 2),
		minutes:     make(map[Slot]int, len(snap.Appearances)),
	}

	if err := r.buildIntervals(snap); err != nil {
		return nil, err
	}
	if err := r.buildGoals(snap); err != nil {
		return nil, err
	}
	r.buildImpacts()
	if err := r.buildClubRatings(ctx, src); err != nil {
		return nil, err
	}
	return r, nil
}

// buildIntervals derives one playing interval per (club, player): starters
// from appearances, then the substitution overlay.
func (r *Record) buildIntervals(snap Snapshot) error {
	for _, a := range snap.Appearances {
		end := a.MinutesPlayed
		if end <= 0 || end > model.FullGameMinutes {
			end = model.FullGameMinutes
		}
		slot := Slot{Club: a.ClubID, Player: a.PlayerID}
		r.intervals[slot] = model.PlayingInterval{Start: 0, End: end}
		if a.MinutesPlayed > 0 {
			r.minutes[slot] = a.MinutesPlayed
		}
	}

	for _, e := range snap.Events {
		if e.Type != model.EventSubstitution {
			continue
		}
		minute := clampMinute(e.Minute)

		out := Slot{Club: e.ClubID, Player: e.PlayerID}
		iv, ok := r.intervals[out]
		if !ok {
			return fmt.Errorf("%w: game %d: substituted-off player %d has no appearance", ErrDataIntegrity, r.game.ID, e.PlayerID)
		}
		end := minute
		if end <= iv.Start {
			end = iv.Start + 1
		}
		r.intervals[out] = model.PlayingInterval{Start: iv.Start, End: end}

		in := Slot{Club: e.ClubID, Player: e.PlayerInID}
		if _, ok := r.intervals[in]; !ok {
			return fmt.Errorf("%w: game %d: substituted-on player %d has no appearance", ErrDataIntegrity, r.game.ID, e.PlayerInID)
		}
		start := minute
		if start >= model.FullGameMinutes {
			start = model.FullGameMinutes - 1
		}
		r.intervals[in] = model.PlayingInterval{Start: start, End: model.FullGameMinutes}
	}
	return nil
}

func (r *Record) buildGoals(snap Snapshot) error {
	r.goals[r.game.HomeClubID] = nil
	r.goals[r.game.AwayClubID] = nil
	for _, e := range snap.Events {
		if e.Type != model.EventGoal {
			continue
		}
		if e.ClubID != r.game.HomeClubID && e.ClubID != r.game.AwayClubID {
			return fmt.Errorf("%w: game %d: goal credited to club %d not playing this game", ErrDataIntegrity, r.game.ID, e.ClubID)
		}
		r.goals[e.ClubID] = append(r.goals[e.ClubID], clampMinute(e.Minute))
	}
	for club := range r.goals {
		sort.Ints(r.goals[club])
	}
	return nil
}

// buildImpacts counts, for every roster slot, own-club goals minus other
// clubs' goals scored while the player was on the pitch (bounds inclusive).
func (r *Record) buildImpacts() {
	for slot, iv := range r.intervals {
		impact := 0
		for club, minutes := range r.goals {
			for _, m := range minutes {
				if m < iv.Start || m > iv.End {
					continue
				}
				if club == slot.Club {
					impact++
				} else {
					impact--
				}
			}
		}
		r.impacts[slot] = impact
	}
}

// buildClubRatings computes the minutes-weighted mean season rating per club
// over reported minutes. A club whose roster reports zero total minutes has
// no defined rating.
func (r *Record) buildClubRatings(ctx context.Context, src RatingSource) error {
	season := model.SeasonOf(r.game.Date)
	totalRating := make(map[model.ClubID]float64, 2)
	totalMinutes := make(map[model.ClubID]int, 2)

	for slot, minutes := range r.minutes {
		rating, err := src.Rating(ctx, slot.Player, season)
		if err != nil {
			return fmt.Errorf("rating player %d season %d: %w", slot.Player, season, err)
		}
		totalRating[slot.Club] += float64(minutes) * rating
		totalMinutes[slot.Club] += minutes
	}

	for _, club := range []model.ClubID{r.game.HomeClubID, r.game.AwayClubID} {
		if totalMinutes[club] <= 0 {
			return fmt.Errorf("%w: game %d: club %d has zero reported minutes", ErrDegenerateRating, r.game.ID, club)
		}
		r.clubRatings[club] = totalRating[club] / float64(totalMinutes[club])
	}
	return nil
}

// Game returns the game this record was built for.
func (r *Record) Game() model.Game { return r.game }

// Season returns the game's season per the July-split convention.
func (r *Record) Season() model.Season { return model.SeasonOf(r.game.Date) }

// Intervals returns every (club, player) playing interval.
func (r *Record) Intervals() map[Slot]model.PlayingInterval {
	out := make(map[Slot]model.PlayingInterval, len(r.intervals))
	for k, v := range r.intervals {
		out[k] = v
	}
	return out
}

// Interval returns the playing interval for one roster slot.
func (r *Record) Interval(club model.ClubID, player model.PlayerID) (model.PlayingInterval, bool) {
	iv, ok := r.intervals[Slot{Club: club, Player: player}]
	return iv, ok
}

// GoalMinutes returns the sorted minutes at which club scored.
func (r *Record) GoalMinutes(club model.ClubID) []int {
	src := r.goals[club]
	out := make([]int, len(src))
	copy(out, src)
	return out
}

// GoalDifference returns club's goals minus its opponent's.
func (r *Record) GoalDifference(club model.ClubID) int {
	return len(r.goals[club]) - len(r.goals[r.Opponent(club)])
}

// MatchImpact returns the goal differential accrued while the player was on
// the pitch.
func (r *Record) MatchImpact(club model.ClubID, player model.PlayerID) (int, bool) {
	impact, ok := r.impacts[Slot{Club: club, Player: player}]
	return impact, ok
}

// ClubRating returns the pre-game minutes-weighted rating for club.
func (r *Record) ClubRating(club model.ClubID) (float64, bool) {
	rating, ok := r.clubRatings[club]
	return rating, ok
}

// Opponent returns the other club in this game.
func (r *Record) Opponent(club model.ClubID) model.ClubID {
	if club == r.game.HomeClubID {
		return r.game.AwayClubID
	}
	return r.game.HomeClubID
}

// ReportedMinutes returns the appearance-reported minutes for a roster slot,
// zero when the appearance carried no minutes.
func (r *Record) ReportedMinutes(club model.ClubID, player model.PlayerID) int {
	return r.minutes[Slot{Club: club, Player: player}]
}

func clampMinute(m int) int {
	if m < 0 {
		return 0
	}
	if m > model.FullGameMinutes {
		return model.FullGameMinutes
	}
	return m
}
