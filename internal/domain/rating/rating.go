// Package rating implements the Elo arithmetic: expectations, game scores,
// delta scaling, and the blended club/player update.
package rating

import (
	"fmt"
	"math"

	"github.com/okian/pitchelo/internal/domain/model"
	"github.com/okian/pitchelo/internal/domain/record"
)

// ScalingPolicy selects how a raw delta is scaled.
type ScalingPolicy string

const (
	// PolicySource keeps the historical behavior: cube-root of the goal
	// margin for decided games, participation fraction for draws. The two
	// bases are inconsistent on purpose; see PolicyParticipation and
	// PolicyMargin for the uniform alternatives.
	PolicySource ScalingPolicy = "source"

	// PolicyParticipation always scales by minutes played over 90.
	PolicyParticipation ScalingPolicy = "participation"

	// PolicyMargin always scales by |goal difference|^(1/3); draws get a
	// zero delta under this policy.
	PolicyMargin ScalingPolicy = "margin"
)

// Params carries the tunable constants of the update rule.
type Params struct {
	// Weight multiplies (score - expectation), the Elo K of the club step.
	Weight float64
	// KFactor scales the final blended player delta.
	KFactor float64
	// Blend is the share q of the individual delta; (1-q) comes from the
	// club delta.
	Blend float64
	// Policy selects the delta scaling strategy.
	Policy ScalingPolicy
}

// DefaultParams mirrors the constants the system has always run with.
func DefaultParams() Params {
	return Params{Weight: 30, KFactor: 1, Blend: 0.5, Policy: PolicySource}
}

// Expectation is the logistic win probability of a side rated own against
// a side rated opponent.
func Expectation(own, opponent float64) float64 {
	return 1 / (1 + math.Pow(10, (opponent-own)/400))
}

// Score maps a goal differential to the Elo game score: win 1, draw 0.5,
// loss 0.
func Score(goalDifference int) float64 {
	switch {
	case goalDifference > 0:
		return 1
	case goalDifference < 0:
		return 0
	default:
		return 0.5
	}
}

// Subject exposes the facts the update rule needs from either side of a
// rating update. ClubSubject and PlayerSubject are the two variants.
type Subject interface {
	Rating() float64
	OpponentRating() float64
	GoalDifference() int
	MinutesPlayed() int
}

// Delta computes the rating change for a subject under the given params:
// weight * (score - expectation), scaled per policy.
func Delta(p Params, s Subject) float64 {
	raw := p.Weight * (Score(s.GoalDifference()) - Expectation(s.Rating(), s.OpponentRating()))
	return raw * scale(p.Policy, s.GoalDifference(), s.MinutesPlayed())
}

func scale(policy ScalingPolicy, goalDifference, minutes int) float64 {
	participation := float64(minutes) / model.FullGameMinutes
	margin := math.Cbrt(math.Abs(float64(goalDifference)))
	switch policy {
	case PolicyParticipation:
		return participation
	case PolicyMargin:
		return margin
	default: // PolicySource
		if goalDifference == 0 {
			return participation
		}
		return margin
	}
}

// BlendedPlayerUpdate combines the individual and club deltas into the new
// player rating:
//
//	new = old + k * (q*playerDelta + (1-q)*clubDelta*minutes/90)
func BlendedPlayerUpdate(p Params, old, playerDelta, clubDelta float64, minutes int) float64 {
	participation := float64(minutes) / model.FullGameMinutes
	return old + p.KFactor*(p.Blend*playerDelta+(1-p.Blend)*clubDelta*participation)
}

// ClubSubject is the club-side variant: full-match participation, the
// game's goal differential, and the minutes-weighted club ratings.
type ClubSubject struct {
	rating         float64
	opponentRating float64
	goalDifference int
}

// NewClubSubject builds the club variant from a game record.
func NewClubSubject(rec *record.Record, club model.ClubID) (*ClubSubject, error) {
	own, ok := rec.ClubRating(club)
	if !ok {
		return nil, fmt.Errorf("club %d has no rating in game %d", club, rec.Game().ID)
	}
	opp, ok := rec.ClubRating(rec.Opponent(club))
	if !ok {
		return nil, fmt.Errorf("club %d has no rated opponent in game %d", club, rec.Game().ID)
	}
	return &ClubSubject{
		rating:         own,
		opponentRating: opp,
		goalDifference: rec.GoalDifference(club),
	}, nil
}

func (c *ClubSubject) Rating() float64         { return c.rating }
func (c *ClubSubject) OpponentRating() float64 { return c.opponentRating }
func (c *ClubSubject) GoalDifference() int     { return c.goalDifference }
func (c *ClubSubject) MinutesPlayed() int      { return model.FullGameMinutes }

// PlayerSubject is the individual variant: the player's own season rating
// against the opponent club, with match impact standing in for the goal
// differential.
type PlayerSubject struct {
	rating         float64
	opponentRating float64
	matchImpact    int
	minutes        int
}

// NewPlayerSubject builds the player variant from a game record and the
// player's own pre-game season rating.
func NewPlayerSubject(rec *record.Record, club model.ClubID, player model.PlayerID, own float64) (*PlayerSubject, error) {
	iv, ok := rec.Interval(club, player)
	if !ok {
		return nil, fmt.Errorf("player %d has no interval in game %d", player, rec.Game().ID)
	}
	impact, ok := rec.MatchImpact(club, player)
	if !ok {
		return nil, fmt.Errorf("player %d has no match impact in game %d", player, rec.Game().ID)
	}
	opp, ok := rec.ClubRating(rec.Opponent(club))
	if !ok {
		return nil, fmt.Errorf("player %d has no rated opponent in game %d", player, rec.Game().ID)
	}
	return &PlayerSubject{
		rating:         own,
		opponentRating: opp,
		matchImpact:    impact,
		minutes:        iv.Minutes(),
	}, nil
}

func (p *PlayerSubject) Rating() float64         { return p.rating }
func (p *PlayerSubject) OpponentRating() float64 { return p.opponentRating }
func (p *PlayerSubject) GoalDifference() int     { return p.matchImpact }
func (p *PlayerSubject) MinutesPlayed() int      { return p.minutes }
