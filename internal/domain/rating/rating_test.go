package rating_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/okian/pitchelo/internal/domain/model"
	"github.com/okian/pitchelo/internal/domain/rating"
	"github.com/okian/pitchelo/internal/domain/record"
	. "github.com/smartystreets/goconvey/convey"
)

type flatRatings float64

func (f flatRatings) Rating(_ context.Context, _ model.PlayerID, _ model.Season) (float64, error) {
	return float64(f), nil
}

func TestExpectation(t *testing.T) {
	Convey("Given the logistic expectation model", t, func() {
		Convey("Equal ratings give 0.5", func() {
			So(rating.Expectation(1500, 1500), ShouldAlmostEqual, 0.5, 1e-12)
		})

		Convey("A 400-point edge gives about 0.909", func() {
			So(rating.Expectation(1900, 1500), ShouldAlmostEqual, 1.0/1.1, 1e-9)
		})

		Convey("Expectations of both sides sum to 1", func() {
			So(rating.Expectation(1620, 1480)+rating.Expectation(1480, 1620), ShouldAlmostEqual, 1, 1e-12)
		})
	})
}

func TestScore(t *testing.T) {
	Convey("Given goal differentials", t, func() {
		So(rating.Score(3), ShouldEqual, 1)
		So(rating.Score(0), ShouldEqual, 0.5)
		So(rating.Score(-1), ShouldEqual, 0)
	})
}

// staticSubject lets delta scaling be probed without a record.
type staticSubject struct {
	rating, opponent float64
	gd, minutes      int
}

func (s staticSubject) Rating() float64         { return s.rating }
func (s staticSubject) OpponentRating() float64 { return s.opponent }
func (s staticSubject) GoalDifference() int     { return s.gd }
func (s staticSubject) MinutesPlayed() int      { return s.minutes }

func TestDeltaScaling(t *testing.T) {
	Convey("Given two clubs both rated 1500 and weight 30", t, func() {
		p := rating.Params{Weight: 30, KFactor: 1, Blend: 0.5, Policy: rating.PolicySource}

		Convey("A 2-0 home win moves the winner up by about 18.9", func() {
			winner := staticSubject{rating: 1500, opponent: 1500, gd: 2, minutes: 90}
			delta := rating.Delta(p, winner)
			So(delta, ShouldAlmostEqual, 30*0.5*math.Cbrt(2), 1e-9)
			So(delta, ShouldAlmostEqual, 18.9, 0.05)
		})

		Convey("The loser moves down by the same amount", func() {
			loser := staticSubject{rating: 1500, opponent: 1500, gd: -2, minutes: 90}
			So(rating.Delta(p, loser), ShouldAlmostEqual, -30*0.5*math.Cbrt(2), 1e-9)
		})

		Convey("A full-90 draw between equals yields zero delta", func() {
			drawn := staticSubject{rating: 1500, opponent: 1500, gd: 0, minutes: 90}
			So(rating.Delta(p, drawn), ShouldAlmostEqual, 0, 1e-12)
		})

		Convey("A drawn-game delta scales by participation", func() {
			// Weaker side draws: S=0.5, E<0.5, positive delta scaled by 45/90.
			underdog := staticSubject{rating: 1400, opponent: 1600, gd: 0, minutes: 45}
			expect := 30 * (0.5 - rating.Expectation(1400, 1600)) * 0.5
			So(rating.Delta(p, underdog), ShouldAlmostEqual, expect, 1e-9)
		})
	})

	Convey("Given the uniform policies", t, func() {
		subject := staticSubject{rating: 1500, opponent: 1500, gd: 0, minutes: 45}

		Convey("Participation policy scales a decided game by minutes", func() {
			p := rating.Params{Weight: 30, Policy: rating.PolicyParticipation}
			won := staticSubject{rating: 1500, opponent: 1500, gd: 1, minutes: 45}
			So(rating.Delta(p, won), ShouldAlmostEqual, 30*0.5*0.5, 1e-9)
		})

		Convey("Margin policy zeroes the delta on a draw", func() {
			p := rating.Params{Weight: 30, Policy: rating.PolicyMargin}
			So(rating.Delta(p, subject), ShouldAlmostEqual, 0, 1e-12)
		})
	})
}

func TestBlendedPlayerUpdate(t *testing.T) {
	Convey("Given the blended update rule", t, func() {
		p := rating.Params{Weight: 30, KFactor: 1, Blend: 0.5, Policy: rating.PolicySource}

		Convey("Zero deltas leave the rating unchanged", func() {
			So(rating.BlendedPlayerUpdate(p, 1500, 0, 0, 90), ShouldAlmostEqual, 1500, 1e-12)
		})

		Convey("The club share is weighted by participation", func() {
			got := rating.BlendedPlayerUpdate(p, 1500, 10, 20, 45)
			// 1500 + 1*(0.5*10 + 0.5*20*0.5) = 1510
			So(got, ShouldAlmostEqual, 1510, 1e-9)
		})

		Convey("KFactor scales the whole adjustment", func() {
			p2 := p
			p2.KFactor = 2
			So(rating.BlendedPlayerUpdate(p2, 1500, 10, 20, 45), ShouldAlmostEqual, 1520, 1e-9)
		})
	})
}

func TestSubjectsFromRecord(t *testing.T) {
	Convey("Given a reconstructed 0-0 draw between equal sides", t, func() {
		game := model.Game{
			ID:         42,
			Date:       time.Date(2019, time.October, 5, 0, 0, 0, 0, time.UTC),
			HomeClubID: 1,
			AwayClubID: 2,
		}
		snap := record.Snapshot{
			Game: game,
			Appearances: []model.Appearance{
				{GameID: 42, PlayerID: 11, ClubID: 1, MinutesPlayed: 90},
				{GameID: 42, PlayerID: 21, ClubID: 2, MinutesPlayed: 90},
			},
		}
		rec, err := record.New(context.Background(), snap, flatRatings(1500))
		So(err, ShouldBeNil)

		p := rating.DefaultParams()

		Convey("The club subject sees a draw with expectation one half", func() {
			club, err := rating.NewClubSubject(rec, 1)
			So(err, ShouldBeNil)
			So(club.GoalDifference(), ShouldEqual, 0)
			So(club.MinutesPlayed(), ShouldEqual, 90)
			So(rating.Delta(p, club), ShouldAlmostEqual, 0, 1e-12)
		})

		Convey("A full-90 player in the draw keeps their rating exactly", func() {
			player, err := rating.NewPlayerSubject(rec, 1, 11, 1500)
			So(err, ShouldBeNil)
			So(player.GoalDifference(), ShouldEqual, 0)
			So(player.MinutesPlayed(), ShouldEqual, 90)

			playerDelta := rating.Delta(p, player)
			club, _ := rating.NewClubSubject(rec, 1)
			clubDelta := rating.Delta(p, club)
			So(rating.BlendedPlayerUpdate(p, 1500, playerDelta, clubDelta, 90), ShouldAlmostEqual, 1500, 1e-12)
		})

		Convey("An unknown player yields an error", func() {
			_, err := rating.NewPlayerSubject(rec, 1, 99, 1500)
			So(err, ShouldNotBeNil)
		})
	})
}
