package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/pitchelo/internal/adapters/repository"
	"github.com/okian/pitchelo/internal/app"
	"github.com/okian/pitchelo/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fullLineup(game model.GameID, club model.ClubID, players ...model.PlayerID) []model.Appearance {
	out := make([]model.Appearance, 0, len(players))
	for _, p := range players {
		out = append(out, model.Appearance{GameID: game, PlayerID: p, ClubID: club, MinutesPlayed: 90})
	}
	return out
}

// loadSeason loads two one-goal games in chronological order:
// game 1: club 1 beats club 2, game 2: club 3 beats club 4.
func loadSeason(m *repository.Memory) {
	apps := append(fullLineup(1, 1, 11, 12), fullLineup(1, 2, 21, 22)...)
	m.AddGame(
		model.Game{ID: 1, Date: day(2018, time.August, 10), HomeClubID: 1, AwayClubID: 2},
		apps,
		[]model.GameEvent{{GameID: 1, Type: model.EventGoal, Minute: 30, ClubID: 1}},
	)

	apps2 := append(fullLineup(2, 3, 31, 32), fullLineup(2, 4, 41, 42)...)
	m.AddGame(
		model.Game{ID: 2, Date: day(2018, time.August, 17), HomeClubID: 3, AwayClubID: 4},
		apps2,
		[]model.GameEvent{{GameID: 2, Type: model.EventGoal, Minute: 55, ClubID: 3}},
	)
}

func TestEngineRun(t *testing.T) {
	Convey("Given an unrated league with two decided games", t, func() {
		ctx := context.Background()
		store := repository.NewMemory()
		loadSeason(store)

		engine := app.New(store, app.WithWorkerCount(2), app.WithBatchSize(10))
		stats, err := engine.Run(ctx)
		So(err, ShouldBeNil)

		Convey("Every game is processed and the checkpoint lands on the last one", func() {
			So(stats.Processed, ShouldEqual, 2)
			So(stats.Failed, ShouldEqual, 0)
			So(stats.Checkpoint, ShouldResemble, model.Checkpoint{Date: day(2018, time.August, 17), GameID: 2})

			cp, err := store.Checkpoint(ctx, app.DefaultProcessName)
			So(err, ShouldBeNil)
			So(cp.GameID, ShouldEqual, model.GameID(2))
		})

		Convey("Unrated full-90 winners move up from the baseline, losers down", func() {
			// Equal baseline sides, 1-0: delta 30*(1-0.5)*1 = 15 for the
			// club and the player alike, blended to the full 15.
			winner, err := store.PlayerRating(ctx, 11, 2018)
			So(err, ShouldBeNil)
			So(winner, ShouldAlmostEqual, 1515, 1e-9)

			loser, err := store.PlayerRating(ctx, 21, 2018)
			So(err, ShouldBeNil)
			So(loser, ShouldAlmostEqual, 1485, 1e-9)
		})

		Convey("A second run over the same history processes nothing new", func() {
			again, err := app.New(store, app.WithWorkerCount(2)).Run(ctx)
			So(err, ShouldBeNil)
			So(again.Processed, ShouldEqual, 0)

			winner, err := store.PlayerRating(ctx, 11, 2018)
			So(err, ShouldBeNil)
			So(winner, ShouldAlmostEqual, 1515, 1e-9)
		})
	})
}

func TestEngineResume(t *testing.T) {
	Convey("Given a run capped at one game", t, func() {
		ctx := context.Background()
		store := repository.NewMemory()
		loadSeason(store)

		first, err := app.New(store, app.WithMaxGames(1)).Run(ctx)
		So(err, ShouldBeNil)
		So(first.Processed, ShouldEqual, 1)
		So(first.Checkpoint.GameID, ShouldEqual, model.GameID(1))

		Convey("A fresh engine resumes strictly after the checkpoint", func() {
			second, err := app.New(store).Run(ctx)
			So(err, ShouldBeNil)
			So(second.Processed, ShouldEqual, 1)
			So(second.Checkpoint.GameID, ShouldEqual, model.GameID(2))

			r, err := store.PlayerRating(ctx, 31, 2018)
			So(err, ShouldBeNil)
			So(r, ShouldAlmostEqual, 1515, 1e-9)
		})
	})
}

func TestEngineFailureIsolation(t *testing.T) {
	Convey("Given a store that refuses the first game's write", t, func() {
		ctx := context.Background()
		store := repository.NewMemory(repository.WithApplyHook(func(_ context.Context, ratings []model.PlayerRating) error {
			for _, r := range ratings {
				if r.PlayerID == 11 {
					return errors.New("constraint violation")
				}
			}
			return nil
		}))
		loadSeason(store)

		stats, err := app.New(store).Run(ctx)
		So(err, ShouldBeNil)

		Convey("The failed game rolls back and the rest of the run continues", func() {
			So(stats.Processed, ShouldEqual, 1)
			So(stats.Failed, ShouldEqual, 1)

			_, err := store.PlayerRating(ctx, 11, 2018)
			So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)

			r, err := store.PlayerRating(ctx, 31, 2018)
			So(err, ShouldBeNil)
			So(r, ShouldAlmostEqual, 1515, 1e-9)
		})

		Convey("The cursor still moves past the failed game", func() {
			So(stats.Checkpoint.GameID, ShouldEqual, model.GameID(2))
		})
	})

	Convey("Given a game whose events contradict its lineup", t, func() {
		ctx := context.Background()
		store := repository.NewMemory()
		loadSeason(store)
		store.AddGame(
			model.Game{ID: 3, Date: day(2018, time.September, 1), HomeClubID: 1, AwayClubID: 3},
			append(fullLineup(3, 1, 11, 12), fullLineup(3, 3, 31, 32)...),
			[]model.GameEvent{{GameID: 3, Type: model.EventGoal, Minute: 10, ClubID: 999}},
		)

		stats, err := app.New(store).Run(ctx)
		So(err, ShouldBeNil)

		Convey("The corrupt game fails without aborting the run", func() {
			So(stats.Processed, ShouldEqual, 2)
			So(stats.Failed, ShouldEqual, 1)
			So(stats.Checkpoint.GameID, ShouldEqual, model.GameID(3))
		})
	})
}

func TestEngineSeeding(t *testing.T) {
	Convey("Given a newcomer joining a rated squad", t, func() {
		ctx := context.Background()
		store := repository.NewMemory()
		store.SeedRating(11, 2018, 1600)
		store.SeedRating(12, 2018, 1400)
		store.SeedRating(21, 2018, 1500)
		store.SeedRating(22, 2018, 1500)

		// Player 13 debuts alongside two rated teammates: seeded from
		// their mean, 1500, before the game applies.
		apps := append(fullLineup(1, 1, 11, 12, 13), fullLineup(1, 2, 21, 22)...)
		store.AddGame(
			model.Game{ID: 1, Date: day(2018, time.August, 10), HomeClubID: 1, AwayClubID: 2},
			apps,
			nil, // goalless draw
		)

		stats, err := app.New(store).Run(ctx)
		So(err, ShouldBeNil)
		So(stats.Processed, ShouldEqual, 1)

		Convey("A full-90 draw between equal sides leaves the seed intact", func() {
			r, err := store.PlayerRating(ctx, 13, 2018)
			So(err, ShouldBeNil)
			So(r, ShouldAlmostEqual, 1500, 1e-9)
		})
	})

	Convey("Given a debutant with only a market valuation", t, func() {
		ctx := context.Background()
		store := repository.NewMemory()
		store.AddValuation(model.Valuation{PlayerID: 11, Date: day(2018, time.August, 1), MarketValue: 1_000_000})
		store.AddValuation(model.Valuation{PlayerID: 21, Date: day(2018, time.August, 1), MarketValue: 50_000_000})

		apps := append(fullLineup(1, 1, 11, 12), fullLineup(1, 2, 21, 22)...)
		store.AddGame(
			model.Game{ID: 1, Date: day(2018, time.August, 10), HomeClubID: 1, AwayClubID: 2},
			apps,
			nil,
		)

		_, err := app.New(store).Run(ctx)
		So(err, ShouldBeNil)

		Convey("The expensive player starts above the cheap one", func() {
			cheap, err := store.PlayerRating(ctx, 11, 2018)
			So(err, ShouldBeNil)
			rich, err := store.PlayerRating(ctx, 21, 2018)
			So(err, ShouldBeNil)
			So(rich, ShouldBeGreaterThan, cheap)
		})
	})
}
