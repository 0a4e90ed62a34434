// Package seed supplies the first rating for a (player, season) pair that
// has never been rated: teammate average first, market-value z-score second,
// baseline constant last.
package seed

import (
	"math"
	"sort"

	"github.com/okian/pitchelo/internal/domain/model"
	"gonum.org/v1/gonum/stat"
)

// Source identifies which rule produced an initial rating.
type Source string

const (
	SourceTeammates   Source = "teammates"
	SourceMarketValue Source = "market_value"
	SourceBaseline    Source = "baseline"
)

// Defaults for the tunable constants.
const (
	DefaultBaseRating  = 1500
	DefaultRatingRange = 300
)

// Config carries the cold-start constants.
type Config struct {
	BaseRating  float64
	RatingRange float64
}

// SeasonStats holds the per-season population statistics of
// log(1 + market value).
type SeasonStats struct {
	MeanLog float64
	StdLog  float64
	Samples int
}

// usable reports whether the stats can produce a finite z-score. A single
// sample has no spread; a constant population has zero spread.
func (s SeasonStats) usable() bool {
	return s.Samples >= 2 && s.StdLog > 0 && !math.IsNaN(s.StdLog)
}

// Initializer computes cold-start ratings from a run-scoped view of the
// valuation data. Build it once per run; it is read-only afterwards.
type Initializer struct {
	cfg    Config
	stats  map[model.Season]SeasonStats
	values map[valuationKey]float64
}

type valuationKey struct {
	Player model.PlayerID
	Season model.Season
}

// New builds an Initializer from the full valuation history. Season stats
// use every valuation row; a player's per-season value is their earliest
// valuation within that season.
func New(cfg Config, valuations []model.Valuation) *Initializer {
	if cfg.BaseRating == 0 {
		cfg.BaseRating = DefaultBaseRating
	}
	if cfg.RatingRange == 0 {
		cfg.RatingRange = DefaultRatingRange
	}

	logsBySeason := make(map[model.Season][]float64)
	values := make(map[valuationKey]float64)
	earliest := make(map[valuationKey]model.Valuation)

	for _, v := range valuations {
		season := model.SeasonOf(v.Date)
		logsBySeason[season] = append(logsBySeason[season], math.Log1p(v.MarketValue))

		key := valuationKey{Player: v.PlayerID, Season: season}
		if prev, ok := earliest[key]; !ok || v.Date.Before(prev.Date) {
			earliest[key] = v
		}
	}
	for key, v := range earliest {
		values[key] = v.MarketValue
	}

	stats := make(map[model.Season]SeasonStats, len(logsBySeason))
	for season, logs := range logsBySeason {
		stats[season] = SeasonStats{
			MeanLog: stat.Mean(logs, nil),
			StdLog:  stat.StdDev(logs, nil),
			Samples: len(logs),
		}
	}

	return &Initializer{cfg: cfg, stats: stats, values: values}
}

// Baseline returns the cold-start constant.
func (i *Initializer) Baseline() float64 { return i.cfg.BaseRating }

// Stats returns the population statistics for a season.
func (i *Initializer) Stats(season model.Season) (SeasonStats, bool) {
	s, ok := i.stats[season]
	return s, ok
}

// TeammateAverage returns the unweighted mean of the rated teammates if at
// least half of the teammates in the triggering game already carry a rating
// for the season.
func (i *Initializer) TeammateAverage(rated []float64, teammateCount int) (float64, bool) {
	if teammateCount == 0 || len(rated)*2 < teammateCount {
		return 0, false
	}
	return stat.Mean(rated, nil), true
}

// FromMarketValue returns the z-score seeded rating for a player's season
// market value:
//
//	base + ((log1p(v) - mean) / std) * range/2
func (i *Initializer) FromMarketValue(player model.PlayerID, season model.Season) (float64, bool) {
	s, ok := i.stats[season]
	if !ok || !s.usable() {
		return 0, false
	}
	value, ok := i.values[valuationKey{Player: player, Season: season}]
	if !ok {
		return 0, false
	}
	z := (math.Log1p(value) - s.MeanLog) / s.StdLog
	return i.cfg.BaseRating + z*(i.cfg.RatingRange/2), true
}

// Initialize resolves the cold-start rating by priority: teammate average,
// market-value z-score, baseline. Missing data is not an error; the chain
// always resolves.
func (i *Initializer) Initialize(player model.PlayerID, season model.Season, rated []float64, teammateCount int) (float64, Source) {
	if avg, ok := i.TeammateAverage(rated, teammateCount); ok {
		return avg, SourceTeammates
	}
	if r, ok := i.FromMarketValue(player, season); ok {
		return r, SourceMarketValue
	}
	return i.cfg.BaseRating, SourceBaseline
}

// GapSeasons returns the seasons missing between the minimum and maximum
// observed season. The result is sorted ascending.
func GapSeasons(observed []model.Season) []model.Season {
	if len(observed) < 2 {
		return nil
	}
	seen := make(map[model.Season]bool, len(observed))
	minS, maxS := observed[0], observed[0]
	for _, s := range observed {
		seen[s] = true
		if s < minS {
			minS = s
		}
		if s > maxS {
			maxS = s
		}
	}
	var gaps []model.Season
	for s := minS + 1; s < maxS; s++ {
		if !seen[s] {
			gaps = append(gaps, s)
		}
	}
	sort.Slice(gaps, func(a, b int) bool { return gaps[a] < gaps[b] })
	return gaps
}
