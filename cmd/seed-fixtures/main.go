// Command seed-fixtures writes a synthetic match history as SQL, for
// loading a local database to run the engine against.
package main

import (
	"flag"
	"os"

	"github.com/okian/pitchelo/internal/fixtures"
)

func main() {
	defaults := fixtures.DefaultConfig()
	var (
		clubs   = flag.Int("clubs", defaults.Clubs, "Number of clubs in the league")
		players = flag.Int("players", defaults.PlayersPerClub, "Players per club (minimum 12)")
		games   = flag.Int("games", defaults.Games, "Number of games to generate")
		seed    = flag.Int64("seed", defaults.Seed, "Random seed; same seed, same league")
		output  = flag.String("output", "", "Output file (default: stdout)")
	)
	flag.Parse()

	cfg := defaults
	cfg.Clubs = *clubs
	cfg.PlayersPerClub = *players
	cfg.Games = *games
	cfg.Seed = *seed
	if cfg.Clubs < 2 || cfg.PlayersPerClub < 12 || cfg.Games < 1 {
		os.Stderr.WriteString("need at least 2 clubs, 12 players per club, and 1 game\n")
		os.Exit(2)
	}

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			os.Stderr.WriteString("creating output file: " + err.Error() + "\n")
			os.Exit(1)
		}
		defer f.Close() //nolint:errcheck,gosec
		out = f
	}

	if err := fixtures.New(cfg).WriteSQL(out); err != nil {
		os.Stderr.WriteString("generating fixtures: " + err.Error() + "\n")
		os.Exit(1)
	}
}
