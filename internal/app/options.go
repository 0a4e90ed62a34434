package app

import (
	"github.com/okian/pitchelo/internal/domain/rating"
	"github.com/okian/pitchelo/internal/domain/seed"
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithParams sets the rating update constants.
func WithParams(p rating.Params) Option {
	return func(e *Engine) {
		e.params = p
	}
}

// WithSeedConfig sets the cold-start constants.
func WithSeedConfig(c seed.Config) Option {
	return func(e *Engine) {
		e.seedCfg = c
	}
}

// WithProcessName sets the checkpoint row the engine resumes from.
func WithProcessName(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.processName = name
		}
	}
}

// WithBatchSize sets how many games are fetched and dispatched per batch.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithMaxGames caps how many games a single run may fetch.
func WithMaxGames(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxGames = n
		}
	}
}

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workerCount = n
		}
	}
}

// WithQueueSize sets the task queue capacity.
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}
