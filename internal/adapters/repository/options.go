package repository

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Option applies a configuration option to the Postgres store.
type Option func(*settings)

type settings struct {
	maxConns       int32
	minConns       int32
	connectTimeout time.Duration
}

func defaultSettings() settings {
	return settings{
		maxConns:       8,
		minConns:       1,
		connectTimeout: 5 * time.Second,
	}
}

func (s settings) apply(cfg *pgxpool.Config) {
	cfg.MaxConns = s.maxConns
	cfg.MinConns = s.minConns
	cfg.ConnConfig.ConnectTimeout = s.connectTimeout
}

// WithMaxConns caps the connection pool size.
func WithMaxConns(n int32) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxConns = n
		}
	}
}

// WithMinConns sets the number of connections the pool keeps warm.
func WithMinConns(n int32) Option {
	return func(s *settings) {
		if n > 0 {
			s.minConns = n
		}
	}
}

// WithConnectTimeout bounds how long a new connection may take.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.connectTimeout = d
		}
	}
}
