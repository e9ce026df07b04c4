package admin

import (
	"context"
	"time"
)

// DefaultSweepInterval is how often the background sweeper compacts the
// session table when no interval is configured.
const DefaultSweepInterval = 15 * time.Minute

// SessionSweeper periodically deletes expired session rows. Validity checks
// never depend on the sweeper; it only keeps the table from growing without
// bound.
type SessionSweeper struct {
	registry SessionRegistry
	interval time.Duration
	logger   Logger
}

type SessionSweeperOption func(*SessionSweeper)

func WithSweepInterval(interval time.Duration) SessionSweeperOption {
	return func(s *SessionSweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithSweeperLogger(logger Logger) SessionSweeperOption {
	return func(s *SessionSweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewSessionSweeper(registry SessionRegistry, opts ...SessionSweeperOption) *SessionSweeper {
	s := &SessionSweeper{
		registry: registry,
		interval: DefaultSweepInterval,
		logger:   defLogger{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run blocks until the context is cancelled, sweeping on every tick. Sweep
// failures are logged and retried on the next tick.
func (s *SessionSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.registry.SweepExpired(ctx); err != nil {
				s.logger.Error("session sweep failed", "error", err)
			}
		}
	}
}
