package shell

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"

	"rootshell/internal/domain"
)

// Supervisor owns at most one live session per elevation mode, opened
// lazily on first use and replaced on the next request after death. It is
// the process-wide access point the facade and CLI go through; Shutdown
// tears both sessions down deterministically.
//
// Spawning goes through a circuit breaker: when the shell or su front-end
// keeps failing to start, callers fail fast with ErrSpawn instead of
// re-invoking the escalation prompt on every request.
type Supervisor struct {
	cfg    Config
	logger *slog.Logger
	bus    domain.EventBus

	mu       sync.Mutex
	sessions map[bool]*Session
	breakers map[bool]*gobreaker.CircuitBreaker[*Session]
	down     bool
}

// NewSupervisor creates a supervisor. No shell is spawned until the first
// Session or Run call.
func NewSupervisor(cfg Config, logger *slog.Logger, bus domain.EventBus) *Supervisor {
	cfg.applyDefaults()
	sv := &Supervisor{
		cfg:      cfg,
		logger:   logger,
		bus:      bus,
		sessions: make(map[bool]*Session),
		breakers: make(map[bool]*gobreaker.CircuitBreaker[*Session]),
	}
	for _, elevated := range []bool{false, true} {
		name := "shell-spawn"
		if elevated {
			name = "su-spawn"
		}
		sv.breakers[elevated] = gobreaker.NewCircuitBreaker[*Session](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("spawn breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return sv
}

// Session returns the live session for the given elevation mode, opening
// one if none exists or the previous one died. A dead session is never
// respawned behind a caller's back: the replacement happens only because
// the caller asked again.
func (sv *Supervisor) Session(elevated bool) (*Session, error) {
	sv.mu.Lock()
	defer sv.mu.Unlock()

	if sv.down {
		return nil, domain.NewDomainError("Supervisor.Session", domain.ErrSessionClosed, "supervisor shut down")
	}
	if s, ok := sv.sessions[elevated]; ok && !s.Closed() {
		return s, nil
	}

	s, err := sv.breakers[elevated].Execute(func() (*Session, error) {
		return Open(sv.cfg, elevated, sv.logger, sv.bus)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, domain.NewDomainError("Supervisor.Session", domain.ErrSpawn, "spawn breaker open")
		}
		return nil, err
	}
	sv.sessions[elevated] = s
	return s, nil
}

// Run executes text on the session for the given elevation mode and
// returns its collected output and exit code.
func (sv *Supervisor) Run(ctx context.Context, elevated bool, text string) (string, int, error) {
	s, err := sv.Session(elevated)
	if err != nil {
		return "", -1, err
	}
	return s.Run(ctx, text)
}

// Shutdown closes all live sessions. Subsequent Session calls fail with
// ErrSessionClosed.
func (sv *Supervisor) Shutdown() error {
	sv.mu.Lock()
	sv.down = true
	open := make([]*Session, 0, len(sv.sessions))
	for _, s := range sv.sessions {
		open = append(open, s)
	}
	sv.sessions = make(map[bool]*Session)
	sv.mu.Unlock()

	var firstErr error
	for _, s := range open {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
