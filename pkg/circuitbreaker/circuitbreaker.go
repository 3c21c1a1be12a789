// Package circuitbreaker guards calls to external collaborators (the
// persistence port, blob store, and progress sink) so a flaky
// collaborator degrades one analysis instead of wedging the process.
// Adapted from the teacher's pkg/circuit_breaker: same closed/open/
// half-open state machine and mutex-guarded counters, generalized from
// sink delivery to any external port call the orchestrator makes.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by Execute while the breaker is open and the
// reset timeout has not yet elapsed.
var ErrOpen = errors.New("circuitbreaker: circuit is open")

// State is the breaker's current state.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config tunes failure thresholds and recovery timing.
type Config struct {
	MaxFailures  int64
	ResetTimeout time.Duration
}

// DefaultConfig returns the teacher's defaults.
func DefaultConfig() Config {
	return Config{MaxFailures: 5, ResetTimeout: 30 * time.Second}
}

// Breaker wraps calls to one external collaborator.
type Breaker struct {
	config          Config
	mu              sync.Mutex
	state           State
	failures        int64
	lastFailureTime time.Time
	nextRetryTime   time.Time
}

// New creates a closed Breaker with the given config.
func New(cfg Config) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout == 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breaker{config: cfg, state: StateClosed}
}

// Execute runs fn through the breaker. While open, Execute returns
// ErrOpen without calling fn until the reset timeout elapses, at which
// point the breaker moves to half-open and lets calls through to probe
// recovery (it does not limit how many run at once): a success closes
// the breaker, a failure reopens it.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	if b.state == StateOpen {
		if time.Now().Before(b.nextRetryTime) {
			b.mu.Unlock()
			return ErrOpen
		}
		b.state = StateHalfOpen
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		b.lastFailureTime = time.Now()
		if b.failures >= b.config.MaxFailures {
			b.state = StateOpen
			b.nextRetryTime = time.Now().Add(b.config.ResetTimeout)
		}
		return err
	}

	b.failures = 0
	b.state = StateClosed
	return nil
}

// State returns the breaker's current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
