// Package breaker provides a circuit breaker that isolates the engine
// from a failing storage backend. After a run of consecutive failures
// the circuit opens and calls fail fast; after a cooldown a bounded
// number of probe calls are let through, and a successful probe closes
// the circuit again.
package breaker

import (
	"errors"
	"sync"
	"time"
)

// State is the current position of the circuit.
type State int

const (
	// StateClosed lets calls through normally.
	StateClosed State = iota

	// StateOpen fails calls fast without invoking the operation.
	StateOpen

	// StateHalfOpen lets a bounded number of probe calls through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// ErrOpen is returned by Call when the circuit is open and the
// recovery timeout has not yet elapsed.
var ErrOpen = errors.New("circuit breaker is open")

const (
	defaultFailureThreshold = 5
	defaultRecoveryTimeout  = 30 * time.Second
	defaultHalfOpenMaxCalls = 1
)

// Config holds the breaker tuning knobs.
type Config struct {
	// FailureThreshold is the number of consecutive failures that
	// opens the circuit. Minimum 1.
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open before a
	// probe call is allowed through.
	RecoveryTimeout time.Duration

	// HalfOpenMaxCalls caps concurrent probe calls while half-open.
	// Minimum 1.
	HalfOpenMaxCalls int
}

// Breaker wraps fallible operations with circuit breaking. The mutex
// guards only state transitions; it is never held while the wrapped
// operation runs, so a slow operation cannot block state inspection.
type Breaker struct {
	mu sync.Mutex

	config Config

	state            State
	failures         int
	lastFailure      time.Time
	halfOpenInFlight int

	now func() time.Time
}

// New creates a closed breaker, applying defaults for zero fields.
func New(config Config) *Breaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = defaultFailureThreshold
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = defaultRecoveryTimeout
	}
	if config.HalfOpenMaxCalls < 1 {
		config.HalfOpenMaxCalls = defaultHalfOpenMaxCalls
	}

	return &Breaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// State returns the breaker's current state. An open circuit whose
// recovery timeout has elapsed still reports open until the next Call
// transitions it.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Call runs op under the breaker. It returns ErrOpen without invoking
// op when the circuit is open; otherwise it returns op's error and
// records the result.
func (b *Breaker) Call(op func() error) error {
	if err := b.acquire(); err != nil {
		return err
	}

	err := op()
	b.record(err)
	return err
}

// Do is the generic form of Call for operations that return a value.
func Do[T any](b *Breaker, op func() (T, error)) (T, error) {
	var result T
	err := b.Call(func() error {
		var opErr error
		result, opErr = op()
		return opErr
	})
	return result, err
}

// acquire decides whether a call may proceed and registers probe
// bookkeeping when the circuit is half-open.
func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if b.now().Sub(b.lastFailure) <= b.config.RecoveryTimeout {
			return ErrOpen
		}
		b.state = StateHalfOpen
		b.halfOpenInFlight = 1
		return nil

	default: // StateHalfOpen
		if b.halfOpenInFlight >= b.config.HalfOpenMaxCalls {
			return ErrOpen
		}
		b.halfOpenInFlight++
		return nil
	}
}

// record applies the outcome of a completed call.
func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen && b.halfOpenInFlight > 0 {
		b.halfOpenInFlight--
	}

	if err == nil {
		// A successful probe closes the circuit; a success while
		// closed resets the consecutive-failure count.
		b.state = StateClosed
		b.failures = 0
		return
	}

	b.lastFailure = b.now()

	if b.state == StateHalfOpen {
		b.state = StateOpen
		return
	}

	b.failures++
	if b.failures >= b.config.FailureThreshold {
		b.state = StateOpen
	}
}
