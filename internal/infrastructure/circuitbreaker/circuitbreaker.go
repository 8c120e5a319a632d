// Package circuitbreaker stops calling a failing dependency for a cooldown window.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State of a breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned without calling fn while the breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

// Breaker counts consecutive failures. After maxFailures it opens for
// resetTimeout, then lets a single trial call through.
type Breaker struct {
	maxFailures  int
	resetTimeout time.Duration
	nowFunc      func() time.Time

	mu              sync.Mutex
	state           State
	failures        int
	lastFailureTime time.Time
	trialInFlight   bool
}

// New returns a closed breaker.
func New(maxFailures int, resetTimeout time.Duration) *Breaker {
	return &Breaker{
		maxFailures:  max(maxFailures, 1),
		resetTimeout: resetTimeout,
		nowFunc:      time.Now,
		state:        StateClosed,
	}
}

// Execute runs fn unless the breaker is open. fn runs outside the lock.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.nowFunc().Sub(b.lastFailureTime) < b.resetTimeout {
			return ErrOpen
		}
		b.state = StateHalfOpen
		b.trialInFlight = true
		return nil
	case StateHalfOpen:
		if b.trialInFlight {
			return ErrOpen
		}
		b.trialInFlight = true
		return nil
	default:
		return nil
	}
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.trialInFlight = false
		if err != nil {
			b.state = StateOpen
			b.lastFailureTime = b.nowFunc()
			return
		}
		b.state = StateClosed
		b.failures = 0
		return
	}

	if err == nil {
		b.failures = 0
		return
	}
	b.failures++
	b.lastFailureTime = b.nowFunc()
	if b.failures >= b.maxFailures {
		b.state = StateOpen
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
