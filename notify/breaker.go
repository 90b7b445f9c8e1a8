package notify

import (
	"errors"
	"sync"
	"time"
)

// BreakerState is the state of a delivery circuit breaker
type BreakerState string

const (
	// BreakerClosed lets every delivery through
	BreakerClosed BreakerState = "closed"
	// BreakerOpen rejects deliveries until the cooldown has elapsed
	BreakerOpen BreakerState = "open"
	// BreakerHalfOpen lets one trial delivery through
	BreakerHalfOpen BreakerState = "half_open"
)

const (
	DefaultBreakerFailures = 5
	DefaultBreakerCooldown = 30 * time.Second
)

// ErrBreakerOpen is returned by Allow while the breaker is open
var ErrBreakerOpen = errors.New("circuit breaker is open")

// Breaker stops delivery to a failing subscriber after a run of
// consecutive failures, then retries one delivery per cooldown.
type Breaker struct {
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	trial    bool
}

// NewBreaker creates a closed breaker. Non-positive arguments use the defaults.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	if maxFailures <= 0 {
		maxFailures = DefaultBreakerFailures
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	return &Breaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
		state:       BreakerClosed,
	}
}

// Allow reports whether a delivery may be attempted
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrBreakerOpen
		}
		b.state = BreakerHalfOpen
		b.trial = true
		return nil
	case BreakerHalfOpen:
		if b.trial {
			return ErrBreakerOpen
		}
		b.trial = true
		return nil
	default:
		return nil
	}
}

// RecordSuccess closes the breaker and returns the state it left
func (b *Breaker) RecordSuccess() (from BreakerState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	from = b.state
	b.state = BreakerClosed
	b.failures = 0
	b.trial = false
	return from
}

// RecordFailure counts a failed delivery and returns the state transition
func (b *Breaker) RecordFailure() (from, to BreakerState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	from = b.state
	b.failures++
	b.trial = false
	if b.state == BreakerHalfOpen || b.failures >= b.maxFailures {
		b.state = BreakerOpen
		b.openedAt = b.now()
	}
	return from, b.state
}

// State returns the current state
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
