package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"ai-character-chat-simulator/backend/pkg/logger"
)

// ErrOpen is returned while the breaker short-circuits calls
var ErrOpen = errors.New("circuit open")

// State represents the current state of a circuit breaker
type State string

const (
	// StateClosed lets calls through
	StateClosed State = "closed"
	// StateOpen short-circuits calls until the retry timeout passes
	StateOpen State = "open"
	// StateHalfOpen lets a single trial call through
	StateHalfOpen State = "half-open"
)

// Config holds configuration for a circuit breaker
type Config struct {
	Name             string
	FailureThreshold uint
	RetryTimeout     time.Duration
}

// DefaultConfig returns a default circuit breaker configuration
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		RetryTimeout:     30 * time.Second,
	}
}

// CircuitBreaker opens after FailureThreshold consecutive failures and allows one
// trial call once RetryTimeout has passed
type CircuitBreaker struct {
	cfg Config
	log *logger.Logger
	now func() time.Time

	mutex       sync.Mutex
	state       State
	failures    uint
	nextAttempt time.Time
	trial       bool
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(cfg Config, log *logger.Logger) *CircuitBreaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 1
	}
	return &CircuitBreaker{
		cfg:   cfg,
		log:   log.WithComponent("circuit_breaker"),
		now:   time.Now,
		state: StateClosed,
	}
}

// Execute runs fn unless the breaker is open. Context cancellation is not
// counted as a failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !cb.allow() {
		return ErrOpen
	}

	err := fn(ctx)
	switch {
	case err == nil:
		cb.recordSuccess()
	case ctx.Err() != nil:
		cb.release()
	default:
		cb.recordFailure(err)
	}
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Before(cb.nextAttempt) {
			return false
		}
		cb.state = StateHalfOpen
		cb.log.Info("Circuit breaker half-open", "name", cb.cfg.Name)
	}

	if cb.trial {
		return false
	}
	cb.trial = true
	return true
}

func (cb *CircuitBreaker) release() {
	cb.mutex.Lock()
	cb.trial = false
	cb.mutex.Unlock()
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state != StateClosed {
		cb.log.Info("Circuit breaker closed", "name", cb.cfg.Name)
	}
	cb.state = StateClosed
	cb.failures = 0
	cb.trial = false
}

func (cb *CircuitBreaker) recordFailure(err error) {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.failures++
	cb.trial = false
	if cb.state == StateHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
		cb.state = StateOpen
		cb.nextAttempt = cb.now().Add(cb.cfg.RetryTimeout)
		cb.log.Warn("Circuit breaker opened",
			"name", cb.cfg.Name,
			"failures", cb.failures,
			"error", err.Error(),
			"next_attempt", cb.nextAttempt.Format(time.RFC3339),
		)
	}
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}
