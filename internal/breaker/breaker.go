// Package breaker implements a sliding-window circuit breaker. The state
// machine lives apart from any business logic so it can be tested in
// isolation and shared by every outbound collaborator wrapper.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	customError "github.com/lendcore/loan-engine/pkg/errors"
)

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
		return "half_open"
	}
	return "unknown"
}

const (
	DefaultWindowSize       = 100
	DefaultMinimumCalls     = 20
	DefaultFailureThreshold = 0.5
	DefaultWaitDuration     = 30 * time.Second
	DefaultHalfOpenMaxCalls = 10
)

// Settings configures one named breaker. Zero values fall back to the
// defaults above.
type Settings struct {
	Name             string
	WindowSize       int
	MinimumCalls     int
	FailureThreshold float64
	WaitDuration     time.Duration
	HalfOpenMaxCalls int
	// SuccessesToClose is the number of half-open probe successes required
	// before the breaker closes again.
	SuccessesToClose int
	// IsSuccessful classifies a call outcome. Defaults to err == nil with
	// business-rule rejections also counted as successful outcomes: a
	// rejected request proves the collaborator is healthy.
	IsSuccessful func(error) bool
	// OnStateChange is invoked outside the lock on every transition.
	OnStateChange func(name string, from, to State)
	// Clock is injectable for tests; defaults to time.Now.
	Clock func() time.Time
}

// Breaker tracks call outcomes for one collaborator in a fixed-size sliding
// window and short-circuits calls while the collaborator is unhealthy.
//
// Each state transition bumps a generation counter; outcomes reported for a
// call admitted under an older generation are discarded, so a slow call that
// finishes after the breaker has moved on cannot pollute the new window.
type Breaker struct {
	name             string
	windowSize       int
	minimumCalls     int
	failureThreshold float64
	waitDuration     time.Duration
	halfOpenMaxCalls int
	successesToClose int
	isSuccessful     func(error) bool
	onStateChange    func(string, State, State)
	now              func() time.Time

	mu               sync.Mutex
	state            State
	generation       uint64
	window           []bool // true marks a failure
	windowPos        int
	windowCount      int
	windowFailures   int
	openedAt         time.Time
	halfOpenInFlight int
	halfOpenSuccess  int
}

func New(s Settings) *Breaker {
	if s.WindowSize <= 0 {
		s.WindowSize = DefaultWindowSize
	}
	if s.MinimumCalls <= 0 {
		s.MinimumCalls = DefaultMinimumCalls
	}
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = DefaultFailureThreshold
	}
	if s.WaitDuration <= 0 {
		s.WaitDuration = DefaultWaitDuration
	}
	if s.HalfOpenMaxCalls <= 0 {
		s.HalfOpenMaxCalls = DefaultHalfOpenMaxCalls
	}
	if s.SuccessesToClose <= 0 {
		s.SuccessesToClose = 1
	}
	if s.IsSuccessful == nil {
		s.IsSuccessful = func(err error) bool {
			return err == nil || customError.IsBusiness(err)
		}
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}

	return &Breaker{
		name:             s.Name,
		windowSize:       s.WindowSize,
		minimumCalls:     s.MinimumCalls,
		failureThreshold: s.FailureThreshold,
		waitDuration:     s.WaitDuration,
		halfOpenMaxCalls: s.HalfOpenMaxCalls,
		successesToClose: s.SuccessesToClose,
		isSuccessful:     s.IsSuccessful,
		onStateChange:    s.OnStateChange,
		now:              s.Clock,
		state:            StateClosed,
		window:           make([]bool, s.WindowSize),
	}
}

func (b *Breaker) Name() string { return b.name }

// State returns the current state, promoting open to half-open once the
// wait duration has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	state, _, notify := b.currentStateLocked()
	b.mu.Unlock()
	if notify != nil {
		notify()
	}
	return state
}

// FailureRate returns the failure share of the current window.
func (b *Breaker) FailureRate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failureRateLocked()
}

// Execute runs fn under the breaker. When the breaker is open the call is
// short-circuited with ErrCircuitOpen and fn is never invoked; the caller
// dispatches its fallback on that error.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	generation, err := b.allow()
	if err != nil {
		return err
	}

	err = fn(ctx)
	b.record(generation, b.isSuccessful(err))
	return err
}

func (b *Breaker) allow() (uint64, error) {
	b.mu.Lock()
	state, generation, notify := b.currentStateLocked()

	var err error
	switch state {
	case StateClosed:
	case StateHalfOpen:
		if b.halfOpenInFlight >= b.halfOpenMaxCalls {
			err = fmt.Errorf("%s: %w", b.name, customError.ErrCircuitOpen)
		} else {
			b.halfOpenInFlight++
		}
	default:
		err = fmt.Errorf("%s: %w", b.name, customError.ErrCircuitOpen)
	}
	b.mu.Unlock()

	if notify != nil {
		notify()
	}
	return generation, err
}

func (b *Breaker) record(generation uint64, success bool) {
	b.mu.Lock()

	if generation != b.generation {
		// The breaker moved on while this call was in flight.
		b.mu.Unlock()
		return
	}

	var notify func()
	switch b.state {
	case StateClosed:
		b.push(!success)
		if b.windowCount >= b.minimumCalls && b.failureRateLocked() >= b.failureThreshold {
			notify = b.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		if success {
			b.halfOpenSuccess++
			if b.halfOpenSuccess >= b.successesToClose {
				notify = b.transitionLocked(StateClosed)
			}
		} else {
			// A failed probe reopens immediately and restarts the wait timer.
			notify = b.transitionLocked(StateOpen)
		}
	}

	b.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// currentStateLocked promotes open to half-open when the wait has elapsed.
// Must be called with the lock held; the returned callback is invoked after
// unlocking.
func (b *Breaker) currentStateLocked() (State, uint64, func()) {
	var notify func()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.waitDuration {
		notify = b.transitionLocked(StateHalfOpen)
	}
	return b.state, b.generation, notify
}

// transitionLocked switches state and returns the notification callback to
// run after the lock is released.
func (b *Breaker) transitionLocked(to State) func() {
	from := b.state
	if from == to {
		return nil
	}
	b.state = to
	b.generation++

	switch to {
	case StateOpen:
		b.openedAt = b.now()
	case StateHalfOpen:
		b.halfOpenInFlight = 0
		b.halfOpenSuccess = 0
	case StateClosed:
		b.resetWindow()
	}

	if b.onStateChange == nil {
		return nil
	}
	name := b.name
	return func() { b.onStateChange(name, from, to) }
}

func (b *Breaker) push(failure bool) {
	if b.windowCount == b.windowSize {
		if b.window[b.windowPos] {
			b.windowFailures--
		}
	} else {
		b.windowCount++
	}
	b.window[b.windowPos] = failure
	if failure {
		b.windowFailures++
	}
	b.windowPos = (b.windowPos + 1) % b.windowSize
}

func (b *Breaker) failureRateLocked() float64 {
	if b.windowCount == 0 {
		return 0
	}
	return float64(b.windowFailures) / float64(b.windowCount)
}

func (b *Breaker) resetWindow() {
	for i := range b.window {
		b.window[i] = false
	}
	b.windowPos = 0
	b.windowCount = 0
	b.windowFailures = 0
	b.halfOpenInFlight = 0
	b.halfOpenSuccess = 0
}
