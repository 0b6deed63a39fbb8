package catalog

import (
	"context"
	"sync"
	"time"
)

// DefaultDelay is the debounce applied to catalog re-evaluation.
const DefaultDelay = 300 * time.Millisecond

// Token identifies one scheduled evaluation. Only the newest token is current.
type Token struct {
	generation uint64
	scheduler  *Scheduler
}

// Generation returns the sequence number of the token.
func (t Token) Generation() uint64 { return t.generation }

// Current reports whether no later evaluation has been scheduled.
func (t Token) Current() bool {
	if t.scheduler == nil {
		return false
	}
	t.scheduler.mu.Lock()
	defer t.scheduler.mu.Unlock()
	return !t.scheduler.stopped && t.scheduler.generation == t.generation
}

// Scheduler is a single-slot debouncer. Scheduling replaces the pending timer and
// cancels the context of an evaluation that is already running.
type Scheduler struct {
	delay time.Duration

	mu         sync.Mutex
	timer      *time.Timer
	cancel     context.CancelFunc
	generation uint64
	stopped    bool
}

// NewScheduler returns a Scheduler. A non-positive delay falls back to DefaultDelay.
func NewScheduler(delay time.Duration) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Scheduler{delay: delay}
}

// Delay returns the debounce delay.
func (s *Scheduler) Delay() time.Duration { return s.delay }

// Schedule arranges for fn to run after the delay, superseding anything pending.
func (s *Scheduler) Schedule(parent context.Context, fn func(ctx context.Context, token Token)) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	if s.stopped {
		return Token{generation: s.generation, scheduler: s}
	}

	ctx, cancel := context.WithCancel(parent)
	token := Token{generation: s.generation, scheduler: s}
	s.cancel = cancel
	s.timer = time.AfterFunc(s.delay, func() {
		defer cancel()
		s.mu.Lock()
		current := !s.stopped && s.generation == token.generation
		if current {
			s.timer = nil
		}
		s.mu.Unlock()
		if !current {
			return
		}
		fn(ctx, token)
	})
	return token
}

// Stop drops the pending evaluation, cancels any running one and refuses new work.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.stopped = true
}

// Pending reports whether an evaluation is scheduled but has not fired yet.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil && !s.stopped
}

func (s *Scheduler) resetLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
}
