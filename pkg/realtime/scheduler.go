package realtime

import (
	"errors"
	"sync"
	"time"
)

// DefaultDebounce is the quiet period a Scheduler waits before running its task.
const DefaultDebounce = 20 * time.Millisecond

// ErrStopped is returned by Schedule after Stop.
var ErrStopped = errors.New("scheduler stopped")

// Scheduler debounces a task: every Schedule call cancels the pending run and
// arms a new one, so a burst of calls closer together than Delay collapses
// into a single run after the burst ends. There is exactly one pending slot.
type Scheduler struct {
	mu      sync.Mutex
	clock   Clock
	delay   time.Duration
	task    func()
	pending *Pending
	stopped bool
	runs    uint64
}

// Pending is the cancellation token for one armed run. A token that has been
// superseded, cancelled or already fired is inert.
type Pending struct {
	s     *Scheduler
	due   time.Time
	timer Timer
}

// NewScheduler creates a scheduler running task after delay. A nil clock
// means SystemClock; a non-positive delay means DefaultDebounce.
func NewScheduler(delay time.Duration, clock Clock, task func()) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Scheduler{clock: clock, delay: delay, task: task}
}

// Delay returns the debounce interval.
func (s *Scheduler) Delay() time.Duration {
	return s.delay
}

// Schedule (re)arms the task and returns its token.
func (s *Scheduler) Schedule() (*Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrStopped
	}
	s.cancelLocked()
	p := &Pending{s: s, due: s.clock.Now().Add(s.delay)}
	p.timer = s.clock.AfterFunc(s.delay, func() { s.fire(p) })
	s.pending = p
	return p, nil
}

// Cancel drops the pending run, if any.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked()
}

// Flush runs the pending task now instead of waiting for its timer.
func (s *Scheduler) Flush() bool {
	s.mu.Lock()
	if s.pending == nil {
		s.mu.Unlock()
		return false
	}
	s.cancelLocked()
	s.runs++
	s.mu.Unlock()

	s.task()
	return true
}

// Stop cancels the pending run and refuses further schedules.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.cancelLocked()
}

// IsPending reports whether a run is armed.
func (s *Scheduler) IsPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Runs returns how many times the task has run.
func (s *Scheduler) Runs() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func (s *Scheduler) cancelLocked() bool {
	if s.pending == nil {
		return false
	}
	s.pending.timer.Stop()
	s.pending = nil
	return true
}

// fire runs the task unless p was superseded between the timer firing and
// acquiring the lock.
func (s *Scheduler) fire(p *Pending) {
	s.mu.Lock()
	if s.pending != p {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.runs++
	s.mu.Unlock()

	s.task()
}

// Cancel drops this run if it is still the pending one.
func (p *Pending) Cancel() bool {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	if p.s.pending != p {
		return false
	}
	return p.s.cancelLocked()
}

// Active reports whether this token is still the pending run.
func (p *Pending) Active() bool {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()
	return p.s.pending == p
}

// Due returns when the run is expected to fire.
func (p *Pending) Due() time.Time {
	return p.due
}
