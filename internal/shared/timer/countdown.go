package timer

import (
	"fmt"
	"sync"
	"time"

	"focusvault/internal/shared/logging"
)

// TickInterval is the wall-clock period between two decrements.
const TickInterval = time.Second

// Snapshot is an immutable copy of a timer's state.
type Snapshot struct {
	Remaining int   `yaml:"remaining"`
	Total     int   `yaml:"total"`
	Phase     Phase `yaml:"phase"`
}

// ProgressPercent returns the elapsed share of the snapshot's total duration.
func (s Snapshot) ProgressPercent() float64 {
	return ProgressPercent(s.Total, s.Remaining)
}

// Display returns the formatted remaining time.
func (s Snapshot) Display() string {
	return FormatDisplay(s.Remaining)
}

// Validate checks the invariants a snapshot must hold before it can be restored.
func (s Snapshot) Validate() error {
	if s.Total <= 0 {
		return invalidDuration(s.Total)
	}
	if s.Remaining < 0 || s.Remaining > s.Total {
		return fmt.Errorf("remaining %d outside [0, %d]", s.Remaining, s.Total)
	}
	if !s.Phase.IsValid() {
		return fmt.Errorf("unknown timer phase %q", s.Phase)
	}
	if s.Phase == PhaseCompleted && s.Remaining != 0 {
		return fmt.Errorf("completed timer must have no remaining time, got %d", s.Remaining)
	}
	return nil
}

// Option configures a StudyTimer.
type Option func(*StudyTimer)

// WithClock replaces the wall clock used to schedule ticks.
func WithClock(clock Clock) Option {
	return func(t *StudyTimer) {
		t.clock = clock
	}
}

// WithLogger attaches a logger for lifecycle transitions.
func WithLogger(logger logging.Logger) Option {
	return func(t *StudyTimer) {
		t.logger = logger
	}
}

// StudyTimer is a single countdown advancing one second per tick while
// running. All methods are safe for concurrent use; handlers registered with
// OnComplete and OnTick run after the internal lock is released, so they may
// call back into the timer.
type StudyTimer struct {
	clock  Clock
	logger logging.Logger

	mu        sync.Mutex
	total     int
	remaining int
	phase     Phase

	// generation changes whenever ticking halts or a new run segment
	// starts; a tick carrying a stale generation is discarded.
	generation uint64
	pending    Timer
	deadline   time.Time

	onComplete []func()
	onTick     []func(Snapshot)
}

// New creates an idle timer with total and remaining set to seconds.
func New(seconds int, opts ...Option) (*StudyTimer, error) {
	if seconds <= 0 {
		return nil, invalidDuration(seconds)
	}
	return newTimer(Snapshot{Remaining: seconds, Total: seconds, Phase: PhaseIdle}, opts), nil
}

// Restore rebuilds a timer from a persisted snapshot. A running snapshot is
// restored as paused: no ticks are credited for time spent outside the process.
func Restore(snap Snapshot, opts ...Option) (*StudyTimer, error) {
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	if snap.Phase == PhaseRunning {
		snap.Phase = PhasePaused
	}
	return newTimer(snap, opts), nil
}

func newTimer(snap Snapshot, opts []Option) *StudyTimer {
	t := &StudyTimer{
		clock:     SystemClock,
		total:     snap.Total,
		remaining: snap.Remaining,
		phase:     snap.Phase,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.clock == nil {
		t.clock = SystemClock
	}
	t.logger = logging.OrNop(t.logger)
	return t
}

// OnComplete registers a handler invoked once per completion event.
func (t *StudyTimer) OnComplete(handler func()) {
	if handler == nil {
		return
	}
	t.mu.Lock()
	t.onComplete = append(t.onComplete, handler)
	t.mu.Unlock()
}

// OnTick registers a handler invoked with the new state after every tick.
func (t *StudyTimer) OnTick(handler func(Snapshot)) {
	if handler == nil {
		return
	}
	t.mu.Lock()
	t.onTick = append(t.onTick, handler)
	t.mu.Unlock()
}

// Start begins ticking from Idle or Completed. A timer with no time left is
// re-armed from its total first.
func (t *StudyTimer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.phase {
	case PhaseIdle, PhaseCompleted:
	default:
		return invalidTransition("start", t.phase)
	}
	if t.remaining == 0 {
		t.remaining = t.total
	}
	t.runLocked()
	t.logger.Debug("timer started with %ds of %ds", t.remaining, t.total)
	return nil
}

// Pause suspends a running timer, keeping its remaining time.
func (t *StudyTimer) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.phase != PhaseRunning {
		return invalidTransition("pause", t.phase)
	}
	t.haltLocked()
	t.phase = PhasePaused
	t.logger.Debug("timer paused at %ds", t.remaining)
	return nil
}

// Resume continues a paused timer from its retained remaining time. A paused
// timer with no time left completes immediately.
func (t *StudyTimer) Resume() error {
	t.mu.Lock()
	if t.phase != PhasePaused {
		phase := t.phase
		t.mu.Unlock()
		return invalidTransition("resume", phase)
	}

	var fire []func()
	if t.remaining == 0 {
		fire = t.completeLocked()
	} else {
		t.runLocked()
		t.logger.Debug("timer resumed at %ds", t.remaining)
	}
	t.mu.Unlock()

	notify(fire)
	return nil
}

// Stop halts a running or paused timer and rewinds it to its total.
func (t *StudyTimer) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.phase {
	case PhaseRunning, PhasePaused:
	default:
		return invalidTransition("stop", t.phase)
	}
	t.haltLocked()
	t.remaining = t.total
	t.phase = PhaseIdle
	t.logger.Debug("timer stopped")
	return nil
}

// Reset halts the timer and rewinds it to its current total. It is valid from
// every phase.
func (t *StudyTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetLocked(t.total)
}

// ResetTo halts the timer and replaces its total with seconds.
func (t *StudyTimer) ResetTo(seconds int) error {
	if seconds <= 0 {
		return invalidDuration(seconds)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetLocked(seconds)
	return nil
}

// AddTime shifts the remaining time by delta seconds, clamped to
// [0, total]. The total is unchanged. Reaching zero while running completes
// the timer; adding time to a completed timer moves it to Paused without
// restarting the countdown.
//
// Reaching zero while Idle or Paused keeps that phase with no time left and
// fires no handler, so Completed is not the only phase with zero remaining.
// Start re-arms such a timer from the total; Resume completes it at once.
func (t *StudyTimer) AddTime(delta int) {
	t.mu.Lock()

	switch {
	case delta > t.total-t.remaining:
		t.remaining = t.total
	case delta < -t.remaining:
		t.remaining = 0
	default:
		t.remaining += delta
	}

	var fire []func()
	switch {
	case t.phase == PhaseRunning && t.remaining == 0:
		fire = t.completeLocked()
	case t.phase == PhaseCompleted && t.remaining > 0:
		t.phase = PhasePaused
	}
	t.mu.Unlock()

	notify(fire)
}

// Snapshot returns a copy of the current state.
func (t *StudyTimer) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Remaining returns the seconds left on the countdown.
func (t *StudyTimer) Remaining() int {
	return t.Snapshot().Remaining
}

// Total returns the duration the timer was (re)started with.
func (t *StudyTimer) Total() int {
	return t.Snapshot().Total
}

// Phase returns the current phase.
func (t *StudyTimer) Phase() Phase {
	return t.Snapshot().Phase
}

// ProgressPercent returns the elapsed share of the total duration.
func (t *StudyTimer) ProgressPercent() float64 {
	return t.Snapshot().ProgressPercent()
}

// FormattedDisplay returns the remaining time as MM:SS or HH:MM:SS.
func (t *StudyTimer) FormattedDisplay() string {
	return t.Snapshot().Display()
}

func (t *StudyTimer) snapshotLocked() Snapshot {
	return Snapshot{Remaining: t.remaining, Total: t.total, Phase: t.phase}
}

func (t *StudyTimer) resetLocked(seconds int) {
	t.haltLocked()
	t.total = seconds
	t.remaining = seconds
	t.phase = PhaseIdle
	t.logger.Debug("timer reset to %ds", seconds)
}

// runLocked enters Running and schedules the first tick one interval out.
func (t *StudyTimer) runLocked() {
	t.haltLocked()
	t.phase = PhaseRunning
	t.deadline = t.clock.Now().Add(TickInterval)
	t.scheduleLocked()
}

func (t *StudyTimer) scheduleLocked() {
	gen := t.generation
	delay := t.deadline.Sub(t.clock.Now())
	if delay < 0 {
		delay = 0
	}
	t.pending = t.clock.AfterFunc(delay, func() {
		t.tick(gen)
	})
}

func (t *StudyTimer) haltLocked() {
	t.generation++
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

// completeLocked moves the timer to Completed and returns the handlers to
// fire once the lock is released.
func (t *StudyTimer) completeLocked() []func() {
	t.haltLocked()
	t.remaining = 0
	t.phase = PhaseCompleted
	t.logger.Info("timer completed after %ds", t.total)
	return append([]func(){}, t.onComplete...)
}

func (t *StudyTimer) tick(gen uint64) {
	t.mu.Lock()
	if t.phase != PhaseRunning || gen != t.generation {
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.remaining--

	var fire []func()
	if t.remaining <= 0 {
		fire = t.completeLocked()
	} else {
		t.deadline = t.deadline.Add(TickInterval)
		t.scheduleLocked()
	}
	snap := t.snapshotLocked()
	observers := append([]func(Snapshot){}, t.onTick...)
	t.mu.Unlock()

	for _, observer := range observers {
		observer(snap)
	}
	notify(fire)
}

func notify(handlers []func()) {
	for _, handler := range handlers {
		handler()
	}
}
