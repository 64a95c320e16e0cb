// Package timer implements study countdown timers together with the manager
// that persists them, fires their completion side effects and opens sessions
// for recurring study plans.
package timer

import (
	"fmt"
	"time"

	"focusvault/internal/shared/utils/id"
)

// Preset durations in seconds.
const (
	FocusSeconds      = 25 * 60
	ShortBreakSeconds = 5 * 60
	LongBreakSeconds  = 15 * 60
)

// Kind distinguishes focus blocks from breaks.
type Kind string

const (
	KindFocus      Kind = "focus"
	KindShortBreak Kind = "short_break"
	KindLongBreak  Kind = "long_break"
)

// IsValid reports whether k is a known kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindFocus, KindShortBreak, KindLongBreak:
		return true
	}
	return false
}

// IsBreak reports whether k is one of the break kinds.
func (k Kind) IsBreak() bool {
	return k == KindShortBreak || k == KindLongBreak
}

// DefaultSeconds returns the preset duration for k.
func (k Kind) DefaultSeconds() int {
	switch k {
	case KindShortBreak:
		return ShortBreakSeconds
	case KindLongBreak:
		return LongBreakSeconds
	default:
		return FocusSeconds
	}
}

// Label returns a human readable name.
func (k Kind) Label() string {
	switch k {
	case KindShortBreak:
		return "Short break"
	case KindLongBreak:
		return "Long break"
	default:
		return "Focus"
	}
}

// ParseKind maps a preset name to a Kind. An empty name selects focus.
func ParseKind(value string) (Kind, error) {
	if value == "" {
		return KindFocus, nil
	}
	k := Kind(value)
	if !k.IsValid() {
		return "", fmt.Errorf("unknown session kind %q (want focus, short_break or long_break)", value)
	}
	return k, nil
}

// SessionStatus tracks the lifecycle of a managed session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusCancelled SessionStatus = "cancelled"
)

// Record is the persisted form of a managed study session.
type Record struct {
	ID               string        `yaml:"id"`
	Name             string        `yaml:"name"`
	Subject          string        `yaml:"subject,omitempty"`
	Kind             Kind          `yaml:"kind"`
	TotalSeconds     int           `yaml:"total_seconds"`
	RemainingSeconds int           `yaml:"remaining_seconds"`
	Phase            Phase         `yaml:"phase"`
	PlanID           string        `yaml:"plan_id,omitempty"`
	CreatedAt        time.Time     `yaml:"created_at"`
	UpdatedAt        time.Time     `yaml:"updated_at"`
	CompletedAt      *time.Time    `yaml:"completed_at,omitempty"`
	Status           SessionStatus `yaml:"status"`
}

// NewSessionID generates a unique session identifier with "ses-" prefix.
func NewSessionID() string {
	return id.NewSessionID()
}

// IsActive reports whether the session is in the active state.
func (r *Record) IsActive() bool {
	return r.Status == StatusActive
}

// Snapshot returns the timer state stored in the record.
func (r *Record) Snapshot() Snapshot {
	return Snapshot{Remaining: r.RemainingSeconds, Total: r.TotalSeconds, Phase: r.Phase}
}

// ElapsedSeconds returns how much of the countdown has been consumed.
func (r *Record) ElapsedSeconds() int {
	return r.TotalSeconds - r.RemainingSeconds
}

// Validate checks that a record has the required fields and a consistent
// timer state.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("session ID is required")
	}
	if r.Name == "" {
		return fmt.Errorf("session name is required")
	}
	if !r.Kind.IsValid() {
		return fmt.Errorf("unknown session kind %q", r.Kind)
	}
	if r.TotalSeconds <= 0 {
		return invalidDuration(r.TotalSeconds)
	}
	if r.RemainingSeconds < 0 || r.RemainingSeconds > r.TotalSeconds {
		return fmt.Errorf("remaining seconds %d outside [0, %d]", r.RemainingSeconds, r.TotalSeconds)
	}
	switch r.Status {
	case StatusActive, StatusCompleted, StatusCancelled:
	default:
		return fmt.Errorf("unknown session status %q", r.Status)
	}
	return nil
}

// apply copies snap into the record. Leaving Completed reactivates a
// completed record; marking completion is left to the manager.
func (r *Record) apply(snap Snapshot, now time.Time) (reactivated bool) {
	r.TotalSeconds = snap.Total
	r.RemainingSeconds = snap.Remaining
	r.Phase = snap.Phase
	r.UpdatedAt = now
	if r.Status == StatusCompleted && snap.Phase != PhaseCompleted {
		r.Status = StatusActive
		r.CompletedAt = nil
		return true
	}
	return false
}
