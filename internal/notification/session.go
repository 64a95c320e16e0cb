package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"focusvault/internal/shared/timer"
)

// History lists the session records notifications are derived from.
type History interface {
	List() []timer.Record
}

// HistoryFunc adapts a function to the History interface.
type HistoryFunc func() []timer.Record

// List calls f.
func (f HistoryFunc) List() []timer.Record {
	return f()
}

// SessionNotifier turns finished study sessions into notifications. It
// implements timer.Notifier.
type SessionNotifier struct {
	center     *Center
	history    History
	dailyGoal  time.Duration
	milestones map[int]bool
	channels   []string
	now        func() time.Time
}

// SessionOption configures a SessionNotifier.
type SessionOption func(*SessionNotifier)

// WithHistory enables daily goal and streak notifications computed from the
// records returned by h.
func WithHistory(h History) SessionOption {
	return func(s *SessionNotifier) {
		s.history = h
	}
}

// WithDailyGoal sets the focus time that triggers the daily goal notification.
func WithDailyGoal(goal time.Duration) SessionOption {
	return func(s *SessionNotifier) {
		s.dailyGoal = goal
	}
}

// WithStreakMilestones sets the streak lengths, in days, that are announced.
func WithStreakMilestones(days ...int) SessionOption {
	return func(s *SessionNotifier) {
		s.milestones = make(map[int]bool, len(days))
		for _, d := range days {
			s.milestones[d] = true
		}
	}
}

// WithChannels delivers every notification to each named channel instead
// of the center's default route.
func WithChannels(names ...string) SessionOption {
	return func(s *SessionNotifier) {
		s.channels = append([]string(nil), names...)
	}
}

// WithSessionClock overrides the time source used for daily summaries.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionNotifier) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionNotifier creates a notifier that sends through center.
func NewSessionNotifier(center *Center, opts ...SessionOption) *SessionNotifier {
	s := &SessionNotifier{
		center:     center,
		milestones: map[int]bool{3: true, 7: true, 14: true, 30: true, 100: true},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MessageFor returns the completion notification for a session record.
func MessageFor(record timer.Record) Notification {
	if record.Kind.IsBreak() {
		return Notification{
			SessionID: record.ID,
			Type:      TypeBreakComplete,
			Title:     "Break Complete!",
			Body:      "Break time is over. Ready to continue studying?",
			Priority:  PriorityNormal,
		}
	}
	return Notification{
		SessionID: record.ID,
		Type:      TypeTimerComplete,
		Title:     "Timer Complete!",
		Body:      "Your study session has ended. Time for a break!",
		Priority:  PriorityHigh,
	}
}

// NotifyComplete announces a finished session and, for focus sessions, any
// daily goal or streak milestone it reached.
func (s *SessionNotifier) NotifyComplete(ctx context.Context, record timer.Record) error {
	notifications := []Notification{MessageFor(record)}
	if !record.Kind.IsBreak() && s.history != nil {
		notifications = append(notifications, s.achievements(record)...)
	}

	var errs []error
	for _, n := range notifications {
		results, err := s.send(ctx, n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, result := range results {
			if result.Status != StatusDelivered {
				errs = append(errs, fmt.Errorf("deliver %s via %s: %s", n.Type, result.Channel, result.Error))
			}
		}
	}
	return errors.Join(errs...)
}

func (s *SessionNotifier) send(ctx context.Context, n Notification) ([]Result, error) {
	if len(s.channels) > 0 {
		return s.center.SendMulti(ctx, n, s.channels)
	}
	result, err := s.center.Send(ctx, n)
	if err != nil {
		return nil, err
	}
	return []Result{result}, nil
}

func (s *SessionNotifier) achievements(record timer.Record) []Notification {
	summary := timer.Summarize(s.history.List(), s.now())
	var out []Notification

	if goal := int(s.dailyGoal / time.Second); goal > 0 {
		before := summary.TodayFocusSeconds - record.TotalSeconds
		if before < goal && summary.TodayFocusSeconds >= goal {
			progress := summary.TodayFocusSeconds * 100 / goal
			out = append(out, Notification{
				SessionID: record.ID,
				Type:      TypeDailyGoal,
				Title:     "Daily Goal Achieved!",
				Body:      fmt.Sprintf("Congratulations! You've completed %d%% of your daily study goal.", progress),
				Priority:  PriorityNormal,
			})
		}
	}

	// Only the first focus session of the day extends the streak.
	if summary.TodayFocusSessions == 1 && s.milestones[summary.StreakDays] {
		out = append(out, Notification{
			SessionID: record.ID,
			Type:      TypeStreakMilestone,
			Title:     "Streak Milestone!",
			Body:      fmt.Sprintf("Amazing! You've maintained a %d-day study streak!", summary.StreakDays),
			Priority:  PriorityNormal,
		})
	}
	return out
}
