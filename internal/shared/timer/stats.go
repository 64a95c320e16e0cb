package timer

import (
	"sort"
	"time"
)

// Level ranks a student by accumulated focus hours.
type Level string

const (
	LevelBeginner     Level = "Beginner"
	LevelIntermediate Level = "Intermediate"
	LevelAdvanced     Level = "Advanced"
	LevelExpert       Level = "Expert"
	LevelMaster       Level = "Master"
)

// LevelFor maps total focus hours to a level.
func LevelFor(hours float64) Level {
	switch {
	case hours < 10:
		return LevelBeginner
	case hours < 50:
		return LevelIntermediate
	case hours < 100:
		return LevelAdvanced
	case hours < 200:
		return LevelExpert
	default:
		return LevelMaster
	}
}

// Summary aggregates completed sessions.
type Summary struct {
	FocusSessions int
	BreakSessions int
	FocusSeconds  int
	BreakSeconds  int
	StreakDays    int
	Level         Level
	// TodayFocusSessions and TodayFocusSeconds cover the calendar day of now.
	TodayFocusSessions int
	TodayFocusSeconds  int
	SubjectSeconds     map[string]int
}

// FocusMinutes returns the focus time in whole minutes.
func (s Summary) FocusMinutes() int {
	return s.FocusSeconds / 60
}

// FocusHours returns the focus time in fractional hours.
func (s Summary) FocusHours() float64 {
	return float64(s.FocusSeconds) / 3600
}

// Subjects returns the studied subjects ordered by time spent, longest first.
func (s Summary) Subjects() []string {
	subjects := make([]string, 0, len(s.SubjectSeconds))
	for subject := range s.SubjectSeconds {
		subjects = append(subjects, subject)
	}
	sort.Slice(subjects, func(i, j int) bool {
		a, b := s.SubjectSeconds[subjects[i]], s.SubjectSeconds[subjects[j]]
		if a == b {
			return subjects[i] < subjects[j]
		}
		return a > b
	})
	return subjects
}

// Summarize aggregates completed records. Only completed sessions count; the
// streak is the number of consecutive days, ending today in now's location,
// with at least one completed focus session.
func Summarize(records []Record, now time.Time) Summary {
	summary := Summary{SubjectSeconds: make(map[string]int)}
	days := make(map[time.Time]struct{})
	today := startOfDay(now)

	for i := range records {
		r := &records[i]
		if r.Status != StatusCompleted {
			continue
		}
		if r.Kind.IsBreak() {
			summary.BreakSessions++
			summary.BreakSeconds += r.TotalSeconds
			continue
		}
		summary.FocusSessions++
		summary.FocusSeconds += r.TotalSeconds
		if r.Subject != "" {
			summary.SubjectSeconds[r.Subject] += r.TotalSeconds
		}
		finished := r.UpdatedAt
		if r.CompletedAt != nil {
			finished = *r.CompletedAt
		}
		day := startOfDay(finished.In(now.Location()))
		days[day] = struct{}{}
		if day.Equal(today) {
			summary.TodayFocusSessions++
			summary.TodayFocusSeconds += r.TotalSeconds
		}
	}

	summary.StreakDays = streak(days, today)
	summary.Level = LevelFor(summary.FocusHours())
	return summary
}

func streak(days map[time.Time]struct{}, today time.Time) int {
	count := 0
	for day := today; ; day = day.AddDate(0, 0, -1) {
		if _, ok := days[day]; !ok {
			return count
		}
		count++
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
