package config

import (
	"fmt"
	"strings"
	"time"

	"focusvault/internal/observability"
)

// ValueSource describes where a configuration value originated from.
type ValueSource string

const (
	SourceDefault ValueSource = "default"
	SourceFile    ValueSource = "file"
	SourceEnv     ValueSource = "environment"
)

// Duration is a time.Duration that reads and writes as "25m" or "1h30m".
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Seconds returns the duration in whole seconds.
func (d Duration) Seconds() int {
	return int(time.Duration(d) / time.Second)
}

func (d Duration) String() string {
	s := time.Duration(d).String()
	if strings.HasSuffix(s, "m0s") {
		s = s[:len(s)-2]
	}
	if strings.HasSuffix(s, "h0m") {
		s = s[:len(s)-2]
	}
	return s
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the complete focusvault configuration.
type Config struct {
	Timer         TimerConfig          `mapstructure:"timer" yaml:"timer"`
	Store         StoreConfig          `mapstructure:"store" yaml:"store"`
	Notifications NotificationsConfig  `mapstructure:"notifications" yaml:"notifications"`
	UI            UIConfig             `mapstructure:"ui" yaml:"ui"`
	Observability observability.Config `mapstructure:"observability" yaml:"observability"`
}

// TimerConfig holds the preset durations and session manager behaviour.
type TimerConfig struct {
	Focus          Duration `mapstructure:"focus" yaml:"focus" validate:"seconds"`
	ShortBreak     Duration `mapstructure:"short_break" yaml:"short_break" validate:"seconds"`
	LongBreak      Duration `mapstructure:"long_break" yaml:"long_break" validate:"seconds"`
	LongBreakEvery int      `mapstructure:"long_break_every" yaml:"long_break_every" validate:"gte=1"`
	AutoStartBreak bool     `mapstructure:"auto_start_break" yaml:"auto_start_break"`
	RecoverRunning bool     `mapstructure:"recover_running" yaml:"recover_running"`
	MaxActive      int      `mapstructure:"max_active" yaml:"max_active" validate:"gte=0"`
	DailyGoal      Duration `mapstructure:"daily_goal" yaml:"daily_goal" validate:"omitempty,seconds"`
}

// StoreConfig locates session and plan files.
type StoreConfig struct {
	Dir        string `mapstructure:"dir" yaml:"dir" validate:"required"`
	IDStrategy string `mapstructure:"id_strategy" yaml:"id_strategy" validate:"oneof=ksuid uuidv7"`
}

// NotificationsConfig selects the channels completion notices go to.
type NotificationsConfig struct {
	Console          bool   `mapstructure:"console" yaml:"console"`
	Bell             bool   `mapstructure:"bell" yaml:"bell"`
	LogFile          string `mapstructure:"log_file" yaml:"log_file"`
	StreakMilestones []int  `mapstructure:"streak_milestones" yaml:"streak_milestones" validate:"dive,gte=1"`
}

// UIConfig controls the terminal front end.
type UIConfig struct {
	TUI        bool     `mapstructure:"tui" yaml:"tui"`
	AdjustStep Duration `mapstructure:"adjust_step" yaml:"adjust_step" validate:"seconds"`
}

// Metadata records where the loaded configuration came from.
type Metadata struct {
	path     string
	sources  map[string]ValueSource
	loadedAt time.Time
}

// ConfigPath returns the file the configuration was read from, or "" when
// only defaults and environment were used.
func (m Metadata) ConfigPath() string {
	return m.path
}

// LoadedAt returns the load timestamp.
func (m Metadata) LoadedAt() time.Time {
	return m.loadedAt
}

// Sources returns a copy of the provenance map.
func (m Metadata) Sources() map[string]ValueSource {
	if m.sources == nil {
		return map[string]ValueSource{}
	}
	copy := make(map[string]ValueSource, len(m.sources))
	for key, value := range m.sources {
		copy[key] = value
	}
	return copy
}

// Source returns the provenance of a dotted key such as "timer.focus".
func (m Metadata) Source(field string) ValueSource {
	if source, ok := m.sources[field]; ok {
		return source
	}
	return SourceDefault
}
