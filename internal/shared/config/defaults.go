package config

import (
	"path/filepath"
	"time"

	"focusvault/internal/observability"
)

const (
	defaultConfigDir  = ".focusvault"
	defaultConfigName = "focusvault"
	envPrefix         = "FOCUSVAULT"
)

// Default returns the built-in configuration rooted at home.
func Default(home string) Config {
	base := filepath.Join(home, defaultConfigDir)

	obs := observability.DefaultConfig()
	obs.Tracing.Output = filepath.Join(base, "traces.jsonl")

	return Config{
		Timer: TimerConfig{
			Focus:          Duration(25 * time.Minute),
			ShortBreak:     Duration(5 * time.Minute),
			LongBreak:      Duration(15 * time.Minute),
			LongBreakEvery: 4,
			MaxActive:      0,
		},
		Store: StoreConfig{
			Dir:        filepath.Join(base, "sessions"),
			IDStrategy: "ksuid",
		},
		Notifications: NotificationsConfig{
			Console:          true,
			Bell:             true,
			StreakMilestones: []int{3, 7, 14, 30, 100},
		},
		UI: UIConfig{
			TUI:        true,
			AdjustStep: Duration(5 * time.Minute),
		},
		Observability: obs,
	}
}
