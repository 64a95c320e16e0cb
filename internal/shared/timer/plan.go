package timer

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"focusvault/internal/shared/utils/id"
)

var planParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Plan is a recurring study block. Each time its schedule fires the manager
// opens and starts a session of DurationSeconds.
type Plan struct {
	ID              string    `yaml:"id"`
	Name            string    `yaml:"name"`
	Subject         string    `yaml:"subject,omitempty"`
	Kind            Kind      `yaml:"kind"`
	Schedule        string    `yaml:"schedule"`
	DurationSeconds int       `yaml:"duration_seconds"`
	CreatedAt       time.Time `yaml:"created_at"`
}

// NewPlanID generates a unique plan identifier with "plan-" prefix.
func NewPlanID() string {
	return id.NewPlanID()
}

// Validate checks required fields and parses the cron schedule.
func (p *Plan) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("plan ID is required")
	}
	if p.Name == "" {
		return fmt.Errorf("plan name is required")
	}
	if !p.Kind.IsValid() {
		return fmt.Errorf("unknown session kind %q", p.Kind)
	}
	if p.DurationSeconds <= 0 {
		return invalidDuration(p.DurationSeconds)
	}
	if p.Schedule == "" {
		return fmt.Errorf("plan requires schedule (cron expression)")
	}
	if _, err := planParser.Parse(p.Schedule); err != nil {
		return fmt.Errorf("invalid cron expression for %q: %w", p.Name, err)
	}
	return nil
}

// Next returns the first activation strictly after t.
func (p *Plan) Next(t time.Time) (time.Time, error) {
	schedule, err := planParser.Parse(p.Schedule)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression for %q: %w", p.Name, err)
	}
	return schedule.Next(t), nil
}

func (p *Plan) openRequest() OpenRequest {
	return OpenRequest{
		Name:    p.Name,
		Subject: p.Subject,
		Kind:    p.Kind,
		Seconds: p.DurationSeconds,
		PlanID:  p.ID,
	}
}
