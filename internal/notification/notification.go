// Package notification routes study timer announcements to output channels
// such as the terminal or a log file.
package notification

import (
	"context"
	"fmt"
	"time"
)

// NotificationPriority orders notifications by urgency.
type NotificationPriority int

const (
	PriorityLow NotificationPriority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p NotificationPriority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityNormal:
		return "NORMAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityCritical:
		return "CRITICAL"
	default:
		return fmt.Sprintf("PRIORITY(%d)", int(p))
	}
}

// Type tags what a notification announces.
type Type string

const (
	TypeTimerComplete   Type = "timer_complete"
	TypeBreakComplete   Type = "break_complete"
	TypeDailyGoal       Type = "daily_goal"
	TypeStreakMilestone Type = "streak_milestone"
)

// Notification is a single message to deliver.
type Notification struct {
	ID        string
	SessionID string
	Type      Type
	Title     string
	Body      string
	Priority  NotificationPriority
	// Channel selects a registered channel; empty routes to the default.
	Channel   string
	CreatedAt time.Time
}

// DeliveryStatus is the outcome of a delivery attempt.
type DeliveryStatus string

const (
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
)

// Result records one delivery attempt on one channel.
type Result struct {
	NotificationID string
	Channel        string
	Status         DeliveryStatus
	Error          string
	SentAt         time.Time
}

// Channel delivers notifications to one destination.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	Supports(p NotificationPriority) bool
}

// ChannelConfig controls how the Center uses a registered channel.
type ChannelConfig struct {
	Name        string
	Enabled     bool
	MinPriority NotificationPriority
	IsDefault   bool
}
