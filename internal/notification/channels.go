package notification

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"

	"focusvault/internal/shared/logging"
)

// LogChannel writes one plain line per notification.
type LogChannel struct {
	name string
	mu   sync.Mutex
	w    io.Writer
}

// NewLogChannel creates a LogChannel writing to w.
func NewLogChannel(name string, w io.Writer) *LogChannel {
	return &LogChannel{name: name, w: w}
}

func (c *LogChannel) Name() string { return c.name }

func (c *LogChannel) Send(_ context.Context, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintf(c.w, "[%s] [%s] %s: %s\n",
		n.CreatedAt.UTC().Format(time.RFC3339), n.Priority, n.Title, n.Body)
	return err
}

func (c *LogChannel) Supports(NotificationPriority) bool { return true }

// LoggerChannel forwards notifications to a printf-style logger.
type LoggerChannel struct {
	name   string
	logger logging.Logger
}

// NewLoggerChannel creates a LoggerChannel.
func NewLoggerChannel(name string, logger logging.Logger) *LoggerChannel {
	return &LoggerChannel{name: name, logger: logging.OrNop(logger)}
}

func (c *LoggerChannel) Name() string { return c.name }

func (c *LoggerChannel) Send(_ context.Context, n Notification) error {
	if n.Priority >= PriorityHigh {
		c.logger.Warn("notification %s [%s] %s: %s", n.ID, n.Type, n.Title, n.Body)
		return nil
	}
	c.logger.Info("notification %s [%s] %s: %s", n.ID, n.Type, n.Title, n.Body)
	return nil
}

func (c *LoggerChannel) Supports(NotificationPriority) bool { return true }

// ConsoleChannel prints a colored banner to the terminal and can ring the
// terminal bell.
type ConsoleChannel struct {
	name string
	bell bool
	mu   sync.Mutex
	w    io.Writer
}

// NewConsoleChannel creates a ConsoleChannel writing to w.
func NewConsoleChannel(name string, w io.Writer, bell bool) *ConsoleChannel {
	return &ConsoleChannel{name: name, w: w, bell: bell}
}

func (c *ConsoleChannel) Name() string { return c.name }

func (c *ConsoleChannel) Send(_ context.Context, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	title := priorityColor(n.Priority).Add(color.Bold).SprintFunc()
	prefix := ""
	if c.bell {
		prefix = "\a"
	}
	_, err := fmt.Fprintf(c.w, "%s%s %s\n", prefix, title(n.Title), n.Body)
	return err
}

func (c *ConsoleChannel) Supports(p NotificationPriority) bool {
	return p >= PriorityNormal
}

func priorityColor(p NotificationPriority) *color.Color {
	switch {
	case p >= PriorityCritical:
		return color.New(color.FgRed)
	case p >= PriorityHigh:
		return color.New(color.FgGreen)
	case p >= PriorityNormal:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgWhite)
	}
}
