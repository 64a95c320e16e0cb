package notification

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"focusvault/internal/shared/utils/id"
)

const defaultHistorySize = 100

type registeredChannel struct {
	channel Channel
	config  ChannelConfig
}

// Center dispatches notifications to registered channels and keeps a bounded
// history of delivery results. Critical notifications are also fanned out to
// every other enabled channel that supports them.
type Center struct {
	mu             sync.RWMutex
	channels       map[string]*registeredChannel
	defaultChannel string
	history        []Result
	historySize    int
	now            func() time.Time
}

// Option configures a Center.
type Option func(*Center)

// WithDefaultChannel routes notifications without an explicit channel to name.
func WithDefaultChannel(name string) Option {
	return func(c *Center) {
		c.defaultChannel = name
	}
}

// WithHistorySize bounds the number of retained delivery results.
func WithHistorySize(size int) Option {
	return func(c *Center) {
		if size > 0 {
			c.historySize = size
		}
	}
}

// WithNow overrides the time source used to stamp notifications.
func WithNow(now func() time.Time) Option {
	return func(c *Center) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCenter creates an empty Center.
func NewCenter(opts ...Option) *Center {
	c := &Center{
		channels:    make(map[string]*registeredChannel),
		historySize: defaultHistorySize,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterChannel adds or replaces a channel under its name.
func (c *Center) RegisterChannel(ch Channel, cfg ChannelConfig) {
	cfg.Name = ch.Name()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.channels[cfg.Name] = &registeredChannel{channel: ch, config: cfg}
	if cfg.IsDefault {
		c.setDefaultLocked(cfg.Name)
	}
}

// UnregisterChannel removes a channel. Removing the default clears it.
func (c *Center) UnregisterChannel(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.channels, name)
	if c.defaultChannel == name {
		c.defaultChannel = ""
	}
}

// SetDefault makes a registered channel the default route.
func (c *Center) SetDefault(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.channels[name]; !ok {
		return fmt.Errorf("channel %q not found", name)
	}
	c.setDefaultLocked(name)
	return nil
}

func (c *Center) setDefaultLocked(name string) {
	for n, rc := range c.channels {
		rc.config.IsDefault = n == name
	}
	c.defaultChannel = name
}

// ListChannels returns the configuration of every channel, sorted by name.
func (c *Center) ListChannels() []ChannelConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()

	configs := make([]ChannelConfig, 0, len(c.channels))
	for _, rc := range c.channels {
		cfg := rc.config
		cfg.IsDefault = rc.config.Name == c.defaultChannel
		configs = append(configs, cfg)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	return configs
}

// Send delivers n to its channel or the default one. Delivery failures are
// reported in the Result; an error is returned only when no channel can be
// chosen at all.
func (c *Center) Send(ctx context.Context, n Notification) (Result, error) {
	n = c.prepare(n)

	c.mu.RLock()
	target := n.Channel
	if target == "" {
		target = c.defaultChannel
	}
	var fanout []string
	if n.Priority >= PriorityCritical {
		for name, rc := range c.channels {
			if name != target && rc.config.Enabled && rc.channel.Supports(n.Priority) {
				fanout = append(fanout, name)
			}
		}
	}
	c.mu.RUnlock()

	if target == "" {
		return Result{}, errors.New("no channel specified and no default channel configured")
	}

	result := c.deliver(ctx, n, target)
	sort.Strings(fanout)
	for _, name := range fanout {
		c.deliver(ctx, n, name)
	}
	return result, nil
}

// SendMulti delivers n to each named channel in order.
func (c *Center) SendMulti(ctx context.Context, n Notification, channels []string) ([]Result, error) {
	if len(channels) == 0 {
		return nil, errors.New("no channels specified")
	}
	n = c.prepare(n)

	results := make([]Result, 0, len(channels))
	for _, name := range channels {
		results = append(results, c.deliver(ctx, n, name))
	}
	return results, nil
}

// History returns up to limit results, most recent first. A non-empty
// channel filters by channel name.
func (c *Center) History(channel string, limit int) []Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Result
	for i := len(c.history) - 1; i >= 0; i-- {
		if channel != "" && c.history[i].Channel != channel {
			continue
		}
		out = append(out, c.history[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func (c *Center) prepare(n Notification) Notification {
	if n.ID == "" {
		n.ID = id.NewNotificationID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = c.now()
	}
	return n
}

func (c *Center) deliver(ctx context.Context, n Notification, name string) Result {
	result := Result{NotificationID: n.ID, Channel: name, SentAt: c.now()}

	c.mu.RLock()
	rc, ok := c.channels[name]
	var (
		ch  Channel
		cfg ChannelConfig
	)
	if ok {
		ch, cfg = rc.channel, rc.config
	}
	c.mu.RUnlock()

	switch {
	case !ok:
		result.Status = StatusFailed
		result.Error = fmt.Sprintf("channel %q not found", name)
	case !cfg.Enabled:
		result.Status = StatusFailed
		result.Error = fmt.Sprintf("channel %q is disabled", name)
	case n.Priority < cfg.MinPriority || !ch.Supports(n.Priority):
		result.Status = StatusFailed
		result.Error = fmt.Sprintf("channel %q does not accept %s priority", name, n.Priority)
	default:
		n.Channel = name
		if err := ch.Send(ctx, n); err != nil {
			result.Status = StatusFailed
			result.Error = err.Error()
		} else {
			result.Status = StatusDelivered
		}
	}

	c.record(result)
	return result
}

func (c *Center) record(result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, result)
	if over := len(c.history) - c.historySize; over > 0 {
		c.history = append([]Result(nil), c.history[over:]...)
	}
}
