package notification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusvault/internal/shared/timer"
)

var noon = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

// inbox records what a channel received.
type inbox struct {
	name     string
	minLevel NotificationPriority
	err      error

	mu       sync.Mutex
	received []Notification
}

func (b *inbox) Name() string { return b.name }

func (b *inbox) Send(_ context.Context, n Notification) error {
	if b.err != nil {
		return b.err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.received = append(b.received, n)
	return nil
}

func (b *inbox) Supports(p NotificationPriority) bool { return p >= b.minLevel }

func (b *inbox) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.received)
}

func (b *inbox) titles() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.received))
	for _, n := range b.received {
		out = append(out, n.Title)
	}
	return out
}

func completed(kind timer.Kind) timer.Record {
	return timer.Record{ID: "ses-" + string(kind), Kind: kind, Status: timer.StatusCompleted}
}

// studyCenter mirrors the CLI wiring: a default log channel, a file channel
// and a console that ignores low priority messages.
func studyCenter() (*Center, *inbox, *inbox, *inbox) {
	logCh := &inbox{name: "log"}
	fileCh := &inbox{name: "file"}
	consoleCh := &inbox{name: "console", minLevel: PriorityNormal}

	c := NewCenter(WithNow(func() time.Time { return noon }))
	c.RegisterChannel(logCh, ChannelConfig{Enabled: true, IsDefault: true})
	c.RegisterChannel(fileCh, ChannelConfig{Enabled: true})
	c.RegisterChannel(consoleCh, ChannelConfig{Enabled: true, MinPriority: PriorityNormal})
	return c, logCh, fileCh, consoleCh
}

func TestCenterRoutesCompletionToDefaultChannel(t *testing.T) {
	c, logCh, fileCh, consoleCh := studyCenter()

	result, err := c.Send(context.Background(), MessageFor(completed(timer.KindFocus)))
	require.NoError(t, err)

	assert.Equal(t, StatusDelivered, result.Status)
	assert.Equal(t, "log", result.Channel)
	assert.True(t, strings.HasPrefix(result.NotificationID, "ntf-"), result.NotificationID)
	assert.Equal(t, noon, result.SentAt)

	require.Len(t, logCh.received, 1)
	got := logCh.received[0]
	assert.Equal(t, "ses-focus", got.SessionID)
	assert.Equal(t, "log", got.Channel)
	assert.Equal(t, noon, got.CreatedAt)
	assert.Empty(t, fileCh.received)
	assert.Empty(t, consoleCh.received)
}

func TestCenterExplicitChannelOverridesDefault(t *testing.T) {
	c, logCh, fileCh, _ := studyCenter()

	n := MessageFor(completed(timer.KindShortBreak))
	n.Channel = "file"
	_, err := c.Send(context.Background(), n)
	require.NoError(t, err)

	assert.Empty(t, logCh.received)
	assert.Equal(t, []string{"Break Complete!"}, fileCh.titles())
}

func TestCenterCriticalReachesEveryEnabledChannel(t *testing.T) {
	c, logCh, fileCh, consoleCh := studyCenter()
	muted := &inbox{name: "muted"}
	c.RegisterChannel(muted, ChannelConfig{Enabled: false})

	n := Notification{Title: "Storage full", Body: "Sessions can no longer be saved", Priority: PriorityCritical}
	_, err := c.Send(context.Background(), n)
	require.NoError(t, err)

	for _, ch := range []*inbox{logCh, fileCh, consoleCh} {
		assert.Equal(t, []string{"Storage full"}, ch.titles(), ch.name)
	}
	assert.Empty(t, muted.received)

	history := c.History("", 0)
	assert.Len(t, history, 3)
	ids := map[string]bool{}
	for _, r := range history {
		ids[r.NotificationID] = true
	}
	assert.Len(t, ids, 1, "fan-out reuses a single notification ID")
}

func TestCenterWithoutDefaultChannel(t *testing.T) {
	c := NewCenter()
	c.RegisterChannel(&inbox{name: "file"}, ChannelConfig{Enabled: true})

	_, err := c.Send(context.Background(), MessageFor(completed(timer.KindFocus)))
	require.Error(t, err)
	assert.Empty(t, c.History("", 0))
}

func TestCenterReportsUndeliverableNotifications(t *testing.T) {
	c, _, _, _ := studyCenter()
	c.RegisterChannel(&inbox{name: "broken", err: errors.New("disk full")}, ChannelConfig{Enabled: true})
	c.RegisterChannel(&inbox{name: "paused"}, ChannelConfig{Enabled: false})

	low := Notification{Title: "Tip", Body: "Stretch between sessions", Priority: PriorityLow}
	results, err := c.SendMulti(context.Background(), low, []string{"console", "broken", "paused", "email", "file"})
	require.NoError(t, err)
	require.Len(t, results, 5)

	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Contains(t, results[0].Error, "does not accept LOW priority")
	assert.Equal(t, StatusFailed, results[1].Status)
	assert.Equal(t, "disk full", results[1].Error)
	assert.Contains(t, results[2].Error, "is disabled")
	assert.Contains(t, results[3].Error, `channel "email" not found`)
	assert.Equal(t, StatusDelivered, results[4].Status)

	_, err = c.SendMulti(context.Background(), low, nil)
	assert.Error(t, err)
}

func TestCenterHistoryIsBoundedAndFiltered(t *testing.T) {
	logCh := &inbox{name: "log"}
	fileCh := &inbox{name: "file"}
	c := NewCenter(WithHistorySize(3), WithDefaultChannel("log"))
	c.RegisterChannel(logCh, ChannelConfig{Enabled: true})
	c.RegisterChannel(fileCh, ChannelConfig{Enabled: true})

	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		n := Notification{ID: fmt.Sprintf("ntf-%d", i), Title: "Timer Complete!", Priority: PriorityHigh}
		if i%2 == 0 {
			n.Channel = "file"
		}
		_, err := c.Send(ctx, n)
		require.NoError(t, err)
	}

	all := c.History("", 0)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"ntf-5", "ntf-4", "ntf-3"}, []string{all[0].NotificationID, all[1].NotificationID, all[2].NotificationID})

	fileOnly := c.History("file", 0)
	require.Len(t, fileOnly, 1)
	assert.Equal(t, "ntf-4", fileOnly[0].NotificationID)

	latest := c.History("", 1)
	require.Len(t, latest, 1)
	assert.Equal(t, "ntf-5", latest[0].NotificationID)
}

func TestCenterDefaultChannelManagement(t *testing.T) {
	c, logCh, fileCh, _ := studyCenter()

	names := make([]string, 0)
	for _, cfg := range c.ListChannels() {
		names = append(names, cfg.Name)
		assert.Equal(t, cfg.Name == "log", cfg.IsDefault, cfg.Name)
	}
	assert.Equal(t, []string{"console", "file", "log"}, names)

	require.Error(t, c.SetDefault("email"))
	require.NoError(t, c.SetDefault("file"))
	_, err := c.Send(context.Background(), MessageFor(completed(timer.KindLongBreak)))
	require.NoError(t, err)
	assert.Empty(t, logCh.received)
	assert.Len(t, fileCh.received, 1)

	c.UnregisterChannel("file")
	_, err = c.Send(context.Background(), MessageFor(completed(timer.KindFocus)))
	assert.Error(t, err, "removing the default channel leaves no route")
	assert.Len(t, c.ListChannels(), 2)
}

func TestLogChannelWritesOneLinePerNotification(t *testing.T) {
	var buf bytes.Buffer
	c := NewCenter(WithNow(func() time.Time { return noon.In(time.FixedZone("CET", 3600)) }))
	c.RegisterChannel(NewLogChannel("file", &buf), ChannelConfig{Enabled: true, IsDefault: true})

	_, err := c.Send(context.Background(), MessageFor(completed(timer.KindFocus)))
	require.NoError(t, err)
	_, err = c.Send(context.Background(), MessageFor(completed(timer.KindShortBreak)))
	require.NoError(t, err)

	assert.Equal(t,
		"[2026-03-02T12:00:00Z] [HIGH] Timer Complete!: Your study session has ended. Time for a break!\n"+
			"[2026-03-02T12:00:00Z] [NORMAL] Break Complete!: Break time is over. Ready to continue studying?\n",
		buf.String())
}

func TestNotificationPriorityString(t *testing.T) {
	assert.Equal(t, "LOW", PriorityLow.String())
	assert.Equal(t, "NORMAL", PriorityNormal.String())
	assert.Equal(t, "HIGH", PriorityHigh.String())
	assert.Equal(t, "CRITICAL", PriorityCritical.String())
	assert.Equal(t, "PRIORITY(9)", NotificationPriority(9).String())
}

func TestCenterConcurrentCompletions(t *testing.T) {
	logCh := &inbox{name: "log"}
	c := NewCenter()
	c.RegisterChannel(logCh, ChannelConfig{Enabled: true, IsDefault: true})

	const sessions = 40
	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := timer.KindFocus
			if i%3 == 0 {
				kind = timer.KindShortBreak
			}
			_, _ = c.Send(context.Background(), MessageFor(timer.Record{ID: fmt.Sprintf("ses-%d", i), Kind: kind}))
		}(i)
	}
	wg.Wait()

	assert.Len(t, logCh.titles(), sessions)
	assert.Len(t, c.History("log", 0), sessions)
}
