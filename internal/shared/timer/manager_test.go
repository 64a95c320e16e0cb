package timer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"focusvault/internal/observability"
	"focusvault/internal/shared/timer"
	"focusvault/internal/shared/timer/timertest"
)

type recordingNotifier struct {
	mu      sync.Mutex
	records []timer.Record
}

func (n *recordingNotifier) NotifyComplete(_ context.Context, record timer.Record) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.records = append(n.records, record)
	return nil
}

func (n *recordingNotifier) kinds() []timer.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	kinds := make([]timer.Kind, 0, len(n.records))
	for _, r := range n.records {
		kinds = append(kinds, r.Kind)
	}
	return kinds
}

type countingMetrics struct {
	mu        sync.Mutex
	started   map[string]int
	completed map[string]int
	cancelled map[string]int
	seconds   int
	active    int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		started:   make(map[string]int),
		completed: make(map[string]int),
		cancelled: make(map[string]int),
	}
}

func (m *countingMetrics) RecordSessionStarted(_ context.Context, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started[kind]++
}

func (m *countingMetrics) RecordSessionCompleted(_ context.Context, kind string, seconds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed[kind]++
	m.seconds += seconds
}

func (m *countingMetrics) RecordSessionCancelled(_ context.Context, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled[kind]++
}

func (m *countingMetrics) IncrementActiveSessions(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active++
}

func (m *countingMetrics) DecrementActiveSessions(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active--
}

func (m *countingMetrics) snapshot() (started, completed, cancelled map[string]int, active int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copyMap := func(in map[string]int) map[string]int {
		out := make(map[string]int, len(in))
		for k, v := range in {
			out[k] = v
		}
		return out
	}
	return copyMap(m.started), copyMap(m.completed), copyMap(m.cancelled), m.active
}

func newManager(t *testing.T, cfg timer.Config, opts ...timer.ManagerOption) (*timer.SessionManager, *timertest.FakeClock) {
	t.Helper()
	if cfg.StorePath == "" {
		cfg.StorePath = t.TempDir()
	}
	clock := timertest.NewFakeClock(epoch)
	opts = append(opts, timer.WithManagerClock(clock))
	m, err := timer.NewSessionManager(cfg, nil, opts...)
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	return m, clock
}

func TestSessionManagerOpenDefaults(t *testing.T) {
	m, _ := newManager(t, timer.Config{})

	rec, err := m.Open(context.Background(), timer.OpenRequest{})
	require.NoError(t, err)
	assert.Contains(t, rec.ID, "ses-")
	assert.Equal(t, "Focus", rec.Name)
	assert.Equal(t, timer.KindFocus, rec.Kind)
	assert.Equal(t, 1500, rec.TotalSeconds)
	assert.Equal(t, 1500, rec.RemainingSeconds)
	assert.Equal(t, timer.PhaseIdle, rec.Phase)
	assert.Equal(t, timer.StatusActive, rec.Status)
	assert.True(t, rec.CreatedAt.Equal(epoch))

	_, err = m.Open(context.Background(), timer.OpenRequest{Seconds: -1})
	assert.ErrorIs(t, err, timer.ErrInvalidDuration)

	_, err = m.Open(context.Background(), timer.OpenRequest{Kind: "nap"})
	assert.Error(t, err)
}

func TestSessionManagerCompletesSession(t *testing.T) {
	notifier := &recordingNotifier{}
	metrics := newCountingMetrics()
	m, clock := newManager(t, timer.Config{},
		timer.WithNotifier(notifier),
		timer.WithMetrics(metrics),
	)

	rec, err := m.Open(context.Background(), timer.OpenRequest{Name: "Essay", Subject: "English", Seconds: 90})
	require.NoError(t, err)
	require.NoError(t, m.StartSession(rec.ID))

	clock.Advance(30 * time.Second)
	got, ok := m.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, timer.PhaseRunning, got.Phase)
	assert.Equal(t, 60, got.RemainingSeconds)

	clock.Advance(time.Minute)
	got, ok = m.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, timer.PhaseCompleted, got.Phase)
	assert.Equal(t, timer.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(epoch.Add(90*time.Second)))
	assert.Zero(t, clock.Pending())

	assert.Equal(t, []timer.Kind{timer.KindFocus}, notifier.kinds())
	started, completed, _, active := metrics.snapshot()
	assert.Equal(t, 1, started["focus"])
	assert.Equal(t, 1, completed["focus"])
	assert.Zero(t, active)

	store, err := timer.NewStore(m.StorePath())
	require.NoError(t, err)
	persisted, err := store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, timer.StatusCompleted, persisted.Status)
	assert.Zero(t, persisted.RemainingSeconds)
}

func TestSessionManagerControlPersistsState(t *testing.T) {
	m, clock := newManager(t, timer.Config{})
	ctx := context.Background()

	rec, err := m.Open(ctx, timer.OpenRequest{Seconds: 600})
	require.NoError(t, err)

	assert.ErrorIs(t, m.PauseSession(rec.ID), timer.ErrInvalidTransition)

	require.NoError(t, m.StartSession(rec.ID))
	clock.Advance(100 * time.Second)
	require.NoError(t, m.PauseSession(rec.ID))
	require.NoError(t, m.AddTime(rec.ID, -200))

	store, err := timer.NewStore(m.StorePath())
	require.NoError(t, err)
	persisted, err := store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, timer.PhasePaused, persisted.Phase)
	assert.Equal(t, 300, persisted.RemainingSeconds)

	require.NoError(t, m.ResetSession(rec.ID, 120))
	persisted, err = store.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, timer.PhaseIdle, persisted.Phase)
	assert.Equal(t, 120, persisted.TotalSeconds)
	assert.Equal(t, 120, persisted.RemainingSeconds)

	require.NoError(t, m.StartSession(rec.ID))
	clock.Advance(20 * time.Second)
	require.NoError(t, m.StopSession(rec.ID))
	got, _ := m.Get(rec.ID)
	assert.Equal(t, timer.PhaseIdle, got.Phase)
	assert.Equal(t, 120, got.RemainingSeconds)
	assert.Zero(t, clock.Pending())
}

func TestSessionManagerAddTimeCompletesRunningSession(t *testing.T) {
	notifier := &recordingNotifier{}
	m, clock := newManager(t, timer.Config{}, timer.WithNotifier(notifier))

	rec, err := m.Open(context.Background(), timer.OpenRequest{Seconds: 300})
	require.NoError(t, err)
	require.NoError(t, m.StartSession(rec.ID))
	clock.Advance(10 * time.Second)

	require.NoError(t, m.AddTime(rec.ID, -1000))
	got, _ := m.Get(rec.ID)
	assert.Equal(t, timer.StatusCompleted, got.Status)
	assert.Len(t, notifier.kinds(), 1)

	// Restarting a completed session reactivates it.
	require.NoError(t, m.StartSession(rec.ID))
	got, _ = m.Get(rec.ID)
	assert.Equal(t, timer.StatusActive, got.Status)
	assert.Nil(t, got.CompletedAt)
	assert.Equal(t, 300, got.RemainingSeconds)
}

func TestSessionManagerUnknownSession(t *testing.T) {
	m, _ := newManager(t, timer.Config{})

	assert.ErrorIs(t, m.StartSession("ses-missing"), timer.ErrSessionNotFound)
	assert.ErrorIs(t, m.Cancel("ses-missing"), timer.ErrSessionNotFound)
	assert.ErrorIs(t, m.Delete("ses-missing"), timer.ErrSessionNotFound)
	_, err := m.Timer("ses-missing")
	assert.ErrorIs(t, err, timer.ErrSessionNotFound)
	_, ok := m.Get("ses-missing")
	assert.False(t, ok)
}

func TestSessionManagerMaxActive(t *testing.T) {
	metrics := newCountingMetrics()
	m, clock := newManager(t, timer.Config{MaxActive: 1}, timer.WithMetrics(metrics))
	ctx := context.Background()

	first, err := m.Open(ctx, timer.OpenRequest{Seconds: 60})
	require.NoError(t, err)
	require.NoError(t, m.StartSession(first.ID))

	_, err = m.Open(ctx, timer.OpenRequest{Seconds: 60})
	assert.ErrorIs(t, err, timer.ErrSessionLimit)

	require.NoError(t, m.Cancel(first.ID))
	clock.Advance(2 * time.Minute)

	got, _ := m.Get(first.ID)
	assert.Equal(t, timer.StatusCancelled, got.Status)
	assert.Equal(t, timer.PhasePaused, got.Phase)
	assert.Equal(t, 60, got.RemainingSeconds)
	assert.ErrorIs(t, m.StartSession(first.ID), timer.ErrInvalidTransition)
	assert.ErrorIs(t, m.Cancel(first.ID), timer.ErrInvalidTransition)

	_, err = m.Open(ctx, timer.OpenRequest{Seconds: 60})
	assert.NoError(t, err)

	_, _, cancelled, active := metrics.snapshot()
	assert.Equal(t, 1, cancelled["focus"])
	assert.Equal(t, 1, active)
}

func TestSessionManagerAutoStartBreak(t *testing.T) {
	notifier := &recordingNotifier{}
	m, clock := newManager(t, timer.Config{
		Enabled:           true,
		AutoStartBreak:    true,
		LongBreakEvery:    2,
		ShortBreakSeconds: 30,
		LongBreakSeconds:  45,
	}, timer.WithNotifier(notifier))
	require.NoError(t, m.Start(context.Background()))
	ctx := context.Background()

	runFocus := func() {
		rec, err := m.Open(ctx, timer.OpenRequest{Subject: "Chemistry", Seconds: 60})
		require.NoError(t, err)
		require.NoError(t, m.StartSession(rec.ID))
		clock.Advance(time.Minute)
	}

	runFocus()
	list := m.List()
	require.Len(t, list, 2)
	brk := list[1]
	assert.Equal(t, timer.KindShortBreak, brk.Kind)
	assert.Equal(t, timer.PhaseRunning, brk.Phase)
	assert.Equal(t, 30, brk.TotalSeconds)
	assert.Equal(t, "Chemistry", brk.Subject)

	clock.Advance(30 * time.Second)
	runFocus()
	list = m.List()
	require.Len(t, list, 4)
	assert.Equal(t, timer.KindLongBreak, list[3].Kind)
	assert.Equal(t, 45, list[3].TotalSeconds)

	clock.Advance(45 * time.Second)
	assert.Equal(t, []timer.Kind{
		timer.KindFocus, timer.KindShortBreak, timer.KindFocus, timer.KindLongBreak,
	}, notifier.kinds())
	assert.Zero(t, clock.Pending())
}

func TestSessionManagerLongBreakCycleSurvivesRestart(t *testing.T) {
	cfg := timer.Config{
		Enabled:           true,
		StorePath:         t.TempDir(),
		AutoStartBreak:    true,
		LongBreakEvery:    2,
		ShortBreakSeconds: 30,
		LongBreakSeconds:  45,
	}
	ctx := context.Background()

	focusThenBreak := func(start time.Time) timer.Kind {
		clock := timertest.NewFakeClock(start)
		m, err := timer.NewSessionManager(cfg, nil, timer.WithManagerClock(clock))
		require.NoError(t, err)
		defer m.Stop()
		require.NoError(t, m.Start(ctx))

		rec, err := m.Open(ctx, timer.OpenRequest{Subject: "Physics", Seconds: 60})
		require.NoError(t, err)
		require.NoError(t, m.StartSession(rec.ID))
		clock.Advance(time.Minute)

		var brk timer.Record
		for _, r := range m.List() {
			if r.Kind.IsBreak() && r.CreatedAt.After(rec.CreatedAt) {
				brk = r
			}
		}
		require.NotEmpty(t, brk.ID, "no break opened after %s", rec.ID)
		clock.Advance(time.Duration(brk.TotalSeconds) * time.Second)
		return brk.Kind
	}

	assert.Equal(t, timer.KindShortBreak, focusThenBreak(epoch))
	assert.Equal(t, timer.KindLongBreak, focusThenBreak(epoch.Add(time.Hour)))
	assert.Equal(t, timer.KindShortBreak, focusThenBreak(epoch.Add(2*time.Hour)))
}

func TestSessionManagerStopAndRecover(t *testing.T) {
	dir := t.TempDir()
	first, clock := newManager(t, timer.Config{Enabled: true, StorePath: dir})
	require.NoError(t, first.Start(context.Background()))

	rec, err := first.Open(context.Background(), timer.OpenRequest{Seconds: 1500})
	require.NoError(t, err)
	require.NoError(t, first.StartSession(rec.ID))
	clock.Advance(10 * time.Second)

	first.Stop()
	first.Stop()
	<-first.Done()
	assert.Zero(t, clock.Pending())

	second, _ := newManager(t, timer.Config{Enabled: true, StorePath: dir})
	require.NoError(t, second.Start(context.Background()))

	got, ok := second.Get(rec.ID)
	require.True(t, ok)
	assert.Equal(t, timer.PhasePaused, got.Phase)
	assert.Equal(t, 1490, got.RemainingSeconds)
	require.NoError(t, second.ResumeSession(rec.ID))
}

func TestSessionManagerRecoverRunning(t *testing.T) {
	dir := t.TempDir()
	store, err := timer.NewStore(dir)
	require.NoError(t, err)

	running := sampleRecord("ses-running", epoch)
	running.Phase = timer.PhaseRunning
	require.NoError(t, store.Save(running))

	paused, _ := newManager(t, timer.Config{Enabled: true, StorePath: dir})
	require.NoError(t, paused.Start(context.Background()))
	got, ok := paused.Get("ses-running")
	require.True(t, ok)
	assert.Equal(t, timer.PhasePaused, got.Phase)
	persisted, err := store.Get("ses-running")
	require.NoError(t, err)
	assert.Equal(t, timer.PhasePaused, persisted.Phase)
	paused.Stop()

	require.NoError(t, store.Save(running))
	resumed, clock := newManager(t, timer.Config{Enabled: true, StorePath: dir, RecoverRunning: true})
	require.NoError(t, resumed.Start(context.Background()))
	got, _ = resumed.Get("ses-running")
	assert.Equal(t, timer.PhaseRunning, got.Phase)
	assert.Equal(t, 1200, got.RemainingSeconds)

	clock.Advance(5 * time.Second)
	got, _ = resumed.Get("ses-running")
	assert.Equal(t, 1195, got.RemainingSeconds)
}

func TestSessionManagerStopsOnContextCancel(t *testing.T) {
	m, _ := newManager(t, timer.Config{Enabled: true})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.Start(ctx))

	cancel()
	select {
	case <-m.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop after context cancellation")
	}
}

func TestSessionManagerDisabledSkipsRecovery(t *testing.T) {
	dir := t.TempDir()
	store, err := timer.NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save(sampleRecord("ses-old", epoch)))

	m, _ := newManager(t, timer.Config{StorePath: dir})
	require.NoError(t, m.Start(context.Background()))
	assert.Empty(t, m.List())
}

func TestSessionManagerDelete(t *testing.T) {
	m, clock := newManager(t, timer.Config{})
	rec, err := m.Open(context.Background(), timer.OpenRequest{Seconds: 60})
	require.NoError(t, err)
	require.NoError(t, m.StartSession(rec.ID))

	require.NoError(t, m.Delete(rec.ID))
	assert.Zero(t, clock.Pending())
	assert.Empty(t, m.List())

	store, err := timer.NewStore(m.StorePath())
	require.NoError(t, err)
	records, err := store.LoadAll()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSessionManagerPlans(t *testing.T) {
	dir := t.TempDir()
	m, clock := newManager(t, timer.Config{Enabled: true, StorePath: dir})
	require.NoError(t, m.Start(context.Background()))

	bad := &timer.Plan{Name: "Broken", Schedule: "whenever", DurationSeconds: 60}
	assert.Error(t, m.AddPlan(bad))

	plan := &timer.Plan{Name: "Flashcards", Subject: "Biology", Schedule: "0 0 1 1 *", DurationSeconds: 120}
	require.NoError(t, m.AddPlan(plan))
	assert.Contains(t, plan.ID, "plan-")
	assert.Equal(t, timer.KindFocus, plan.Kind)

	plans := m.Plans()
	require.Len(t, plans, 1)
	assert.Equal(t, "Flashcards", plans[0].Name)

	rec, err := m.RunPlan(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, rec.PlanID)
	assert.Equal(t, "Flashcards", rec.Name)
	assert.Equal(t, "Biology", rec.Subject)
	assert.Equal(t, timer.PhaseRunning, rec.Phase)

	clock.Advance(2 * time.Minute)
	got, _ := m.Get(rec.ID)
	assert.Equal(t, timer.StatusCompleted, got.Status)

	// Plans survive a restart.
	m.Stop()
	reloaded, _ := newManager(t, timer.Config{Enabled: true, StorePath: dir})
	require.NoError(t, reloaded.Start(context.Background()))
	require.Len(t, reloaded.Plans(), 1)

	require.NoError(t, reloaded.RemovePlan(plan.ID))
	assert.ErrorIs(t, reloaded.RemovePlan(plan.ID), timer.ErrPlanNotFound)
	_, err = reloaded.RunPlan(context.Background(), plan.ID)
	assert.ErrorIs(t, err, timer.ErrPlanNotFound)
	assert.Empty(t, reloaded.Plans())
}

func TestSessionManagerTracesSessions(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	m, clock := newManager(t, timer.Config{}, timer.WithTracer(provider.Tracer("test")))
	ctx := context.Background()

	done, err := m.Open(ctx, timer.OpenRequest{Subject: "History", Seconds: 5})
	require.NoError(t, err)
	require.NoError(t, m.StartSession(done.ID))
	clock.Advance(5 * time.Second)

	dropped, err := m.Open(ctx, timer.OpenRequest{Kind: timer.KindShortBreak})
	require.NoError(t, err)
	require.NoError(t, m.Cancel(dropped.ID))

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	bySession := make(map[string]map[string]string)
	for _, span := range spans {
		assert.Equal(t, observability.SpanStudySession, span.Name())
		attrs := make(map[string]string)
		for _, kv := range span.Attributes() {
			attrs[string(kv.Key)] = kv.Value.Emit()
		}
		bySession[attrs[observability.AttrSessionID]] = attrs
	}
	require.Contains(t, bySession, done.ID)
	require.Contains(t, bySession, dropped.ID)
	assert.Equal(t, observability.OutcomeCompleted, bySession[done.ID][observability.AttrOutcome])
	assert.Equal(t, "History", bySession[done.ID][observability.AttrSubject])
	assert.Equal(t, "focus", bySession[done.ID][observability.AttrKind])
	assert.Equal(t, "5", bySession[done.ID][observability.AttrDuration])
	assert.Equal(t, observability.OutcomeCancelled, bySession[dropped.ID][observability.AttrOutcome])
	assert.NotContains(t, bySession[dropped.ID], observability.AttrSubject)
}

func TestSessionManagerConcurrentControl(t *testing.T) {
	m, clock := newManager(t, timer.Config{})
	rec, err := m.Open(context.Background(), timer.OpenRequest{Seconds: 3600})
	require.NoError(t, err)
	require.NoError(t, m.StartSession(rec.ID))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				switch (i + j) % 4 {
				case 0:
					_ = m.PauseSession(rec.ID)
				case 1:
					_ = m.ResumeSession(rec.ID)
				case 2:
					_ = m.AddTime(rec.ID, 5)
				default:
					_ = m.List()
				}
			}
		}(i)
	}
	for i := 0; i < 20; i++ {
		clock.Advance(time.Second)
	}
	wg.Wait()

	got, ok := m.Get(rec.ID)
	require.True(t, ok)
	assert.GreaterOrEqual(t, got.RemainingSeconds, 0)
	assert.LessOrEqual(t, got.RemainingSeconds, got.TotalSeconds)
}
