package timer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"focusvault/internal/observability"
	"focusvault/internal/shared/async"
	"focusvault/internal/shared/logging"
	id "focusvault/internal/shared/utils/id"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionLimit    = errors.New("maximum active session limit reached")
	ErrPlanNotFound    = errors.New("plan not found")
)

// Notifier announces finished sessions to the user.
type Notifier interface {
	NotifyComplete(ctx context.Context, record Record) error
}

// Metrics receives session lifecycle counters.
type Metrics interface {
	RecordSessionStarted(ctx context.Context, kind string)
	RecordSessionCompleted(ctx context.Context, kind string, seconds int)
	RecordSessionCancelled(ctx context.Context, kind string)
	IncrementActiveSessions(ctx context.Context)
	DecrementActiveSessions(ctx context.Context)
}

type nopMetrics struct{}

func (nopMetrics) RecordSessionStarted(context.Context, string)        {}
func (nopMetrics) RecordSessionCompleted(context.Context, string, int) {}
func (nopMetrics) RecordSessionCancelled(context.Context, string)      {}
func (nopMetrics) IncrementActiveSessions(context.Context)             {}
func (nopMetrics) DecrementActiveSessions(context.Context)             {}

// Config holds SessionManager runtime configuration.
type Config struct {
	Enabled   bool
	StorePath string
	// MaxActive caps sessions in the active status; zero means unlimited.
	MaxActive int
	// AutoStartBreak opens and starts a break whenever a focus session completes.
	AutoStartBreak bool
	// LongBreakEvery selects a long break once n focus sessions have
	// completed since the last long break. Counted from stored history, so
	// the cycle survives restarts. Zero falls back to 4.
	LongBreakEvery    int
	ShortBreakSeconds int
	LongBreakSeconds  int
	// RecoverRunning resumes sessions that were running when the previous
	// process exited. They are always restored as paused first.
	RecoverRunning bool
}

// OpenRequest describes a new session.
type OpenRequest struct {
	Name    string
	Subject string
	Kind    Kind
	// Seconds defaults to the preset for Kind when zero.
	Seconds int
	PlanID  string
}

// ManagerOption configures optional collaborators of a SessionManager.
type ManagerOption func(*SessionManager)

// WithNotifier sets the completion notifier.
func WithNotifier(notifier Notifier) ManagerOption {
	return func(m *SessionManager) {
		m.notifier = notifier
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(metrics Metrics) ManagerOption {
	return func(m *SessionManager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// WithTracer sets the tracer used for session spans.
func WithTracer(tracer trace.Tracer) ManagerOption {
	return func(m *SessionManager) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

// WithManagerClock sets the clock shared by every timer the manager creates.
func WithManagerClock(clock Clock) ManagerOption {
	return func(m *SessionManager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

type session struct {
	record Record
	timer  *StudyTimer
	ctx    context.Context
	span   trace.Span
}

// SessionManager owns the live study sessions. It persists every state change,
// handles completion side effects and opens sessions for recurring plans.
type SessionManager struct {
	store    *Store
	config   Config
	logger   logging.Logger
	clock    Clock
	notifier Notifier
	metrics  Metrics
	tracer   trace.Tracer
	cron     *cron.Cron

	mu       sync.Mutex
	sessions map[string]*session
	plans    map[string]Plan
	cronIDs  map[string]cron.EntryID
	running  bool
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(cfg Config, logger logging.Logger, opts ...ManagerOption) (*SessionManager, error) {
	logger = logging.OrNop(logger)

	store, err := NewStore(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}
	if cfg.LongBreakEvery <= 0 {
		cfg.LongBreakEvery = 4
	}
	if cfg.ShortBreakSeconds <= 0 {
		cfg.ShortBreakSeconds = ShortBreakSeconds
	}
	if cfg.LongBreakSeconds <= 0 {
		cfg.LongBreakSeconds = LongBreakSeconds
	}

	m := &SessionManager{
		store:    store,
		config:   cfg,
		logger:   logger,
		clock:    SystemClock,
		metrics:  nopMetrics{},
		tracer:   noop.NewTracerProvider().Tracer("focusvault"),
		sessions: make(map[string]*session),
		plans:    make(map[string]Plan),
		cronIDs:  make(map[string]cron.EntryID),
		stopped:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.cron = cron.New(
		cron.WithParser(planParser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	return m, nil
}

// Start loads persisted sessions and plans, registers plans with cron and
// stops the manager when ctx is cancelled.
func (m *SessionManager) Start(ctx context.Context) error {
	if !m.config.Enabled {
		m.logger.Info("SessionManager disabled by config")
		return nil
	}

	records, err := m.store.LoadAll()
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	plans, err := m.store.LoadPlans()
	if err != nil {
		return fmt.Errorf("load plans: %w", err)
	}

	var resume []string
	m.mu.Lock()
	for i := range records {
		r := records[i]
		if r.Phase == PhaseRunning {
			resume = append(resume, r.ID)
		}
		if _, err := m.adoptLocked(ctx, r); err != nil {
			m.logger.Warn("SessionManager: skipping session %s: %v", r.ID, err)
		}
	}
	for _, p := range plans {
		m.plans[p.ID] = p
		if err := m.schedulePlanLocked(p); err != nil {
			m.logger.Warn("SessionManager: failed to schedule plan %q: %v", p.Name, err)
		}
	}
	m.running = true
	active := m.activeCountLocked()
	m.mu.Unlock()

	m.cron.Start()

	for _, sessionID := range resume {
		if !m.config.RecoverRunning {
			m.persist(sessionID)
			continue
		}
		if err := m.ResumeSession(sessionID); err != nil {
			m.logger.Warn("SessionManager: failed to resume recovered session %s: %v", sessionID, err)
		}
	}

	m.logger.Info("SessionManager started with %d active sessions and %d plans (recovered at %s)",
		active, len(plans), m.clock.Now().Format(time.RFC3339))

	async.Go(m.logger, "session-manager-watch", func() {
		select {
		case <-ctx.Done():
			m.Stop()
		case <-m.stopped:
		}
	})

	return nil
}

// Stop pauses running sessions, persists them and halts cron. Safe to call
// multiple times.
func (m *SessionManager) Stop() {
	m.stopOnce.Do(func() {
		m.logger.Info("SessionManager stopping...")

		m.mu.Lock()
		live := make([]string, 0, len(m.sessions))
		timers := make([]*StudyTimer, 0, len(m.sessions))
		for sessionID, s := range m.sessions {
			if s.timer != nil {
				live = append(live, sessionID)
				timers = append(timers, s.timer)
			}
		}
		m.running = false
		m.mu.Unlock()

		for i, sessionID := range live {
			if timers[i].Phase() == PhaseRunning {
				_ = timers[i].Pause()
			}
			m.persist(sessionID)
		}

		m.mu.Lock()
		for _, s := range m.sessions {
			if s.record.IsActive() {
				endSpan(s, observability.OutcomeSuspended, nil)
			}
		}
		m.mu.Unlock()

		stopCtx := m.cron.Stop()
		<-stopCtx.Done()

		close(m.stopped)
		m.logger.Info("SessionManager stopped")
	})
}

// StorePath returns the directory holding session and plan files.
func (m *SessionManager) StorePath() string {
	return m.store.Dir()
}

// Done returns a channel that is closed when the manager has fully stopped.
func (m *SessionManager) Done() <-chan struct{} {
	return m.stopped
}

// Open validates req, persists a new idle session and returns its record.
func (m *SessionManager) Open(ctx context.Context, req OpenRequest) (Record, error) {
	kind := req.Kind
	if kind == "" {
		kind = KindFocus
	}
	if !kind.IsValid() {
		return Record{}, fmt.Errorf("unknown session kind %q", kind)
	}
	seconds := req.Seconds
	if seconds == 0 {
		seconds = kind.DefaultSeconds()
	}
	if seconds < 0 {
		return Record{}, invalidDuration(seconds)
	}
	name := req.Name
	if name == "" {
		name = kind.Label()
	}

	now := m.clock.Now()
	record := Record{
		ID:               NewSessionID(),
		Name:             name,
		Subject:          req.Subject,
		Kind:             kind,
		TotalSeconds:     seconds,
		RemainingSeconds: seconds,
		Phase:            PhaseIdle,
		PlanID:           req.PlanID,
		CreatedAt:        now,
		UpdatedAt:        now,
		Status:           StatusActive,
	}
	if err := record.Validate(); err != nil {
		return Record{}, fmt.Errorf("invalid session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.MaxActive > 0 && m.activeCountLocked() >= m.config.MaxActive {
		return Record{}, fmt.Errorf("%w (%d)", ErrSessionLimit, m.config.MaxActive)
	}

	// Persist first so a crash between persist and adopt loses nothing.
	if err := m.store.Save(record); err != nil {
		return Record{}, fmt.Errorf("persist session: %w", err)
	}
	s, err := m.adoptLocked(ctx, record)
	if err != nil {
		return Record{}, err
	}

	m.logger.Info("SessionManager: opened %s session %q (%s, %ds)", kind, name, record.ID, seconds)
	return s.record, nil
}

// StartSession starts an idle or completed session.
func (m *SessionManager) StartSession(sessionID string) error {
	t, err := m.live(sessionID)
	if err != nil {
		return err
	}
	if err := t.Start(); err != nil {
		return err
	}
	ctx, kind := m.persist(sessionID)
	m.metrics.RecordSessionStarted(ctx, string(kind))
	return nil
}

// PauseSession pauses a running session.
func (m *SessionManager) PauseSession(sessionID string) error {
	return m.control(sessionID, (*StudyTimer).Pause)
}

// ResumeSession resumes a paused session.
func (m *SessionManager) ResumeSession(sessionID string) error {
	return m.control(sessionID, (*StudyTimer).Resume)
}

// StopSession halts a session and rewinds it to its total.
func (m *SessionManager) StopSession(sessionID string) error {
	return m.control(sessionID, (*StudyTimer).Stop)
}

// ResetSession rewinds a session. A positive seconds replaces its total.
func (m *SessionManager) ResetSession(sessionID string, seconds int) error {
	return m.control(sessionID, func(t *StudyTimer) error {
		if seconds == 0 {
			t.Reset()
			return nil
		}
		return t.ResetTo(seconds)
	})
}

// AddTime shifts the remaining time of a session by delta seconds.
func (m *SessionManager) AddTime(sessionID string, delta int) error {
	return m.control(sessionID, func(t *StudyTimer) error {
		t.AddTime(delta)
		return nil
	})
}

// Cancel halts a session and marks it cancelled.
func (m *SessionManager) Cancel(sessionID string) error {
	t, err := m.live(sessionID)
	if err != nil {
		return err
	}
	if t.Phase() == PhaseRunning {
		_ = t.Pause()
	}

	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok || s.timer != t || !s.record.IsActive() {
		m.mu.Unlock()
		return fmt.Errorf("%w: session %s is no longer active", ErrInvalidTransition, sessionID)
	}
	s.record.apply(t.Snapshot(), m.clock.Now())
	s.record.Status = StatusCancelled
	record := s.record
	ctx := s.ctx
	s.timer = nil
	endSpan(s, observability.OutcomeCancelled, nil)
	if err := m.store.Save(record); err != nil {
		m.logger.Warn("SessionManager: failed to persist cancellation for %s: %v", sessionID, err)
	}
	m.mu.Unlock()

	m.metrics.RecordSessionCancelled(ctx, string(record.Kind))
	m.metrics.DecrementActiveSessions(ctx)
	m.logger.Info("SessionManager: cancelled session %q (%s)", record.Name, sessionID)
	return nil
}

// Delete removes a session from memory and disk.
func (m *SessionManager) Delete(sessionID string) error {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	delete(m.sessions, sessionID)
	t := s.timer
	ctx := s.ctx
	wasActive := s.record.IsActive()
	if wasActive {
		endSpan(s, observability.OutcomeDeleted, nil)
	}
	m.mu.Unlock()

	if t != nil {
		t.Reset()
	}
	if wasActive {
		m.metrics.DecrementActiveSessions(ctx)
	}
	if err := m.store.Delete(sessionID); err != nil {
		return err
	}
	m.logger.Info("SessionManager: deleted session %s", sessionID)
	return nil
}

// Timer returns the live countdown of a session so callers can observe ticks.
func (m *SessionManager) Timer(sessionID string) (*StudyTimer, error) {
	return m.live(sessionID)
}

// List returns all session records, oldest first. The timer state of live
// sessions is read at call time.
func (m *SessionManager) List() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]Record, 0, len(m.sessions))
	for _, s := range m.sessions {
		result = append(result, m.currentLocked(s))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Get returns a single session record by ID.
func (m *SessionManager) Get(sessionID string) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return Record{}, false
	}
	return m.currentLocked(s), true
}

// AddPlan validates, persists and schedules a recurring plan. A missing ID
// or creation time is filled in.
func (m *SessionManager) AddPlan(p *Plan) error {
	if p.ID == "" {
		p.ID = NewPlanID()
	}
	if p.Kind == "" {
		p.Kind = KindFocus
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.clock.Now()
	}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.SavePlan(*p); err != nil {
		return fmt.Errorf("persist plan: %w", err)
	}
	m.plans[p.ID] = *p
	if m.running {
		if err := m.schedulePlanLocked(*p); err != nil {
			return fmt.Errorf("schedule plan: %w", err)
		}
	}

	m.logger.Info("SessionManager: added plan %q (%s) on %q", p.Name, p.ID, p.Schedule)
	return nil
}

// RemovePlan unschedules and deletes a plan.
func (m *SessionManager) RemovePlan(planID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.plans[planID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	if entryID, ok := m.cronIDs[planID]; ok {
		m.cron.Remove(entryID)
		delete(m.cronIDs, planID)
	}
	delete(m.plans, planID)
	if err := m.store.DeletePlan(planID); err != nil {
		return err
	}

	m.logger.Info("SessionManager: removed plan %q (%s)", p.Name, planID)
	return nil
}

// Plans returns all plans, oldest first.
func (m *SessionManager) Plans() []Plan {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]Plan, 0, len(m.plans))
	for _, p := range m.plans {
		result = append(result, p)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// RunPlan opens and starts a session for a plan immediately.
func (m *SessionManager) RunPlan(ctx context.Context, planID string) (Record, error) {
	m.mu.Lock()
	p, ok := m.plans[planID]
	m.mu.Unlock()
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrPlanNotFound, planID)
	}
	return m.firePlan(ctx, p)
}

func (m *SessionManager) firePlan(ctx context.Context, p Plan) (Record, error) {
	ctx = id.WithPlanID(ctx, p.ID)
	m.logger.Info("SessionManager: firing plan %q (%s)", p.Name, p.ID)

	record, err := m.Open(ctx, p.openRequest())
	if err != nil {
		return Record{}, err
	}
	if err := m.StartSession(record.ID); err != nil {
		return Record{}, err
	}
	current, _ := m.Get(record.ID)
	return current, nil
}

// schedulePlanLocked registers a plan with the cron engine.
// Must be called with m.mu held.
func (m *SessionManager) schedulePlanLocked(p Plan) error {
	plan := p
	entryID, err := m.cron.AddFunc(p.Schedule, func() {
		if _, err := m.firePlan(context.Background(), plan); err != nil {
			m.logger.Warn("SessionManager: plan %q failed to open a session: %v", plan.Name, err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression for %q: %w", p.Name, err)
	}
	m.cronIDs[p.ID] = entryID
	return nil
}

// adoptLocked builds the live state for a record. Cancelled records carry
// no timer. Must be called with m.mu held.
func (m *SessionManager) adoptLocked(ctx context.Context, r Record) (*session, error) {
	s := &session{record: r, ctx: id.WithSessionID(context.WithoutCancel(ctx), r.ID)}
	if r.PlanID != "" {
		s.ctx = id.WithPlanID(s.ctx, r.PlanID)
	}
	if r.Status != StatusCancelled {
		t, err := Restore(r.Snapshot(),
			WithClock(m.clock),
			WithLogger(logging.WithPrefix(m.logger, r.ID)),
		)
		if err != nil {
			return nil, fmt.Errorf("restore session %s: %w", r.ID, err)
		}
		sessionID := r.ID
		t.OnComplete(func() {
			m.handleComplete(sessionID)
		})
		s.timer = t
		s.record.Phase = t.Phase()
	}
	if r.IsActive() {
		s.ctx, s.span = m.startSpan(s.ctx, r)
		m.metrics.IncrementActiveSessions(s.ctx)
	}
	m.sessions[r.ID] = s
	return s, nil
}

// startSpan expects ctx to carry the session and plan IDs.
func (m *SessionManager) startSpan(ctx context.Context, r Record) (context.Context, trace.Span) {
	return observability.StartSpan(ctx, m.tracer, observability.SpanStudySession,
		observability.SessionAttrs(string(r.Kind), r.Subject, r.TotalSeconds)...)
}

func endSpan(s *session, outcome string, err error) {
	if s.span == nil {
		return
	}
	s.span.SetAttributes(attribute.String(observability.AttrOutcome, outcome))
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
	s.span = nil
}

// live returns the countdown of a session that has not been cancelled.
func (m *SessionManager) live(sessionID string) (*StudyTimer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if s.timer == nil {
		return nil, fmt.Errorf("%w: session %s is %s", ErrInvalidTransition, sessionID, s.record.Status)
	}
	return s.timer, nil
}

// control runs op against a session's countdown outside the manager lock,
// since op may fire completion handlers, then persists the result.
func (m *SessionManager) control(sessionID string, op func(*StudyTimer) error) error {
	t, err := m.live(sessionID)
	if err != nil {
		return err
	}
	if err := op(t); err != nil {
		return err
	}
	m.persist(sessionID)
	return nil
}

// persist copies a session's countdown state into its record and saves it.
func (m *SessionManager) persist(sessionID string) (context.Context, Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || s.timer == nil {
		return context.Background(), ""
	}
	if s.record.apply(s.timer.Snapshot(), m.clock.Now()) {
		s.ctx, s.span = m.startSpan(s.ctx, s.record)
		m.metrics.IncrementActiveSessions(s.ctx)
	}
	if err := m.store.Save(s.record); err != nil {
		m.logger.Warn("SessionManager: failed to persist session %s: %v", sessionID, err)
	}
	return s.ctx, s.record.Kind
}

// currentLocked returns a record reflecting the live countdown.
// Must be called with m.mu held.
func (m *SessionManager) currentLocked(s *session) Record {
	r := s.record
	if s.timer != nil {
		snap := s.timer.Snapshot()
		r.TotalSeconds, r.RemainingSeconds, r.Phase = snap.Total, snap.Remaining, snap.Phase
	}
	return r
}

func (m *SessionManager) activeCountLocked() int {
	count := 0
	for _, s := range m.sessions {
		if s.record.IsActive() {
			count++
		}
	}
	return count
}

// handleComplete runs once per completion event of a session's countdown.
func (m *SessionManager) handleComplete(sessionID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if !ok || s.timer == nil {
		m.mu.Unlock()
		return
	}
	now := m.clock.Now()
	s.record.apply(s.timer.Snapshot(), now)
	s.record.Status = StatusCompleted
	s.record.CompletedAt = &now
	record := s.record
	ctx := s.ctx
	endSpan(s, observability.OutcomeCompleted, nil)
	if err := m.store.Save(record); err != nil {
		m.logger.Warn("SessionManager: failed to persist completion for %s: %v", sessionID, err)
	}

	nextBreak := Kind("")
	if record.Kind == KindFocus && m.config.AutoStartBreak && m.running {
		nextBreak = KindShortBreak
		if m.focusSinceLongBreakLocked() >= m.config.LongBreakEvery {
			nextBreak = KindLongBreak
		}
	}
	m.mu.Unlock()

	m.metrics.RecordSessionCompleted(ctx, string(record.Kind), record.TotalSeconds)
	m.metrics.DecrementActiveSessions(ctx)
	m.logger.Info("SessionManager: session %q (%s) completed", record.Name, sessionID)

	if m.notifier != nil {
		if err := m.notifier.NotifyComplete(ctx, record); err != nil {
			m.logger.Warn("SessionManager: notification failed for %q: %v", record.Name, err)
		}
	}

	if nextBreak != "" {
		m.startBreak(ctx, record, nextBreak)
	}
}

// focusSinceLongBreakLocked counts focus sessions completed after the most
// recent long break was opened.
func (m *SessionManager) focusSinceLongBreakLocked() int {
	var lastLong time.Time
	for _, s := range m.sessions {
		if s.record.Kind == KindLongBreak && s.record.CreatedAt.After(lastLong) {
			lastLong = s.record.CreatedAt
		}
	}
	count := 0
	for _, s := range m.sessions {
		r := s.record
		if r.Kind == KindFocus && r.Status == StatusCompleted && r.CompletedAt != nil && r.CompletedAt.After(lastLong) {
			count++
		}
	}
	return count
}

func (m *SessionManager) startBreak(ctx context.Context, after Record, kind Kind) {
	seconds := m.config.ShortBreakSeconds
	if kind == KindLongBreak {
		seconds = m.config.LongBreakSeconds
	}
	brk, err := m.Open(ctx, OpenRequest{Kind: kind, Seconds: seconds, Subject: after.Subject})
	if err != nil {
		m.logger.Warn("SessionManager: failed to open break after %s: %v", after.ID, err)
		return
	}
	if err := m.StartSession(brk.ID); err != nil {
		m.logger.Warn("SessionManager: failed to start break %s: %v", brk.ID, err)
	}
}
