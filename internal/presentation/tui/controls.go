package tui

import (
	"focusvault/internal/shared/timer"
)

// Controls is the set of timer operations the reading screen drives.
type Controls interface {
	Snapshot() timer.Snapshot
	Start() error
	Pause() error
	Resume() error
	Stop() error
	Reset() error
	AddTime(delta int) error
}

// TimerControls drives a bare StudyTimer.
func TimerControls(t *timer.StudyTimer) Controls {
	return timerControls{t: t}
}

type timerControls struct {
	t *timer.StudyTimer
}

func (c timerControls) Snapshot() timer.Snapshot { return c.t.Snapshot() }
func (c timerControls) Start() error             { return c.t.Start() }
func (c timerControls) Pause() error             { return c.t.Pause() }
func (c timerControls) Resume() error            { return c.t.Resume() }
func (c timerControls) Stop() error              { return c.t.Stop() }

func (c timerControls) Reset() error {
	c.t.Reset()
	return nil
}

func (c timerControls) AddTime(delta int) error {
	c.t.AddTime(delta)
	return nil
}

// SessionControls drives a managed session so that every change is persisted
// by the manager.
func SessionControls(manager *timer.SessionManager, sessionID string) (Controls, error) {
	t, err := manager.Timer(sessionID)
	if err != nil {
		return nil, err
	}
	return sessionControls{manager: manager, id: sessionID, t: t}, nil
}

type sessionControls struct {
	manager *timer.SessionManager
	id      string
	t       *timer.StudyTimer
}

func (c sessionControls) Snapshot() timer.Snapshot { return c.t.Snapshot() }
func (c sessionControls) Start() error             { return c.manager.StartSession(c.id) }
func (c sessionControls) Pause() error             { return c.manager.PauseSession(c.id) }
func (c sessionControls) Resume() error            { return c.manager.ResumeSession(c.id) }
func (c sessionControls) Stop() error              { return c.manager.StopSession(c.id) }
func (c sessionControls) Reset() error             { return c.manager.ResetSession(c.id, 0) }
func (c sessionControls) AddTime(delta int) error  { return c.manager.AddTime(c.id, delta) }

// Watch forwards every tick and completion of t to the returned channel.
// Sends never block the timer: when the reader lags, intermediate
// snapshots are dropped and the screen catches up on the next read.
func Watch(t *timer.StudyTimer) <-chan timer.Snapshot {
	updates := make(chan timer.Snapshot, 1)
	push := func(snap timer.Snapshot) {
		select {
		case updates <- snap:
		default:
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- snap:
			default:
			}
		}
	}
	t.OnTick(push)
	t.OnComplete(func() { push(t.Snapshot()) })
	return updates
}
