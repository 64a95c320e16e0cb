package timer

import "fmt"

// Phase is the discrete state of a StudyTimer.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseRunning   Phase = "running"
	PhasePaused    Phase = "paused"
	PhaseCompleted Phase = "completed"
)

// IsValid reports whether p is one of the known phases.
func (p Phase) IsValid() bool {
	switch p {
	case PhaseIdle, PhaseRunning, PhasePaused, PhaseCompleted:
		return true
	default:
		return false
	}
}

// ParsePhase converts a persisted phase name back into a Phase.
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.IsValid() {
		return "", fmt.Errorf("unknown timer phase %q", s)
	}
	return p, nil
}
