package timer

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDuration is returned when a timer is created or reset with a
	// non-positive number of seconds.
	ErrInvalidDuration = errors.New("timer duration must be positive")

	// ErrInvalidTransition is returned when a control operation is called
	// from a phase that does not permit it. The timer state is left untouched.
	ErrInvalidTransition = errors.New("invalid timer transition")
)

func invalidDuration(seconds int) error {
	return fmt.Errorf("%w: got %d", ErrInvalidDuration, seconds)
}

func invalidTransition(op string, from Phase) error {
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, op, from)
}
