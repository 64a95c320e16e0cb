package main

// ExitCodeError wraps an error with a specific process exit code.
//
// Most commands return plain errors and exit with code 1. ExitCodeError is
// used where scripts need to tell "nothing to do" apart from a failure, such
// as `sessions show` on an unknown ID.
type ExitCodeError struct {
	Code int
	Err  error
}

func (e *ExitCodeError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitCodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
