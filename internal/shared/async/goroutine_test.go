package async_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusvault/internal/shared/async"
)

// panicLog forwards every Error call so tests can wait on it.
type panicLog chan string

func (l panicLog) Error(format string, args ...any) {
	l <- fmt.Sprintf(format, args...)
}

func TestGoLogsPanicWithNameAndStack(t *testing.T) {
	log := make(panicLog, 1)

	async.Go(log, "session-manager-watch", func() {
		var sessions map[string]int
		sessions["ses-1"]++
	})

	select {
	case msg := <-log:
		assert.Contains(t, msg, "goroutine panic [session-manager-watch]")
		assert.Contains(t, msg, "assignment to entry in nil map")
		assert.Contains(t, msg, "goroutine_test.go")
	case <-time.After(2 * time.Second):
		t.Fatal("panic was not logged")
	}
}

func TestGoRunsFunctionToCompletion(t *testing.T) {
	log := make(panicLog, 1)
	done := make(chan int, 1)

	async.Go(log, "flush-metrics", func() {
		done <- 42
	})

	require.Equal(t, 42, <-done)
	assert.Empty(t, log)
}

func TestRecoverIgnoresNormalReturn(t *testing.T) {
	log := make(panicLog, 1)

	func() {
		defer async.Recover(log, "notify")
	}()

	assert.Empty(t, log)
}

func TestRecoverSwallowsPanicWithoutLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		defer async.Recover(nil, "notify")
		panic("notification channel closed")
	})
}
