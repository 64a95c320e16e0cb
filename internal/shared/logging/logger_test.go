package logging

import (
	"bytes"
	"strings"
	"testing"

	"focusvault/internal/observability"
	"focusvault/internal/shared/utils"
)

func TestOrNopHandlesTypedNilPointers(t *testing.T) {
	var legacy *utils.Logger
	var logger Logger = legacy
	if !IsNil(logger) {
		t.Fatalf("expected typed nil pointer to be detected")
	}
	safe := OrNop(logger)
	if IsNil(safe) {
		t.Fatalf("expected OrNop to return a usable logger")
	}
	safe.Info("hello %s", "world") // should not panic
}

func TestFromObservabilityFormatsMessages(t *testing.T) {
	buf := &bytes.Buffer{}
	base := observability.NewLogger(observability.LogConfig{
		Level:  "info",
		Format: "text",
		Output: buf,
	})

	logger := FromObservabilityWithComponent(base, "timer")
	logger.Info("completed %s", "ses-1")

	out := buf.String()
	if !strings.Contains(out, "completed ses-1") {
		t.Fatalf("expected formatted message in output, got %q", out)
	}
	if !strings.Contains(out, "component=timer") {
		t.Fatalf("expected component attribute in output, got %q", out)
	}
}

func TestMultiFansOutAndFlattens(t *testing.T) {
	a, b := &bytes.Buffer{}, &bytes.Buffer{}
	la := utils.NewWriterLogger(a, utils.DEBUG, "a")
	lb := utils.NewWriterLogger(b, utils.DEBUG, "b")

	inner := Multi(la, nil)
	if inner != Logger(la) {
		t.Fatalf("expected single logger to be returned unwrapped")
	}

	combined := Multi(Multi(la, lb), Nop())
	ml, ok := combined.(*multiLogger)
	if !ok || len(ml.loggers) != 3 {
		t.Fatalf("expected flattened multi logger with 3 entries, got %#v", combined)
	}

	combined.Warn("tick %d", 3)
	if !strings.Contains(a.String(), "tick 3") || !strings.Contains(b.String(), "tick 3") {
		t.Fatalf("expected both sinks to receive the line: %q / %q", a.String(), b.String())
	}

	if _, ok := Multi().(nopLogger); !ok {
		t.Fatalf("expected Nop for empty Multi")
	}
}

func TestWithPrefix(t *testing.T) {
	buf := &bytes.Buffer{}
	base := utils.NewWriterLogger(buf, utils.DEBUG, "manager")

	WithPrefix(base, "ses-42").Info("paused at %ds", 90)
	if !strings.Contains(buf.String(), "ses-42: paused at 90s") {
		t.Fatalf("expected prefixed message, got %q", buf.String())
	}

	if WithPrefix(base, "") != Logger(base) {
		t.Fatalf("expected empty prefix to return the logger unchanged")
	}
	if _, ok := WithPrefix(nil, "x").(nopLogger); !ok {
		t.Fatalf("expected Nop for nil logger")
	}
}
