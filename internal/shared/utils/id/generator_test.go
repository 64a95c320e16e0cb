package id

import (
	"context"
	"strings"
	"testing"
)

func TestNewSessionIDUsesPrefix(t *testing.T) {
	a := NewSessionID()
	b := NewSessionID()
	if !strings.HasPrefix(a, "ses-") {
		t.Fatalf("expected ses- prefix, got %q", a)
	}
	if a == b {
		t.Fatalf("expected unique identifiers, got %q twice", a)
	}
	if ntf := NewNotificationID(); !strings.HasPrefix(ntf, "ntf-") {
		t.Fatalf("expected ntf- prefix, got %q", ntf)
	}
	if plan := NewPlanID(); !strings.HasPrefix(plan, "plan-") {
		t.Fatalf("expected plan- prefix, got %q", plan)
	}
}

func TestUUIDv7Strategy(t *testing.T) {
	SetStrategy(StrategyUUIDv7)
	defer SetStrategy(StrategyKSUID)

	got := NewSessionID()
	body := strings.TrimPrefix(got, "ses-")
	if len(body) != 36 || body[14] != '7' {
		t.Fatalf("expected a version 7 uuid body, got %q", got)
	}
}

func TestParseStrategy(t *testing.T) {
	if s, err := ParseStrategy("uuidv7"); err != nil || s != StrategyUUIDv7 {
		t.Fatalf("ParseStrategy(uuidv7) = %v, %v", s, err)
	}
	if s, err := ParseStrategy(""); err != nil || s != StrategyKSUID {
		t.Fatalf("ParseStrategy(\"\") = %v, %v", s, err)
	}
	if _, err := ParseStrategy("snowflake"); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := WithPlanID(WithSessionID(context.Background(), "ses-1"), "plan-1")
	if got := SessionIDFromContext(ctx); got != "ses-1" {
		t.Fatalf("SessionIDFromContext = %q", got)
	}
	if got := PlanIDFromContext(ctx); got != "plan-1" {
		t.Fatalf("PlanIDFromContext = %q", got)
	}
	if got := SessionIDFromContext(WithSessionID(context.Background(), "")); got != "" {
		t.Fatalf("expected empty session id, got %q", got)
	}
}
