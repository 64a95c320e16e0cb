package id

import "context"

type contextKey string

const (
	sessionKey contextKey = "focusvault_session_id"
	planKey    contextKey = "focusvault_plan_id"
)

// WithSessionID stores the provided session identifier on the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sessionID)
}

// SessionIDFromContext extracts the session identifier from context.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if sessionID, ok := ctx.Value(sessionKey).(string); ok {
		return sessionID
	}
	return ""
}

// WithPlanID stores the plan that opened a session on the context.
func WithPlanID(ctx context.Context, planID string) context.Context {
	if planID == "" {
		return ctx
	}
	return context.WithValue(ctx, planKey, planID)
}

// PlanIDFromContext extracts the plan identifier from context.
func PlanIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if planID, ok := ctx.Value(planKey).(string); ok {
		return planID
	}
	return ""
}
