package identity

import (
	"context"
	"time"
)

// ActivityEventType enumerates the domain events the service publishes.
type ActivityEventType string

const (
	ActivityEventAccountRegistered ActivityEventType = "account.registered"
	ActivityEventAccountUpdated    ActivityEventType = "account.updated"
	ActivityEventAccountDeleted    ActivityEventType = "account.deleted"
	ActivityEventEmailVerified     ActivityEventType = "account.email.verified"
	ActivityEventLoginSuccess      ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure      ActivityEventType = "auth.login.failure"
	ActivityEventPasswordReset     ActivityEventType = "auth.password.reset"
)

// ActivityEvent is a structured record of one account state change.
// Delivery is at-least-once; consumers must treat events idempotently.
type ActivityEvent struct {
	EventType  ActivityEventType
	AccountID  int64
	Email      string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events, typically forwarding them to a
// message bus or audit store. Sinks run best-effort behind the dispatcher;
// a failing sink is logged, never surfaced to the caller.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
