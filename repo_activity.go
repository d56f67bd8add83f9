package identity

import (
	"context"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// NewActivityLogRepository creates the repository for persisted activity
// events.
func NewActivityLogRepository(db *bun.DB) repository.Repository[*ActivityLog] {
	handlers := repository.ModelHandlers[*ActivityLog]{
		NewRecord: func() *ActivityLog {
			return &ActivityLog{}
		},
		GetID: func(record *ActivityLog) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return record.ID
		},
		SetID: func(record *ActivityLog, id uuid.UUID) {
			record.ID = id
		},
		GetIdentifier: func() string {
			return "event_name"
		},
	}
	return repository.NewRepository(db, handlers)
}

// StoreActivitySink persists every event to the account_activity table so
// a relay can forward them to the bus with at-least-once semantics.
// Record ids are derived from the event identity, so a replayed event
// upserts onto the same row instead of producing a duplicate.
type StoreActivitySink struct {
	repo repository.Repository[*ActivityLog]
}

var _ ActivitySink = (*StoreActivitySink)(nil)

// NewStoreActivitySink creates a sink writing to the given repository.
func NewStoreActivitySink(repo repository.Repository[*ActivityLog]) *StoreActivitySink {
	return &StoreActivitySink{repo: repo}
}

// Record implements ActivitySink.
func (s *StoreActivitySink) Record(ctx context.Context, event ActivityEvent) error {
	record := &ActivityLog{
		EventName:  string(event.EventType),
		AccountID:  event.AccountID,
		Payload:    event.Metadata,
		OccurredAt: &event.OccurredAt,
	}

	key := fmt.Sprintf("%s:%d:%d", event.EventType, event.AccountID, event.OccurredAt.UnixNano())
	if id, err := hashid.NewUUID(key); err == nil {
		record.ID = id
	}

	if _, err := s.repo.Upsert(ctx, record); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist activity event")
	}

	return nil
}
