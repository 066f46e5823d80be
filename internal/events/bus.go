package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is a persisted domain event.
type Event struct {
	ID          uuid.UUID       `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregateId"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// EventStore defines the persistence operations required by the event bus.
type EventStore interface {
	InsertEvent(ctx context.Context, event Event) (Event, error)
}

// TxStore is an EventStore able to run several writes in one transaction.
// When the store supports it, Emit persists and schedules an event inside a
// single transaction so a failed schedule leaves no row behind.
type TxStore interface {
	EventStore
	InTx(ctx context.Context, fn func(EventStore) error) error
}

var (
	// ErrScheduleFailed marks errors from the DeliveryScheduler.
	ErrScheduleFailed = errors.New("events: schedule delivery failed")
	// ErrNotifyFailed marks notifier errors. The event was persisted and
	// scheduled.
	ErrNotifyFailed = errors.New("events: notifier failed")
)

// DeliveryScheduler hands emitted events to asynchronous consumers.
type DeliveryScheduler interface {
	Schedule(ctx context.Context, event Event) error
}

// Notifier reacts to emitted events (metrics, logging).
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event Event) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, event Event) error { return f(ctx, event) }

// Bus persists domain events and fans them out to downstream handlers.
type Bus struct {
	Store     EventStore
	Scheduler DeliveryScheduler
	Notifiers []Notifier
	Now       func() time.Time
}

// Emit records the event, schedules its delivery and then runs notifiers.
//
// A scheduler failure returns ErrScheduleFailed and a zero Event; with a
// TxStore the insert is rolled back. Notifier failures return the persisted
// event together with ErrNotifyFailed.
func (b *Bus) Emit(ctx context.Context, topic, aggregateID string, payload any) (Event, error) {
	if b == nil || b.Store == nil {
		return Event{}, errors.New("events: store not configured")
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Event{}, errors.New("events: topic is required")
	}
	aggregateID = strings.TrimSpace(aggregateID)
	if aggregateID == "" {
		return Event{}, errors.New("events: aggregate id is required")
	}
	encoded, err := encodePayload(payload)
	if err != nil {
		return Event{}, fmt.Errorf("events: encode payload: %w", err)
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	pending := Event{
		ID:          uuid.New(),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     encoded,
		OccurredAt:  now().UTC(),
	}

	var ev Event
	persist := func(store EventStore) error {
		stored, err := store.InsertEvent(ctx, pending)
		if err != nil {
			return fmt.Errorf("events: persist event: %w", err)
		}
		if b.Scheduler != nil {
			if err := b.Scheduler.Schedule(ctx, stored); err != nil {
				return fmt.Errorf("%w: %w", ErrScheduleFailed, err)
			}
		}
		ev = stored
		return nil
	}
	if txStore, ok := b.Store.(TxStore); ok && b.Scheduler != nil {
		err = txStore.InTx(ctx, persist)
	} else {
		err = persist(b.Store)
	}
	if err != nil {
		return Event{}, err
	}

	var joined error
	for _, notifier := range b.Notifiers {
		if notifier == nil {
			continue
		}
		if notifyErr := notifier.Notify(ctx, ev); notifyErr != nil {
			joined = errors.Join(joined, fmt.Errorf("%w: %w", ErrNotifyFailed, notifyErr))
		}
	}
	return ev, joined
}

func encodePayload(payload any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	case string:
		if strings.TrimSpace(v) == "" {
			return []byte("{}"), nil
		}
		data = []byte(v)
	default:
		return json.Marshal(v)
	}
	if len(data) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(data) {
		return nil, errors.New("payload is not valid json")
	}
	return append([]byte(nil), data...), nil
}
