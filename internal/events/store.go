package events

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

type pgQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PGStore persists events to the domain_events table.
type PGStore struct {
	DB pgQuerier
}

const insertDomainEvent = `
INSERT INTO domain_events (id, topic, aggregate_id, payload, occurred_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, topic, aggregate_id, payload, occurred_at`

// InsertEvent writes event and returns the stored row.
func (s PGStore) InsertEvent(ctx context.Context, event Event) (Event, error) {
	if s.DB == nil {
		return Event{}, errors.New("events: database not configured")
	}
	var out Event
	var payload []byte
	err := s.DB.QueryRow(ctx, insertDomainEvent,
		event.ID, event.Topic, event.AggregateID, []byte(event.Payload), event.OccurredAt,
	).Scan(&out.ID, &out.Topic, &out.AggregateID, &payload, &out.OccurredAt)
	if err != nil {
		return Event{}, err
	}
	out.Payload = payload
	return out, nil
}

var _ TxStore = PGStore{}

// InTx runs fn against a store bound to one transaction. A DB that is
// already a pgx.Tx gets a savepoint.
func (s PGStore) InTx(ctx context.Context, fn func(EventStore) error) error {
	if s.DB == nil {
		return errors.New("events: database not configured")
	}
	db, ok := s.DB.(pgBeginner)
	if !ok {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, db, func(tx pgx.Tx) error {
		return fn(PGStore{DB: tx})
	})
}

const listEventsByAggregate = `
SELECT id, topic, aggregate_id, payload, occurred_at
FROM domain_events
WHERE aggregate_id = $1
ORDER BY occurred_at, id
LIMIT $2 OFFSET $3`

const countEventsByAggregate = `SELECT COUNT(*) FROM domain_events WHERE aggregate_id = $1`

// ListByAggregate returns events for aggregateID in emission order.
func (s PGStore) ListByAggregate(ctx context.Context, aggregateID string, limit, offset int) ([]Event, error) {
	if s.DB == nil {
		return nil, errors.New("events: database not configured")
	}
	rows, err := s.DB.Query(ctx, listEventsByAggregate, aggregateID, limit, offset)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var ev Event
		var payload []byte
		err := row.Scan(&ev.ID, &ev.Topic, &ev.AggregateID, &payload, &ev.OccurredAt)
		ev.Payload = payload
		return ev, err
	})
}

// CountByAggregate returns how many events exist for aggregateID.
func (s PGStore) CountByAggregate(ctx context.Context, aggregateID string) (int, error) {
	if s.DB == nil {
		return 0, errors.New("events: database not configured")
	}
	var total int
	err := s.DB.QueryRow(ctx, countEventsByAggregate, aggregateID).Scan(&total)
	return total, err
}
