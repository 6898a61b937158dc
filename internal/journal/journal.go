// Package journal persists the canonical execution stream for audit.
//
// The journal is an append-only record: events insert once by event id and
// fills once by fill id, so replaying a session is idempotent. Terminal
// order states are retained indefinitely.
package journal

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coachpo/futubridge/internal/observability"
	"github.com/coachpo/futubridge/internal/schema"
)

// Store persists execution events and fills to Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store backed by the provided pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Open connects a pooled store for the DSN.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping journal database: %w", err)
	}
	return NewStore(pool), nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const (
	eventInsertSQL = `
INSERT INTO exec_events (
    event_id,
    event_type,
    client_order_id,
    venue_order_id,
    instrument,
    status,
    reason,
    fill_id,
    fill_qty,
    fill_price,
    event_ts,
    metadata,
    created_at
)
VALUES (
    @event_id,
    @event_type,
    @client_order_id,
    @venue_order_id,
    @instrument,
    @status,
    @reason,
    @fill_id,
    @fill_qty,
    @fill_price,
    @event_ts,
    @metadata::jsonb,
    NOW()
)
ON CONFLICT (event_id) DO NOTHING;
`

	fillInsertSQL = `
INSERT INTO fills (
    fill_id,
    venue_order_id,
    client_order_id,
    instrument,
    quantity,
    price,
    traded_at,
    created_at
)
VALUES (
    @fill_id,
    @venue_order_id,
    @client_order_id,
    @instrument,
    @quantity,
    @price,
    @traded_at,
    NOW()
)
ON CONFLICT (fill_id) DO NOTHING;
`
)

// RecordEvent appends one execution event. Replays of the same event id
// are silently ignored.
func (s *Store) RecordEvent(ctx context.Context, evt schema.ExecEvent) error {
	metadata, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event metadata: %w", err)
	}
	args := pgx.NamedArgs{
		"event_id":        evt.EventID,
		"event_type":      string(evt.Type),
		"client_order_id": evt.ClientOrderID,
		"venue_order_id":  evt.VenueOrderID,
		"instrument":      evt.Instrument.String(),
		"status":          string(evt.Status),
		"reason":          evt.Reason,
		"fill_id":         evt.FillID,
		"fill_qty":        evt.FillQty.String(),
		"fill_price":      evt.FillPrice.String(),
		"event_ts":        evt.TS,
		"metadata":        string(metadata),
	}
	if _, err := s.pool.Exec(ctx, eventInsertSQL, args); err != nil {
		return fmt.Errorf("insert exec event %s: %w", evt.EventID, err)
	}
	if evt.Type == schema.EventOrderFilled && evt.FillID != "" {
		return s.recordFill(ctx, evt)
	}
	return nil
}

func (s *Store) recordFill(ctx context.Context, evt schema.ExecEvent) error {
	args := pgx.NamedArgs{
		"fill_id":         evt.FillID,
		"venue_order_id":  evt.VenueOrderID,
		"client_order_id": evt.ClientOrderID,
		"instrument":      evt.Instrument.String(),
		"quantity":        evt.FillQty.String(),
		"price":           evt.FillPrice.String(),
		"traded_at":       evt.TS,
	}
	if _, err := s.pool.Exec(ctx, fillInsertSQL, args); err != nil {
		return fmt.Errorf("insert fill %s: %w", evt.FillID, err)
	}
	return nil
}

// Sink tees events into the journal before forwarding them. Journal
// failures are logged and never block delivery to the engine.
func (s *Store) Sink(next schema.ExecEventSink) schema.ExecEventSink {
	return schema.ExecEventFunc(func(evt schema.ExecEvent) {
		if err := s.RecordEvent(context.Background(), evt); err != nil {
			observability.Log().Error("journal write failed",
				observability.F("event_id", evt.EventID),
				observability.F("error", err.Error()))
		}
		if next != nil {
			next.OnExecEvent(evt)
		}
	})
}
