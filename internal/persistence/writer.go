package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"MarginSettle/internal/event"
)

// EventRow represents a row in margin_settle.events.
type EventRow struct {
	EventID   string
	EventType string
	PairID    int64
	Payload   []byte // JSON-encoded event payload
	Timestamp time.Time
}

// RowFromEnvelope flattens an engine event for the append-only log.
func RowFromEnvelope(env event.Envelope) EventRow {
	return EventRow{
		EventID:   env.EventID.String(),
		EventType: env.Type.String(),
		PairID:    env.PairID,
		Payload:   MarshalPayload(env.Payload),
		Timestamp: env.Timestamp,
	}
}

// EventLogWriter writes settlement events to Postgres using multi-row
// INSERT batches. Dedup rides on the event id, so replays after a crashed
// flush are harmless.
type EventLogWriter struct {
	db *sql.DB
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch writes a batch of events inside the given transaction.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO margin_settle.events
		(event_id, event_type, pair_id, payload, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*5)

	for i, e := range events {
		base := i * 5
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5,
		))
		args = append(args, e.EventID, e.EventType, e.PairID, e.Payload, e.Timestamp)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (event_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// MarshalPayload JSON-encodes an event payload for the payload column.
func MarshalPayload(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("WARN: failed to marshal payload: %v", err)
		return []byte("{}")
	}
	return data
}
