package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"MarginSettle/internal/event"
)

// OutboundPublisher mirrors settlement events onto NATS for downstream
// consumers (indexers, notification services, PnL dashboards). Publishing
// is best-effort: the Postgres event log is the source of truth, so a
// failed publish is logged and skipped rather than retried.
//
// Subjects follow the pattern margin.settle.events.{event_type}.{pair_id}.
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan event.Envelope
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan event.Envelope) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
	}
}

// Run publishes events until ctx is cancelled or the input channel closes.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case env, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, env); err != nil {
				log.Printf("WARN: outbound publish failed id=%s type=%s: %v",
					env.EventID, env.Type, err)
			}
		}
	}
}

// wireEvent is the JSON shape published on the wire.
type wireEvent struct {
	EventID   string      `json:"event_id"`
	EventType string      `json:"event_type"`
	PairID    int64       `json:"pair_id"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

func (op *OutboundPublisher) publish(ctx context.Context, env event.Envelope) error {
	data, err := json.Marshal(wireEvent{
		EventID:   env.EventID.String(),
		EventType: env.Type.String(),
		PairID:    env.PairID,
		Payload:   env.Payload,
		Timestamp: env.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	subject := fmt.Sprintf("margin.settle.events.%s.%s",
		env.Type, strconv.FormatInt(env.PairID, 10))

	_, err = op.js.Publish(ctx, subject, data,
		jetstream.WithMsgID(env.EventID.String()))
	return err
}

// EnsureOutboundStream creates or updates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "MARGIN_SETTLE_EVENTS",
		Subjects:  []string{"margin.settle.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Println("INFO: ensured outbound stream MARGIN_SETTLE_EVENTS")
	return nil
}
