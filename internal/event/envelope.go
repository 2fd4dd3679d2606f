package event

import (
	"time"

	"github.com/google/uuid"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypePositionOpened
	EventTypePositionClosed
	EventTypePositionIncreased
	EventTypePositionLiquidated
	EventTypeLimitOrderPlaced
	EventTypeLimitOrderExecuted
	EventTypeLimitOrderCancelled
	EventTypeMarginAdjusted
	EventTypeTpSlUpdated
	EventTypeFeesDistributed
	EventTypeFundingAccrued
	EventTypePairParamUpdate
)

// Envelope wraps every settlement event emitted by the engine. Events are
// emitted after the in-memory state transition commits, in apply order.
type Envelope struct {
	// Random event identity, also the outbound dedup key
	EventID uuid.UUID

	// Event type discriminator
	Type EventType

	// Trading pair context (negative for global events)
	PairID int64

	// Engine clock at apply time (unix seconds)
	Timestamp time.Time

	// Event-specific payload
	Payload Event
}

// Event is the interface all event payloads implement
type Event interface {
	// EventType returns the discriminator
	EventType() EventType

	// PairID returns the trading pair context, or -1 for global events
	PairID() int64
}

// Wrap builds an envelope around a payload with a fresh event id.
func Wrap(payload Event, now time.Time) Envelope {
	return Envelope{
		EventID:   uuid.New(),
		Type:      payload.EventType(),
		PairID:    payload.PairID(),
		Timestamp: now,
		Payload:   payload,
	}
}

func (et EventType) String() string {
	switch et {
	case EventTypePositionOpened:
		return "PositionOpened"
	case EventTypePositionClosed:
		return "PositionClosed"
	case EventTypePositionIncreased:
		return "PositionIncreased"
	case EventTypePositionLiquidated:
		return "PositionLiquidated"
	case EventTypeLimitOrderPlaced:
		return "LimitOrderPlaced"
	case EventTypeLimitOrderExecuted:
		return "LimitOrderExecuted"
	case EventTypeLimitOrderCancelled:
		return "LimitOrderCancelled"
	case EventTypeMarginAdjusted:
		return "MarginAdjusted"
	case EventTypeTpSlUpdated:
		return "TpSlUpdated"
	case EventTypeFeesDistributed:
		return "FeesDistributed"
	case EventTypeFundingAccrued:
		return "FundingAccrued"
	case EventTypePairParamUpdate:
		return "PairParamUpdate"
	default:
		return "Unknown"
	}
}
