package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExecEventType identifies a canonical execution event category.
type ExecEventType string

const (
	// EventOrderSubmitted reports the local, optimistic submission transition.
	EventOrderSubmitted ExecEventType = "ORDER_SUBMITTED"
	// EventOrderAccepted reports venue acknowledgement with the venue order id.
	EventOrderAccepted ExecEventType = "ORDER_ACCEPTED"
	// EventOrderRejected reports a venue refusal with the failure reason.
	EventOrderRejected ExecEventType = "ORDER_REJECTED"
	// EventOrderPendingCancel reports an in-flight cancel acknowledged by the venue.
	EventOrderPendingCancel ExecEventType = "ORDER_PENDING_CANCEL"
	// EventOrderCanceled reports a completed cancellation.
	EventOrderCanceled ExecEventType = "ORDER_CANCELED"
	// EventOrderFilled reports a single execution, keyed by FillID.
	EventOrderFilled ExecEventType = "ORDER_FILLED"
)

// ExecEvent is one canonical lifecycle transition delivered to the trading
// engine. Each transition is delivered at most once.
type ExecEvent struct {
	EventID       string
	Type          ExecEventType
	ClientOrderID string
	VenueOrderID  string
	Instrument    InstrumentID
	Status        OrderStatus
	Reason        string
	FillID        string
	FillQty       decimal.Decimal
	FillPrice     decimal.Decimal
	TS            time.Time
}

// ExecEventSink consumes the canonical event stream.
type ExecEventSink interface {
	OnExecEvent(evt ExecEvent)
}

// ExecEventFunc adapts a function to the ExecEventSink interface.
type ExecEventFunc func(evt ExecEvent)

// OnExecEvent implements ExecEventSink.
func (f ExecEventFunc) OnExecEvent(evt ExecEvent) { f(evt) }
