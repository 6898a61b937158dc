// Package schema defines the canonical types the bridge exposes to the trading engine.
package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus identifies a canonical order lifecycle state.
type OrderStatus string

const (
	// OrderStatusInitialized marks an order known locally but not yet submitted.
	OrderStatusInitialized OrderStatus = "INITIALIZED"
	// OrderStatusSubmitted marks an order sent to the venue, acceptance pending.
	OrderStatusSubmitted OrderStatus = "SUBMITTED"
	// OrderStatusAccepted marks an order acknowledged by the venue.
	OrderStatusAccepted OrderStatus = "ACCEPTED"
	// OrderStatusPartiallyFilled marks an order with a non-zero, non-total filled quantity.
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	// OrderStatusFilled marks a completely filled order. Terminal.
	OrderStatusFilled OrderStatus = "FILLED"
	// OrderStatusPendingCancel marks an order with an in-flight cancel request.
	OrderStatusPendingCancel OrderStatus = "PENDING_CANCEL"
	// OrderStatusCanceled marks a canceled order. Terminal.
	OrderStatusCanceled OrderStatus = "CANCELED"
	// OrderStatusRejected marks an order refused by the venue. Terminal.
	OrderStatusRejected OrderStatus = "REJECTED"
)

// IsTerminal reports whether no further transitions are possible from the status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected:
		return true
	default:
		return false
	}
}

// CanTransition reports whether the canonical lifecycle permits moving from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s == next {
		// Repeated partial fills are the only legal self-transition.
		return s == OrderStatusPartiallyFilled
	}
	allowed, ok := orderTransitions[s]
	if !ok {
		return false
	}
	for _, candidate := range allowed {
		if candidate == next {
			return true
		}
	}
	return false
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusInitialized:     {OrderStatusSubmitted, OrderStatusAccepted, OrderStatusRejected},
	OrderStatusSubmitted:       {OrderStatusAccepted, OrderStatusRejected},
	OrderStatusAccepted:        {OrderStatusPartiallyFilled, OrderStatusFilled, OrderStatusPendingCancel, OrderStatusRejected, OrderStatusCanceled},
	OrderStatusPartiallyFilled: {OrderStatusPartiallyFilled, OrderStatusFilled, OrderStatusPendingCancel, OrderStatusCanceled},
	OrderStatusPendingCancel:   {OrderStatusCanceled, OrderStatusPartiallyFilled, OrderStatusFilled},
}

// OrderSide identifies the trading direction.
type OrderSide string

const (
	// OrderSideBuy acquires the instrument.
	OrderSideBuy OrderSide = "BUY"
	// OrderSideSell disposes of the instrument.
	OrderSideSell OrderSide = "SELL"
)

// OrderKind identifies the execution style.
type OrderKind string

const (
	// OrderKindLimit executes at the limit price or better.
	OrderKindLimit OrderKind = "LIMIT"
	// OrderKindMarket executes at the prevailing price.
	OrderKindMarket OrderKind = "MARKET"
)

// Order is the canonical view of a venue order tracked across both channels.
// VenueOrderID is assigned by the venue and stable; ClientOrderID is owned by
// the trading engine and never minted here.
type Order struct {
	VenueOrderID  string
	ClientOrderID string
	Instrument    InstrumentID
	Side          OrderSide
	Kind          OrderKind
	Status        OrderStatus
	Quantity      decimal.Decimal
	FilledQty     decimal.Decimal
	LimitPrice    *decimal.Decimal
	AvgFillPrice  *decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Fill is a single execution against an order. FillID is the idempotency key;
// a fill is immutable once observed and is never re-emitted.
type Fill struct {
	FillID       string
	VenueOrderID string
	Instrument   InstrumentID
	Side         OrderSide
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	TradedAt     time.Time
	Market       TrdMarket
}
