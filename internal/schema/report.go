package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatusReport is a pollable snapshot row for one venue order,
// produced by the on-demand reconciliation path.
type OrderStatusReport struct {
	VenueOrderID string
	Instrument   InstrumentID
	Side         OrderSide
	Kind         OrderKind
	Status       OrderStatus
	Quantity     decimal.Decimal
	FilledQty    decimal.Decimal
	LimitPrice   *decimal.Decimal
	AvgFillPrice *decimal.Decimal
	Market       TrdMarket
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FillReport is a pollable snapshot row for one execution.
type FillReport struct {
	FillID       string
	VenueOrderID string
	Instrument   InstrumentID
	Side         OrderSide
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	Market       TrdMarket
	TradedAt     time.Time
}

// PositionReport is a pollable snapshot row for one holding.
type PositionReport struct {
	Instrument InstrumentID
	Side       PositionSide
	Quantity   decimal.Decimal
	Market     TrdMarket
}
