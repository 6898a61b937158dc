package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a canonical basic quote snapshot.
type Quote struct {
	Instrument InstrumentID
	Last       decimal.Decimal
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Volume     int64
	Turnover   decimal.Decimal
	TS         time.Time
}

// Tick is one canonical trade print.
type Tick struct {
	Instrument InstrumentID
	Sequence   int64
	Price      decimal.Decimal
	Volume     int64
	TS         time.Time
}

// Candle is one canonical K-line bar.
type Candle struct {
	Instrument InstrumentID
	Open       decimal.Decimal
	High       decimal.Decimal
	Low        decimal.Decimal
	Close      decimal.Decimal
	Volume     int64
	TS         time.Time
}

// BookLevel is one price level of an order book.
type BookLevel struct {
	Price  decimal.Decimal
	Volume int64
	Orders int32
}

// Book is a canonical order book snapshot.
type Book struct {
	Instrument InstrumentID
	Bids       []BookLevel
	Asks       []BookLevel
	TS         time.Time
}
