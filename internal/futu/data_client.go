package futu

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/futubridge/internal/observability"
	"github.com/coachpo/futubridge/internal/opend"
	"github.com/coachpo/futubridge/internal/schema"
)

// DataHandlers receives canonical market data. Nil handlers skip the
// corresponding push kind entirely; no registration is made for it.
type DataHandlers struct {
	OnQuote  func(schema.Quote)
	OnTick   func(schema.Tick)
	OnCandle func(schema.Candle)
	OnBook   func(schema.Book)
}

// DataClient is the market-data consumer of a shared gateway session. It
// piggybacks on an existing dispatcher so one poll loop serves both the
// execution and data channels.
type DataClient struct {
	dispatcher *Dispatcher
	handlers   DataHandlers
	now        func() time.Time
}

// NewDataClient wires market-data handlers onto the shared dispatcher.
func NewDataClient(dispatcher *Dispatcher, handlers DataHandlers) *DataClient {
	return &DataClient{dispatcher: dispatcher, handlers: handlers, now: time.Now}
}

// Start registers the push kinds the installed handlers cover and merges
// them into the shared registration set.
func (c *DataClient) Start(ctx context.Context) error {
	kinds := make([]opend.ProtoID, 0, 4)
	if c.handlers.OnQuote != nil {
		c.dispatcher.Register(opend.ProtoUpdateBasicQot, c.onQuote)
		kinds = append(kinds, opend.ProtoUpdateBasicQot)
	}
	if c.handlers.OnTick != nil {
		c.dispatcher.Register(opend.ProtoUpdateTicker, c.onTicker)
		kinds = append(kinds, opend.ProtoUpdateTicker)
	}
	if c.handlers.OnCandle != nil {
		c.dispatcher.Register(opend.ProtoUpdateKL, c.onKL)
		kinds = append(kinds, opend.ProtoUpdateKL)
	}
	if c.handlers.OnBook != nil {
		c.dispatcher.Register(opend.ProtoUpdateOrderBook, c.onOrderBook)
		kinds = append(kinds, opend.ProtoUpdateOrderBook)
	}
	if len(kinds) == 0 {
		return nil
	}
	return c.dispatcher.Start(ctx, kinds)
}

func (c *DataClient) onQuote(_ context.Context, msg opend.PushMessage) {
	rec, ok := payloadAs[opend.BasicQotRecord](msg.Payload)
	if !ok {
		dropPayload("basic quote", msg.Payload)
		return
	}
	c.handlers.OnQuote(schema.Quote{
		Instrument: schema.NewInstrumentID(schema.QotMarket(rec.SecMarket), rec.Code),
		Last:       decimal.NewFromFloat(rec.CurPrice),
		Open:       decimal.NewFromFloat(rec.OpenPrice),
		High:       decimal.NewFromFloat(rec.HighPrice),
		Low:        decimal.NewFromFloat(rec.LowPrice),
		Volume:     rec.Volume,
		Turnover:   decimal.NewFromFloat(rec.Turnover),
		TS:         parseVenueTime(rec.UpdateTime, c.now()),
	})
}

func (c *DataClient) onTicker(_ context.Context, msg opend.PushMessage) {
	rec, ok := payloadAs[opend.TickerRecord](msg.Payload)
	if !ok {
		dropPayload("ticker", msg.Payload)
		return
	}
	c.handlers.OnTick(schema.Tick{
		Instrument: schema.NewInstrumentID(schema.QotMarket(rec.SecMarket), rec.Code),
		Sequence:   rec.Sequence,
		Price:      decimal.NewFromFloat(rec.Price),
		Volume:     rec.Volume,
		TS:         parseVenueTime(rec.Time, c.now()),
	})
}

func (c *DataClient) onKL(_ context.Context, msg opend.PushMessage) {
	rec, ok := payloadAs[opend.KLRecord](msg.Payload)
	if !ok {
		dropPayload("k-line", msg.Payload)
		return
	}
	c.handlers.OnCandle(schema.Candle{
		Instrument: schema.NewInstrumentID(schema.QotMarket(rec.SecMarket), rec.Code),
		Open:       decimal.NewFromFloat(rec.Open),
		High:       decimal.NewFromFloat(rec.High),
		Low:        decimal.NewFromFloat(rec.Low),
		Close:      decimal.NewFromFloat(rec.Close),
		Volume:     rec.Volume,
		TS:         parseVenueTime(rec.Time, c.now()),
	})
}

func (c *DataClient) onOrderBook(_ context.Context, msg opend.PushMessage) {
	rec, ok := payloadAs[opend.OrderBookRecord](msg.Payload)
	if !ok {
		dropPayload("order book", msg.Payload)
		return
	}
	c.handlers.OnBook(schema.Book{
		Instrument: schema.NewInstrumentID(schema.QotMarket(rec.SecMarket), rec.Code),
		Bids:       bookLevels(rec.Bids),
		Asks:       bookLevels(rec.Asks),
		TS:         parseVenueTime(rec.Time, c.now()),
	})
}

func bookLevels(levels []opend.PriceLevel) []schema.BookLevel {
	out := make([]schema.BookLevel, 0, len(levels))
	for _, level := range levels {
		out = append(out, schema.BookLevel{
			Price:  decimal.NewFromFloat(level.Price),
			Volume: level.Volume,
			Orders: level.Orders,
		})
	}
	return out
}

func payloadAs[T any](payload any) (T, bool) {
	switch value := payload.(type) {
	case T:
		return value, true
	case *T:
		return *value, true
	default:
		var zero T
		return zero, false
	}
}

func dropPayload(kind string, payload any) {
	observability.Log().Warn(kind+" push with unexpected payload",
		observability.F("payload", fmt.Sprintf("%T", payload)))
}
