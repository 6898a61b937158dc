package futu

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/coachpo/futubridge/internal/opend"
	"github.com/coachpo/futubridge/internal/schema"
)

const venueTimeLayout = "2006-01-02 15:04:05.000"

func parseTrdSide(side int32) (schema.OrderSide, error) {
	switch side {
	case opend.TrdSideBuy, opend.TrdSideBuyBack:
		return schema.OrderSideBuy, nil
	case opend.TrdSideSell, opend.TrdSideSellShort:
		return schema.OrderSideSell, nil
	default:
		return "", fmt.Errorf("unsupported trade side %d", side)
	}
}

func toTrdSide(side schema.OrderSide) int32 {
	if side == schema.OrderSideSell {
		return opend.TrdSideSell
	}
	return opend.TrdSideBuy
}

// Unknown order types default to limit, matching the venue's own treatment
// of auction and absolute-limit variants as limit-style orders.
func parseOrderKind(orderType int32) schema.OrderKind {
	if orderType == opend.OrderTypeMarket {
		return schema.OrderKindMarket
	}
	return schema.OrderKindLimit
}

func toOrderType(kind schema.OrderKind) int32 {
	if kind == schema.OrderKindMarket {
		return opend.OrderTypeMarket
	}
	return opend.OrderTypeNormal
}

func parseVenueTime(value string, fallback time.Time) time.Time {
	if value == "" {
		return fallback
	}
	if ts, err := time.Parse(venueTimeLayout, value); err == nil {
		return ts
	}
	if ts, err := time.Parse("2006-01-02 15:04:05", value); err == nil {
		return ts
	}
	return fallback
}

func optionalPrice(value *float64) *decimal.Decimal {
	if value == nil {
		return nil
	}
	price := decimal.NewFromFloat(*value)
	return &price
}

func parseOrderRecord(rec opend.OrderRecord, now time.Time) (schema.OrderStatusReport, error) {
	if rec.OrderID == 0 {
		return schema.OrderStatusReport{}, fmt.Errorf("order record missing order id")
	}
	if rec.Code == "" {
		return schema.OrderStatusReport{}, fmt.Errorf("order %d missing security code", rec.OrderID)
	}
	side, err := parseTrdSide(rec.TrdSide)
	if err != nil {
		return schema.OrderStatusReport{}, fmt.Errorf("order %d: %w", rec.OrderID, err)
	}
	status, _ := MapOrderStatus(rec.OrderStatus)
	return schema.OrderStatusReport{
		VenueOrderID: strconv.FormatUint(rec.OrderID, 10),
		Instrument:   schema.NewInstrumentID(schema.QotMarket(rec.SecMarket), rec.Code),
		Side:         side,
		Kind:         parseOrderKind(rec.OrderType),
		Status:       status,
		Quantity:     decimal.NewFromFloat(rec.Qty),
		FilledQty:    decimal.NewFromFloat(rec.FillQty),
		LimitPrice:   optionalPrice(rec.Price),
		AvgFillPrice: optionalPrice(rec.FillAvgPrice),
		Market:       schema.TrdMarket(rec.TrdMarket),
		CreatedAt:    parseVenueTime(rec.CreateTime, now),
		UpdatedAt:    parseVenueTime(rec.UpdateTime, now),
	}, nil
}

func parseFillRecord(rec opend.FillRecord, now time.Time) (schema.FillReport, error) {
	if rec.FillID == 0 {
		return schema.FillReport{}, fmt.Errorf("fill record missing fill id")
	}
	if rec.OrderID == 0 {
		return schema.FillReport{}, fmt.Errorf("fill %d missing order id", rec.FillID)
	}
	side, err := parseTrdSide(rec.TrdSide)
	if err != nil {
		return schema.FillReport{}, fmt.Errorf("fill %d: %w", rec.FillID, err)
	}
	if rec.Qty <= 0 {
		return schema.FillReport{}, fmt.Errorf("fill %d has non-positive quantity", rec.FillID)
	}
	return schema.FillReport{
		FillID:       strconv.FormatUint(rec.FillID, 10),
		VenueOrderID: strconv.FormatUint(rec.OrderID, 10),
		Instrument:   schema.NewInstrumentID(schema.QotMarket(rec.SecMarket), rec.Code),
		Side:         side,
		Quantity:     decimal.NewFromFloat(rec.Qty),
		Price:        decimal.NewFromFloat(rec.Price),
		Market:       schema.TrdMarket(rec.TrdMarket),
		TradedAt:     parseVenueTime(rec.CreateTime, now),
	}, nil
}

// parsePositionRecord forces FLAT whenever quantity is zero, regardless of
// the side flag the venue reports.
func parsePositionRecord(rec opend.PositionRecord) (schema.PositionReport, error) {
	if rec.Code == "" {
		return schema.PositionReport{}, fmt.Errorf("position record missing security code")
	}
	qty := decimal.NewFromFloat(rec.Qty)
	side := schema.PositionSideLong
	switch {
	case qty.IsZero():
		side = schema.PositionSideFlat
	case rec.PositionSide == 1 || qty.IsNegative():
		side = schema.PositionSideShort
		qty = qty.Abs()
	}
	return schema.PositionReport{
		Instrument: schema.NewInstrumentID(schema.QotMarket(rec.SecMarket), rec.Code),
		Side:       side,
		Quantity:   qty,
		Market:     schema.TrdMarket(rec.TrdMarket),
	}, nil
}

// parseFunds derives the canonical balance. Free is always total minus
// frozen; the optional AvailableFunds field is ignored because its absence
// does not mean zero availability.
func parseFunds(rec opend.FundsRecord) schema.Balance {
	total := decimal.NewFromFloat(rec.Cash)
	locked := decimal.NewFromFloat(rec.FrozenCash)
	return schema.NewBalance(rec.Currency, total, locked)
}

func parseAccountRecord(rec opend.AccountRecord) schema.Account {
	markets := make([]schema.TrdMarket, 0, len(rec.TrdMarketAuths))
	for _, m := range rec.TrdMarketAuths {
		markets = append(markets, schema.TrdMarket(m))
	}
	acc := schema.Account{
		AccID:      rec.AccID,
		Env:        schema.TradingEnv(rec.TrdEnv),
		TrdMarkets: markets,
	}
	if rec.AccType != nil {
		acc.SimAccType = *rec.AccType
	}
	if rec.CardNum != nil {
		acc.Description = *rec.CardNum
	}
	return acc
}
