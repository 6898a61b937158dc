package schema

import "github.com/shopspring/decimal"

// Balance is the canonical per-currency account balance. The invariant
// Total == Locked + Free holds for every Balance the bridge produces.
type Balance struct {
	Currency string
	Total    decimal.Decimal
	Locked   decimal.Decimal
	Free     decimal.Decimal
}

// NewBalance derives a balance from the venue's total and frozen funds.
// Free is always computed as total minus locked; the venue's optional
// "available funds" field is sparsely populated and never consulted.
func NewBalance(currency string, total, locked decimal.Decimal) Balance {
	if locked.GreaterThan(total) {
		locked = total
	}
	return Balance{
		Currency: currency,
		Total:    total,
		Locked:   locked,
		Free:     total.Sub(locked),
	}
}

// ZeroBalance returns an all-zero balance for the currency.
func ZeroBalance(currency string) Balance {
	return NewBalance(currency, decimal.Zero, decimal.Zero)
}

// PositionSide identifies the direction of an open position.
type PositionSide string

const (
	// PositionSideLong holds a positive quantity.
	PositionSideLong PositionSide = "LONG"
	// PositionSideShort holds a negative quantity.
	PositionSideShort PositionSide = "SHORT"
	// PositionSideFlat holds nothing. Forced whenever quantity is zero.
	PositionSideFlat PositionSide = "FLAT"
)

// Position is a point-in-time holding, recomputed on demand and never
// incrementally tracked from pushes.
type Position struct {
	Instrument InstrumentID
	Side       PositionSide
	Quantity   decimal.Decimal
}

// TradingEnv selects the venue trading environment.
type TradingEnv int32

const (
	// EnvSimulate trades against the venue's paper environment.
	EnvSimulate TradingEnv = 0
	// EnvReal trades against the live environment.
	EnvReal TradingEnv = 1
)

// Account is a vendor trading account and the sub-markets it may trade.
type Account struct {
	AccID       uint64
	Env         TradingEnv
	TrdMarkets  []TrdMarket
	SimAccType  int32
	Description string
}

// Authorized reports whether the account may trade the given market.
func (a Account) Authorized(market TrdMarket) bool {
	for _, m := range a.TrdMarkets {
		if m == market {
			return true
		}
	}
	return false
}
