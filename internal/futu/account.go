package futu

import (
	"context"
	"errors"

	"github.com/coachpo/futubridge/errs"
	"github.com/coachpo/futubridge/internal/observability"
	"github.com/coachpo/futubridge/internal/opend"
	"github.com/coachpo/futubridge/internal/schema"
)

// AccountService aggregates funds and positions across every market the
// session's account is authorized to trade. Snapshots are recomputed from
// venue queries on every call; nothing is tracked incrementally.
type AccountService struct {
	client      opend.Client
	session     Session
	metrics     *bridgeMetrics
	instruments *InstrumentProvider
}

// NewAccountService builds the aggregator for one resolved session.
func NewAccountService(client opend.Client, session Session) *AccountService {
	return &AccountService{client: client, session: session}
}

func (s *AccountService) setMetrics(m *bridgeMetrics) { s.metrics = m }

func (s *AccountService) setInstruments(p *InstrumentProvider) { s.instruments = p }

// Balances returns one balance per settlement currency across the session's
// markets. Markets sharing a currency are queried once. A market whose
// funds the venue cannot produce, or whose query fails, reports a zero
// balance rather than being omitted, so the currency set is stable across
// calls.
func (s *AccountService) Balances(ctx context.Context) ([]schema.Balance, error) {
	seen := make(map[string]struct{})
	balances := make([]schema.Balance, 0, len(s.session.Markets()))
	for _, market := range s.session.Markets() {
		currency := schema.CurrencyForTrdMarket(market)
		if _, dup := seen[currency]; dup {
			continue
		}
		seen[currency] = struct{}{}

		rec, err := s.client.GetFunds(ctx, int32(s.session.Env), s.session.Account.AccID, int32(market), currency)
		if err != nil {
			if isMissingFunds(err) {
				observability.Log().Debug("funds unavailable, reporting zero balance",
					observability.F("market", int32(market)),
					observability.F("currency", currency))
				balances = append(balances, schema.ZeroBalance(currency))
				continue
			}
			observability.Log().Warn("funds market skipped, reporting zero balance",
				observability.F("market", int32(market)),
				observability.F("currency", currency),
				observability.F("error", err.Error()))
			s.metrics.addMarketSkipped(ctx, "funds")
			balances = append(balances, schema.ZeroBalance(currency))
			continue
		}
		if rec == nil {
			balances = append(balances, schema.ZeroBalance(currency))
			continue
		}
		balance := parseFunds(*rec)
		if balance.Currency == "" {
			balance.Currency = currency
		}
		balances = append(balances, balance)
	}
	return balances, nil
}

// Positions returns open positions across the session's markets. Rows that
// fail to parse and markets whose query fails are skipped and logged, never
// dropped silently.
func (s *AccountService) Positions(ctx context.Context) ([]schema.PositionReport, error) {
	positions := make([]schema.PositionReport, 0)
	for _, market := range s.session.Markets() {
		rows, err := s.client.GetPositionList(ctx, int32(s.session.Env), s.session.Account.AccID, int32(market))
		if err != nil {
			observability.Log().Warn("position market skipped",
				observability.F("market", int32(market)),
				observability.F("error", err.Error()))
			s.metrics.addMarketSkipped(ctx, "position")
			continue
		}
		for _, row := range rows {
			position, perr := parsePositionRecord(row)
			if perr != nil {
				observability.Log().Warn("position row skipped",
					observability.F("market", int32(market)),
					observability.F("error", perr.Error()))
				s.metrics.addRowSkipped(ctx, "position")
				continue
			}
			if position.Market == schema.TrdMarketUnknown {
				position.Market = market
			}
			if s.instruments != nil {
				if _, known := s.instruments.Cached(position.Instrument); !known {
					s.instruments.Ensure(ctx, schema.QotMarketForVenue(position.Instrument.Venue), position.Instrument.Code)
				}
			}
			positions = append(positions, position)
		}
	}
	return positions, nil
}

// isMissingFunds reports whether the funds query failed because the account
// has no ledger for the market rather than because the gateway is broken.
func isMissingFunds(err error) bool {
	var venueErr *errs.E
	if errors.As(err, &venueErr) {
		return venueErr.Code == errs.CodeNotFound
	}
	return false
}
