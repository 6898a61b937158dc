package futu

import (
	"context"
	"fmt"

	"github.com/coachpo/futubridge/errs"
	"github.com/coachpo/futubridge/internal/observability"
	"github.com/coachpo/futubridge/internal/opend"
	"github.com/coachpo/futubridge/internal/schema"
)

// Session is the resolved trading identity every venue query is scoped by:
// one account, one environment, one primary market. It is immutable after
// resolution; a different account requires a new session.
type Session struct {
	Account schema.Account
	Env     schema.TradingEnv
	Market  schema.TrdMarket
}

// PrimaryCurrency returns the settlement currency of the session's market.
func (s Session) PrimaryCurrency() string {
	return schema.CurrencyForTrdMarket(s.Market)
}

// Markets returns the markets queried for reports and balances: the
// session's primary market plus every other market the account is
// authorized to trade, primary first, without duplicates.
func (s Session) Markets() []schema.TrdMarket {
	markets := []schema.TrdMarket{s.Market}
	for _, m := range s.Account.TrdMarkets {
		if m != s.Market && m != schema.TrdMarketUnknown {
			markets = append(markets, m)
		}
	}
	return markets
}

// ResolveSession fetches the account list and selects the trading account.
// An explicit accID must exist and match the environment. With accID zero
// the first account authorized for both the environment and the market
// wins; failing that, the first account in the environment. List order is
// the venue's and breaks ties.
func ResolveSession(ctx context.Context, client opend.Client, env schema.TradingEnv, market schema.TrdMarket, accID uint64) (Session, error) {
	records, err := client.GetAccountList(ctx)
	if err != nil {
		return Session{}, errs.New("session", errs.CodeNetwork,
			errs.WithMessage("account list query failed"),
			errs.WithProtoID(uint32(opend.ProtoGetAccList)),
			errs.WithCause(err))
	}
	accounts := make([]schema.Account, 0, len(records))
	for _, rec := range records {
		accounts = append(accounts, parseAccountRecord(rec))
	}

	account, err := selectAccount(accounts, env, market, accID)
	if err != nil {
		return Session{}, err
	}
	observability.Log().Info("trading account resolved",
		observability.F("acc_id", account.AccID),
		observability.F("env", int32(account.Env)),
		observability.F("market", int32(market)))
	return Session{Account: account, Env: env, Market: market}, nil
}

func selectAccount(accounts []schema.Account, env schema.TradingEnv, market schema.TrdMarket, accID uint64) (schema.Account, error) {
	if accID != 0 {
		for _, acc := range accounts {
			if acc.AccID != accID {
				continue
			}
			if acc.Env != env {
				return schema.Account{}, errs.New("session", errs.CodeInvalid,
					errs.WithMessage(fmt.Sprintf("account %d belongs to env %d, not %d", accID, acc.Env, env)))
			}
			return acc, nil
		}
		return schema.Account{}, errs.New("session", errs.CodeNotFound,
			errs.WithMessage(fmt.Sprintf("account %d not found", accID)))
	}

	for _, acc := range accounts {
		if acc.Env == env && acc.Authorized(market) {
			return acc, nil
		}
	}
	for _, acc := range accounts {
		if acc.Env == env {
			return acc, nil
		}
	}
	return schema.Account{}, errs.New("session", errs.CodeNotFound,
		errs.WithMessage(fmt.Sprintf("no account available in env %d", env)))
}
