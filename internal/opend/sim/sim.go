// Package sim provides an in-process OpenD transport for tests and paper runs.
//
// The simulated venue implements the full opend.Client surface: orders are
// accepted, optionally rested, and filled deterministically; every lifecycle
// step is mirrored on the push queue the same way the real gateway reports it
// (an order-update push with cumulative totals plus one fill push per
// execution).
package sim

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/coachpo/futubridge/errs"
	"github.com/coachpo/futubridge/internal/opend"
)

const timeLayout = "2006-01-02 15:04:05.000"

// Venue is a deterministic in-memory brokerage gateway.
type Venue struct {
	mu        sync.Mutex
	connected bool
	accounts  []opend.AccountRecord
	funds     map[fundsKey]opend.FundsRecord
	statics   map[staticKey]opend.SecurityStaticRecord

	pushKinds map[opend.ProtoID]struct{}
	pushQueue []opend.PushMessage
	pushCond  *sync.Cond

	orders     map[uint64]*simOrder
	fills      []opend.FillRecord
	nextOrder  uint64
	nextFill   uint64
	marketPx   map[string]float64
	restLimits bool

	pollErr error
	clock   func() time.Time
}

type simOrder struct {
	rec    opend.OrderRecord
	market int32
}

type fundsKey struct {
	accID    uint64
	market   int32
	currency string
}

type staticKey struct {
	market int32
	code   string
}

// NewVenue creates a simulator with no accounts configured.
func NewVenue() *Venue {
	v := new(Venue)
	v.funds = make(map[fundsKey]opend.FundsRecord)
	v.statics = make(map[staticKey]opend.SecurityStaticRecord)
	v.pushKinds = make(map[opend.ProtoID]struct{})
	v.orders = make(map[uint64]*simOrder)
	v.marketPx = make(map[string]float64)
	v.nextOrder = 1000
	v.nextFill = 5000
	v.clock = time.Now
	v.pushCond = sync.NewCond(&v.mu)
	return v
}

// WithClock overrides the simulator clock, primarily for tests.
func (v *Venue) WithClock(clock func() time.Time) *Venue {
	v.mu.Lock()
	if clock != nil {
		v.clock = clock
	}
	v.mu.Unlock()
	return v
}

// AddAccount registers an account row returned by GetAccountList.
func (v *Venue) AddAccount(rec opend.AccountRecord) {
	v.mu.Lock()
	v.accounts = append(v.accounts, rec)
	v.mu.Unlock()
}

// SetFunds configures the funds snapshot for one account, market and currency.
func (v *Venue) SetFunds(accID uint64, market int32, currency string, rec opend.FundsRecord) {
	v.mu.Lock()
	v.funds[fundsKey{accID: accID, market: market, currency: currency}] = rec
	v.mu.Unlock()
}

// SetStatic registers an instrument static definition.
func (v *Venue) SetStatic(rec opend.SecurityStaticRecord) {
	v.mu.Lock()
	v.statics[staticKey{market: rec.Market, code: rec.Code}] = rec
	v.mu.Unlock()
}

// SetMarketPrice sets the price market orders execute at for a code.
func (v *Venue) SetMarketPrice(code string, price float64) {
	v.mu.Lock()
	v.marketPx[code] = price
	v.mu.Unlock()
}

// SetRestLimits makes limit orders rest instead of filling immediately.
func (v *Venue) SetRestLimits(rest bool) {
	v.mu.Lock()
	v.restLimits = rest
	v.mu.Unlock()
}

// FailPolls makes subsequent PollPush calls return err until cleared with nil.
func (v *Venue) FailPolls(err error) {
	v.mu.Lock()
	v.pollErr = err
	v.mu.Unlock()
	v.pushCond.Broadcast()
}

// InjectPush appends an arbitrary push message to the queue.
func (v *Venue) InjectPush(msg opend.PushMessage) {
	v.mu.Lock()
	v.pushQueue = append(v.pushQueue, msg)
	v.mu.Unlock()
	v.pushCond.Broadcast()
}

// RegisteredKinds returns a snapshot of the additive registration set.
func (v *Venue) RegisteredKinds() []opend.ProtoID {
	v.mu.Lock()
	defer v.mu.Unlock()
	kinds := make([]opend.ProtoID, 0, len(v.pushKinds))
	for kind := range v.pushKinds {
		kinds = append(kinds, kind)
	}
	return kinds
}

// Connect marks the session established.
func (v *Venue) Connect(_ context.Context, host string, port int, _ string, _ int32) error {
	if host == "" || port <= 0 {
		return errs.New("sim", errs.CodeInvalid, errs.WithMessage("host and port required"))
	}
	v.mu.Lock()
	v.connected = true
	v.mu.Unlock()
	return nil
}

// Disconnect tears the session down and wakes blocked pollers.
func (v *Venue) Disconnect(context.Context) error {
	v.mu.Lock()
	v.connected = false
	v.mu.Unlock()
	v.pushCond.Broadcast()
	return nil
}

// IsConnected reports the session state.
func (v *Venue) IsConnected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.connected
}

// StartPush merges kinds into the registration set. Additive: kinds
// registered by one consumer are never removed by another's call.
func (v *Venue) StartPush(_ context.Context, kinds []opend.ProtoID) error {
	v.mu.Lock()
	for _, kind := range kinds {
		v.pushKinds[kind] = struct{}{}
	}
	v.mu.Unlock()
	return nil
}

// SubscribeAccountPush is a no-op beyond connectivity checking.
func (v *Venue) SubscribeAccountPush(context.Context, []uint64) error {
	if !v.IsConnected() {
		return errs.New("sim", errs.CodeNetwork, errs.WithMessage("not connected"))
	}
	return nil
}

// UnlockTrade accepts any non-empty password hash.
func (v *Venue) UnlockTrade(_ context.Context, unlock bool, pwdMD5 string) error {
	if unlock && pwdMD5 == "" {
		return errs.New("sim", errs.CodeVenue, errs.WithMessage("unlock password required"), errs.WithProtoID(uint32(opend.ProtoUnlockTrade)))
	}
	return nil
}

// PollPush returns the next queued push, or nil after the timeout elapses.
func (v *Venue) PollPush(ctx context.Context, timeout time.Duration) (*opend.PushMessage, error) {
	deadline := time.Now().Add(timeout)
	v.mu.Lock()
	defer v.mu.Unlock()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if v.pollErr != nil {
			return nil, v.pollErr
		}
		if len(v.pushQueue) > 0 {
			msg := v.pushQueue[0]
			v.pushQueue = v.pushQueue[1:]
			return &msg, nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		// Bounded wait: wake on broadcast or poll in small slices so the
		// deadline and context are honoured without a dedicated timer.
		waker := time.AfterFunc(remaining, v.pushCond.Broadcast)
		v.pushCond.Wait()
		waker.Stop()
	}
}

// GetAccountList returns the configured accounts.
func (v *Venue) GetAccountList(context.Context) ([]opend.AccountRecord, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]opend.AccountRecord, len(v.accounts))
	copy(out, v.accounts)
	return out, nil
}

// GetFunds returns the configured funds snapshot.
func (v *Venue) GetFunds(_ context.Context, _ int32, accID uint64, market int32, currency string) (*opend.FundsRecord, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	rec, ok := v.funds[fundsKey{accID: accID, market: market, currency: currency}]
	if !ok {
		return nil, errs.New("sim", errs.CodeNotFound,
			errs.WithMessage(fmt.Sprintf("no funds for acc %d market %d %s", accID, market, currency)),
			errs.WithProtoID(uint32(opend.ProtoGetFunds)))
	}
	out := rec
	return &out, nil
}

// GetOrderList returns orders scoped to the requested market.
func (v *Venue) GetOrderList(_ context.Context, _ int32, _ uint64, market int32) ([]opend.OrderRecord, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []opend.OrderRecord
	for _, ord := range v.orders {
		if ord.market == market {
			out = append(out, ord.rec)
		}
	}
	return out, nil
}

// GetOrderFillList returns fills scoped to the requested market.
func (v *Venue) GetOrderFillList(_ context.Context, _ int32, _ uint64, market int32) ([]opend.FillRecord, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []opend.FillRecord
	for _, fill := range v.fills {
		if fill.TrdMarket == market {
			out = append(out, fill)
		}
	}
	return out, nil
}

// GetPositionList aggregates net filled quantity per code for the market.
func (v *Venue) GetPositionList(_ context.Context, _ int32, _ uint64, market int32) ([]opend.PositionRecord, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	net := make(map[string]float64)
	secMarkets := make(map[string]int32)
	for _, fill := range v.fills {
		if fill.TrdMarket != market {
			continue
		}
		qty := fill.Qty
		if fill.TrdSide != opend.TrdSideBuy && fill.TrdSide != opend.TrdSideBuyBack {
			qty = -qty
		}
		net[fill.Code] += qty
		secMarkets[fill.Code] = fill.SecMarket
	}
	var out []opend.PositionRecord
	var id uint64
	for code, qty := range net {
		id++
		side := int32(0)
		if qty < 0 {
			side = 1
			qty = -qty
		}
		out = append(out, opend.PositionRecord{
			PositionID:   id,
			Code:         code,
			SecMarket:    secMarkets[code],
			PositionSide: side,
			Qty:          qty,
			TrdMarket:    market,
		})
	}
	return out, nil
}

// GetSecurityStatic returns the registered static definition.
func (v *Venue) GetSecurityStatic(_ context.Context, market int32, code string) (*opend.SecurityStaticRecord, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	rec, ok := v.statics[staticKey{market: market, code: code}]
	if !ok {
		return nil, errs.New("sim", errs.CodeNotFound, errs.WithMessage("unknown security "+code))
	}
	out := rec
	return &out, nil
}

// PlaceOrder accepts the order, then either rests it or fills it in full.
func (v *Venue) PlaceOrder(_ context.Context, req opend.PlaceOrderRequest) (*opend.PlaceOrderResponse, error) {
	if req.Code == "" || req.Qty <= 0 {
		return nil, errs.New("sim", errs.CodeInvalid,
			errs.WithMessage("code and positive qty required"),
			errs.WithProtoID(uint32(opend.ProtoPlaceOrder)))
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	v.nextOrder++
	now := v.clock().UTC()
	rec := opend.OrderRecord{
		OrderID:     v.nextOrder,
		OrderStatus: opend.OrderStatusSubmitted,
		Code:        req.Code,
		SecMarket:   req.SecMarket,
		TrdSide:     req.TrdSide,
		OrderType:   req.OrderType,
		Qty:         req.Qty,
		Price:       req.Price,
		CreateTime:  now.Format(timeLayout),
		UpdateTime:  now.Format(timeLayout),
		Remark:      req.Remark,
		TrdMarket:   req.TrdMarket,
	}
	ord := &simOrder{rec: rec, market: req.TrdMarket}
	v.orders[rec.OrderID] = ord
	v.enqueueLocked(opend.ProtoUpdateOrder, ord.rec)

	if req.OrderType == opend.OrderTypeNormal && v.restLimits {
		return &opend.PlaceOrderResponse{OrderID: rec.OrderID}, nil
	}
	v.fillLocked(ord, now)
	return &opend.PlaceOrderResponse{OrderID: rec.OrderID}, nil
}

// ModifyOrder mutates or cancels an order and mirrors the change on the queue.
func (v *Venue) ModifyOrder(_ context.Context, req opend.ModifyOrderRequest) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	ord, ok := v.orders[req.OrderID]
	if !ok {
		return errs.New("sim", errs.CodeNotFound,
			errs.WithMessage("unknown order "+strconv.FormatUint(req.OrderID, 10)),
			errs.WithProtoID(uint32(opend.ProtoModifyOrder)))
	}
	now := v.clock().UTC()
	switch req.Op {
	case opend.ModifyOpCancel:
		ord.rec.OrderStatus = opend.OrderStatusCancelledAll
	case opend.ModifyOpNormal:
		if req.Qty != nil {
			ord.rec.Qty = *req.Qty
		}
		if req.Price != nil {
			ord.rec.Price = req.Price
		}
	default:
		return errs.New("sim", errs.CodeInvalid, errs.WithMessage("unsupported modify op"))
	}
	ord.rec.UpdateTime = now.Format(timeLayout)
	v.enqueueLocked(opend.ProtoUpdateOrder, ord.rec)
	return nil
}

// FillResting fills a rested order in full and reports it on the push queue.
func (v *Venue) FillResting(orderID uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	ord, ok := v.orders[orderID]
	if !ok {
		return errs.New("sim", errs.CodeNotFound, errs.WithMessage("unknown order"))
	}
	v.fillLocked(ord, v.clock().UTC())
	return nil
}

func (v *Venue) fillLocked(ord *simOrder, now time.Time) {
	price := 0.0
	if ord.rec.Price != nil {
		price = *ord.rec.Price
	}
	if px, ok := v.marketPx[ord.rec.Code]; ok && ord.rec.OrderType == opend.OrderTypeMarket {
		price = px
	}

	v.nextFill++
	fill := opend.FillRecord{
		FillID:     v.nextFill,
		OrderID:    ord.rec.OrderID,
		Code:       ord.rec.Code,
		SecMarket:  ord.rec.SecMarket,
		TrdSide:    ord.rec.TrdSide,
		Qty:        ord.rec.Qty,
		Price:      price,
		CreateTime: now.Format(timeLayout),
		TrdMarket:  ord.market,
	}
	v.fills = append(v.fills, fill)

	ord.rec.OrderStatus = opend.OrderStatusFilledAll
	ord.rec.FillQty = ord.rec.Qty
	ord.rec.FillAvgPrice = &price
	ord.rec.UpdateTime = now.Format(timeLayout)

	v.enqueueLocked(opend.ProtoUpdateOrderFill, fill)
	v.enqueueLocked(opend.ProtoUpdateOrder, ord.rec)
}

func (v *Venue) enqueueLocked(kind opend.ProtoID, payload any) {
	if _, registered := v.pushKinds[kind]; !registered {
		return
	}
	v.pushQueue = append(v.pushQueue, opend.PushMessage{Kind: kind, Payload: payload})
	v.pushCond.Broadcast()
}
