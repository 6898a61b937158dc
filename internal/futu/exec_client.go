package futu

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/coachpo/futubridge/config"
	"github.com/coachpo/futubridge/errs"
	"github.com/coachpo/futubridge/internal/observability"
	"github.com/coachpo/futubridge/internal/opend"
	"github.com/coachpo/futubridge/internal/schema"
)

// SubmitRequest carries one new order from the trading engine. The engine
// owns the client order id; the bridge never mints one.
type SubmitRequest struct {
	ClientOrderID string
	Instrument    schema.InstrumentID
	Side          schema.OrderSide
	Kind          schema.OrderKind
	Quantity      decimal.Decimal
	LimitPrice    *decimal.Decimal
}

// ExecClient is the execution-side consumer of the shared gateway session.
// It submits and cancels orders, folds order-update and fill pushes into
// canonical events through the reconciler, and serves account and report
// snapshots on demand.
type ExecClient struct {
	cfg     config.Settings
	client  opend.Client
	limiter *rate.Limiter
	metrics *bridgeMetrics

	store       *orderStore
	reconciler  *Reconciler
	reconnector *Reconnector
	dispatcher  *Dispatcher
	instruments *InstrumentProvider

	session  Session
	accounts *AccountService
	reports  *ReportService

	cancel context.CancelFunc
}

// NewExecClient wires an execution client over the registry's shared
// transport for the configured endpoint.
func NewExecClient(registry *opend.Registry, cfg config.Settings, sink schema.ExecEventSink) *ExecClient {
	client := registry.Acquire(cfg.Gateway.Host, cfg.Gateway.Port)
	metrics := newBridgeMetrics("exec")
	store := newOrderStore()

	// Events fold back into the cache before the engine sees them so the
	// reconciler's lifecycle gating always runs against acknowledged state.
	chained := schema.ExecEventFunc(func(evt schema.ExecEvent) {
		store.Apply(evt)
		if sink != nil {
			sink.OnExecEvent(evt)
		}
	})

	reconciler := NewReconciler(store, chained,
		WithCumulativeFillFallback(cfg.Trading.CumulativeFillFallback),
		WithReconcilerMetrics(metrics))
	reconnector := NewReconnector(client,
		cfg.Gateway.Host, cfg.Gateway.Port, cfg.Gateway.ClientID, cfg.Gateway.ClientVer,
		cfg.Resilience.ReconnectInterval, cfg.Resilience.Reconnect)
	reconnector.setMetrics(metrics)
	dispatcher := NewDispatcher(client, reconnector,
		cfg.Resilience.PollTimeout, cfg.Resilience.FailureThreshold)
	dispatcher.setMetrics(metrics)

	c := &ExecClient{
		cfg:         cfg,
		client:      client,
		limiter:     newQueryLimiter(cfg.Resilience.QueryRateLimit),
		metrics:     metrics,
		store:       store,
		reconciler:  reconciler,
		reconnector: reconnector,
		dispatcher:  dispatcher,
		instruments: NewInstrumentProvider(client),
	}
	dispatcher.Register(opend.ProtoUpdateOrder, c.onOrderUpdate)
	dispatcher.Register(opend.ProtoUpdateOrderFill, c.onFill)
	return c
}

func newQueryLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Connect dials the gateway, resolves the trading session, unlocks real
// trading when configured, subscribes account pushes, and starts the push
// loop. The loop is detached from ctx and runs until Close stops it.
func (c *ExecClient) Connect(ctx context.Context) error {
	gw := c.cfg.Gateway
	if err := c.client.Connect(ctx, gw.Host, gw.Port, gw.ClientID, gw.ClientVer); err != nil {
		return errs.New("exec", errs.CodeNetwork,
			errs.WithMessage("gateway dial failed"),
			errs.WithCause(err))
	}

	session, err := ResolveSession(ctx, c.client, c.cfg.Trading.Env, c.cfg.Trading.Market, c.cfg.Trading.AccID)
	if err != nil {
		return err
	}
	c.session = session
	c.accounts = NewAccountService(c.client, session)
	c.accounts.setMetrics(c.metrics)
	c.accounts.setInstruments(c.instruments)
	c.reports = NewReportService(c.client, session)
	c.reports.setMetrics(c.metrics)

	if session.Env == schema.EnvReal && c.cfg.Trading.UnlockPwdMD5 != "" {
		if err := c.client.UnlockTrade(ctx, true, c.cfg.Trading.UnlockPwdMD5); err != nil {
			return errs.New("exec", errs.CodeVenue,
				errs.WithMessage("trade unlock refused"),
				errs.WithProtoID(uint32(opend.ProtoUnlockTrade)),
				errs.WithCause(err))
		}
	}

	accID := session.Account.AccID
	if err := c.client.SubscribeAccountPush(ctx, []uint64{accID}); err != nil {
		return errs.New("exec", errs.CodeNetwork,
			errs.WithMessage("account push subscription failed"),
			errs.WithProtoID(uint32(opend.ProtoSubAccPush)),
			errs.WithCause(err))
	}
	c.reconnector.AddRegistration(func(ctx context.Context, client opend.Client) error {
		if session.Env == schema.EnvReal && c.cfg.Trading.UnlockPwdMD5 != "" {
			if err := client.UnlockTrade(ctx, true, c.cfg.Trading.UnlockPwdMD5); err != nil {
				return err
			}
		}
		return client.SubscribeAccountPush(ctx, []uint64{accID})
	})

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	return c.dispatcher.Start(loopCtx, []opend.ProtoID{opend.ProtoUpdateOrder, opend.ProtoUpdateOrderFill})
}

// Close stops the push loop and releases the session.
func (c *ExecClient) Close(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	c.dispatcher.Wait()
	return c.client.Disconnect(ctx)
}

// Session returns the resolved trading session. Valid after Connect.
func (c *ExecClient) Session() Session { return c.session }

// Instruments exposes the shared instrument provider.
func (c *ExecClient) Instruments() *InstrumentProvider { return c.instruments }

// Dispatcher exposes the push loop so a market-data consumer can share it.
func (c *ExecClient) Dispatcher() *Dispatcher { return c.dispatcher }

// SubmitOrder places a new order. The SUBMITTED event is emitted before the
// venue call; acknowledgement or rejection follows from the venue response.
func (c *ExecClient) SubmitOrder(ctx context.Context, req SubmitRequest) error {
	if err := validateSubmit(req); err != nil {
		return err
	}
	if _, exists := c.store.ByClientOrderID(req.ClientOrderID); exists {
		return errs.New("exec", errs.CodeInvalid,
			errs.WithMessage(fmt.Sprintf("client order id %s already in use", req.ClientOrderID)))
	}

	now := time.Now()
	order := schema.Order{
		ClientOrderID: req.ClientOrderID,
		Instrument:    req.Instrument,
		Side:          req.Side,
		Kind:          req.Kind,
		Status:        schema.OrderStatusInitialized,
		Quantity:      req.Quantity,
		LimitPrice:    req.LimitPrice,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	c.store.Track(order)
	c.reconciler.EmitSubmitted(ctx, order)

	if err := c.limiter.Wait(ctx); err != nil {
		c.reconciler.EmitRejected(ctx, order, "submission aborted: "+err.Error())
		return err
	}
	qty, _ := req.Quantity.Float64()
	placeReq := opend.PlaceOrderRequest{
		TrdEnv:    int32(c.session.Env),
		AccID:     c.session.Account.AccID,
		TrdMarket: int32(c.orderMarket(req.Instrument)),
		TrdSide:   toTrdSide(req.Side),
		OrderType: toOrderType(req.Kind),
		Code:      req.Instrument.Code,
		SecMarket: int32(schema.QotMarketForVenue(req.Instrument.Venue)),
		Qty:       qty,
	}
	if req.LimitPrice != nil {
		price, _ := req.LimitPrice.Float64()
		placeReq.Price = &price
	}
	// The remark round-trips the engine's id through venue pushes, so an
	// order-update push racing the placement response can still be bound.
	remark := req.ClientOrderID
	placeReq.Remark = &remark

	resp, err := c.client.PlaceOrder(ctx, placeReq)
	if err != nil {
		c.reconciler.EmitRejected(ctx, order, err.Error())
		return errs.New("exec", errs.CodeVenue,
			errs.WithMessage("order placement refused"),
			errs.WithProtoID(uint32(opend.ProtoPlaceOrder)),
			errs.WithCause(err))
	}
	venueOrderID := strconv.FormatUint(resp.OrderID, 10)
	c.store.Bind(req.ClientOrderID, venueOrderID)
	c.reconciler.EmitAccepted(ctx, order, venueOrderID)
	observability.Log().Info("order placed",
		observability.F("client_order_id", req.ClientOrderID),
		observability.F("venue_order_id", venueOrderID))
	return nil
}

// CancelOrder requests cancellation. An order the venue has not yet
// acknowledged has no venue id and is rejected locally without a venue call.
func (c *ExecClient) CancelOrder(ctx context.Context, clientOrderID string) error {
	order, ok := c.store.ByClientOrderID(clientOrderID)
	if !ok {
		return errs.New("exec", errs.CodeNotFound,
			errs.WithMessage(fmt.Sprintf("order %s unknown", clientOrderID)))
	}
	if order.VenueOrderID == "" {
		return errs.New("exec", errs.CodeInvalid,
			errs.WithMessage(fmt.Sprintf("order %s has no venue id yet", clientOrderID)))
	}
	if order.Status.IsTerminal() {
		return errs.New("exec", errs.CodeInvalid,
			errs.WithMessage(fmt.Sprintf("order %s already %s", clientOrderID, order.Status)))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	// Emitted before the venue call so the terminal CANCELED push can never
	// overtake the pending transition.
	c.reconciler.EmitPendingCancel(ctx, order)
	venueID, _ := strconv.ParseUint(order.VenueOrderID, 10, 64)
	err := c.client.ModifyOrder(ctx, opend.ModifyOrderRequest{
		TrdEnv:    int32(c.session.Env),
		AccID:     c.session.Account.AccID,
		TrdMarket: int32(c.orderMarket(order.Instrument)),
		OrderID:   venueID,
		Op:        opend.ModifyOpCancel,
	})
	if err != nil {
		return errs.New("exec", errs.CodeVenue,
			errs.WithMessage("cancel refused"),
			errs.WithProtoID(uint32(opend.ProtoModifyOrder)),
			errs.WithCause(err))
	}
	return nil
}

// ModifyOrder changes quantity or price on a working order.
func (c *ExecClient) ModifyOrder(ctx context.Context, clientOrderID string, quantity, price *decimal.Decimal) error {
	order, ok := c.store.ByClientOrderID(clientOrderID)
	if !ok {
		return errs.New("exec", errs.CodeNotFound,
			errs.WithMessage(fmt.Sprintf("order %s unknown", clientOrderID)))
	}
	if order.VenueOrderID == "" {
		return errs.New("exec", errs.CodeInvalid,
			errs.WithMessage(fmt.Sprintf("order %s has no venue id yet", clientOrderID)))
	}
	if quantity == nil && price == nil {
		return errs.New("exec", errs.CodeInvalid,
			errs.WithMessage("modify requires a new quantity or price"))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	venueID, _ := strconv.ParseUint(order.VenueOrderID, 10, 64)
	req := opend.ModifyOrderRequest{
		TrdEnv:    int32(c.session.Env),
		AccID:     c.session.Account.AccID,
		TrdMarket: int32(c.orderMarket(order.Instrument)),
		OrderID:   venueID,
		Op:        opend.ModifyOpNormal,
	}
	if quantity != nil {
		qty, _ := quantity.Float64()
		req.Qty = &qty
	}
	if price != nil {
		px, _ := price.Float64()
		req.Price = &px
	}
	if err := c.client.ModifyOrder(ctx, req); err != nil {
		return errs.New("exec", errs.CodeVenue,
			errs.WithMessage("modify refused"),
			errs.WithProtoID(uint32(opend.ProtoModifyOrder)),
			errs.WithCause(err))
	}
	return nil
}

// Balances returns the per-currency balance snapshot.
func (c *ExecClient) Balances(ctx context.Context) ([]schema.Balance, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.accounts.Balances(ctx)
}

// Positions returns the open-position snapshot.
func (c *ExecClient) Positions(ctx context.Context) ([]schema.PositionReport, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.accounts.Positions(ctx)
}

// OrderStatusReports returns the order snapshot across markets.
func (c *ExecClient) OrderStatusReports(ctx context.Context) ([]schema.OrderStatusReport, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.reports.OrderStatusReports(ctx)
}

// FillReports returns the execution snapshot across markets.
func (c *ExecClient) FillReports(ctx context.Context) ([]schema.FillReport, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.reports.FillReports(ctx)
}

// orderMarket routes an instrument to its trade market, falling back to
// the session's primary market for unmapped venues.
func (c *ExecClient) orderMarket(id schema.InstrumentID) schema.TrdMarket {
	if market := schema.TrdMarketForVenue(id.Venue); market != schema.TrdMarketUnknown {
		return market
	}
	return c.session.Market
}

func (c *ExecClient) onOrderUpdate(ctx context.Context, msg opend.PushMessage) {
	var rec opend.OrderRecord
	switch payload := msg.Payload.(type) {
	case opend.OrderRecord:
		rec = payload
	case *opend.OrderRecord:
		rec = *payload
	default:
		observability.Log().Warn("order update push with unexpected payload",
			observability.F("payload", fmt.Sprintf("%T", msg.Payload)))
		return
	}
	c.bindFromRemark(rec)
	c.reconciler.HandleOrderUpdate(ctx, rec)
}

// bindFromRemark attaches the venue order id carried by a push whose remark
// names a tracked client order the response has not yet bound.
func (c *ExecClient) bindFromRemark(rec opend.OrderRecord) {
	if rec.Remark == nil || *rec.Remark == "" || rec.OrderID == 0 {
		return
	}
	venueOrderID := strconv.FormatUint(rec.OrderID, 10)
	if _, bound := c.store.ByVenueOrderID(venueOrderID); bound {
		return
	}
	if order, ok := c.store.ByClientOrderID(*rec.Remark); ok && order.VenueOrderID == "" {
		c.store.Bind(order.ClientOrderID, venueOrderID)
	}
}

func (c *ExecClient) onFill(ctx context.Context, msg opend.PushMessage) {
	switch rec := msg.Payload.(type) {
	case opend.FillRecord:
		c.reconciler.HandleFill(ctx, rec)
	case *opend.FillRecord:
		c.reconciler.HandleFill(ctx, *rec)
	default:
		observability.Log().Warn("fill push with unexpected payload",
			observability.F("payload", fmt.Sprintf("%T", msg.Payload)))
	}
}

func validateSubmit(req SubmitRequest) error {
	if req.ClientOrderID == "" {
		return errs.New("exec", errs.CodeInvalid, errs.WithMessage("client order id required"))
	}
	if req.Instrument.IsZero() {
		return errs.New("exec", errs.CodeInvalid, errs.WithMessage("instrument required"))
	}
	if !req.Quantity.IsPositive() {
		return errs.New("exec", errs.CodeInvalid, errs.WithMessage("quantity must be positive"))
	}
	if req.Kind == schema.OrderKindLimit && req.LimitPrice == nil {
		return errs.New("exec", errs.CodeInvalid, errs.WithMessage("limit order requires a price"))
	}
	if req.Side != schema.OrderSideBuy && req.Side != schema.OrderSideSell {
		return errs.New("exec", errs.CodeInvalid, errs.WithMessage("side must be BUY or SELL"))
	}
	return nil
}
