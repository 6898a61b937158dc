package futu

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/coachpo/futubridge/internal/observability"
	"github.com/coachpo/futubridge/internal/opend"
	"github.com/coachpo/futubridge/internal/schema"
)

// OrderCache is the engine-owned view of locally known orders. The
// reconciler only reads it; returned orders are copies and mutating them
// has no effect on the cache.
type OrderCache interface {
	ByVenueOrderID(venueOrderID string) (schema.Order, bool)
	ByClientOrderID(clientOrderID string) (schema.Order, bool)
}

// Reconciler converts venue order-update and fill pushes into canonical
// execution events. Fill quantity is sourced exclusively from fill pushes;
// order updates drive every other lifecycle transition. Each fill id is
// emitted at most once for the lifetime of the reconciler.
//
// One mutex covers every emission path, so the transition gate and the
// resulting event are atomic with respect to pushes racing the submission
// response.
type Reconciler struct {
	cache   OrderCache
	sink    schema.ExecEventSink
	metrics *bridgeMetrics
	now     func() time.Time

	// cumulativeFallback lets an order update synthesize the missing fill
	// delta when the venue's cumulative filled quantity runs ahead of the
	// fills observed on the push channel. Off by default.
	cumulativeFallback bool

	mu        sync.Mutex
	seenFills map[string]struct{}
	cumFilled map[string]decimal.Decimal
}

// NewReconciler wires a reconciler over the engine order cache and event sink.
func NewReconciler(cache OrderCache, sink schema.ExecEventSink, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		cache:     cache,
		sink:      sink,
		now:       time.Now,
		seenFills: make(map[string]struct{}),
		cumFilled: make(map[string]decimal.Decimal),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReconcilerOption adjusts reconciler construction.
type ReconcilerOption func(*Reconciler)

// WithCumulativeFillFallback enables synthesizing fill deltas from order
// updates whose cumulative quantity exceeds the observed fills.
func WithCumulativeFillFallback(enabled bool) ReconcilerOption {
	return func(r *Reconciler) { r.cumulativeFallback = enabled }
}

// WithReconcilerMetrics attaches instrumentation.
func WithReconcilerMetrics(m *bridgeMetrics) ReconcilerOption {
	return func(r *Reconciler) { r.metrics = m }
}

func withClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

// HandleOrderUpdate applies one order-update push. Updates for venue order
// ids the engine does not know are dropped. Fill-quantity statuses never
// emit events here unless the cumulative fallback is enabled; the fill
// channel is the single source of execution quantity.
func (r *Reconciler) HandleOrderUpdate(ctx context.Context, rec opend.OrderRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.OrderID == 0 {
		observability.Log().Debug("order update without order id dropped")
		r.metrics.addDropped(ctx)
		return
	}
	venueOrderID := strconv.FormatUint(rec.OrderID, 10)
	order, ok := r.cache.ByVenueOrderID(venueOrderID)
	if !ok {
		observability.Log().Debug("order update for unknown order dropped",
			observability.F("venue_order_id", venueOrderID))
		r.metrics.addDropped(ctx)
		return
	}
	status, known := MapOrderStatus(rec.OrderStatus)
	if !known {
		observability.Log().Warn("order update with unmapped venue status",
			observability.F("venue_order_id", venueOrderID),
			observability.F("venue_status", rec.OrderStatus))
	}

	switch status {
	case schema.OrderStatusPartiallyFilled, schema.OrderStatusFilled:
		if r.cumulativeFallback {
			r.reconcileCumulativeLocked(ctx, order, rec)
		}
		return
	case schema.OrderStatusInitialized, schema.OrderStatusSubmitted:
		// Pre-acceptance states are driven locally by the submission path.
		return
	}

	if !order.Status.CanTransition(status) {
		observability.Log().Debug("order update ignored by lifecycle",
			observability.F("venue_order_id", venueOrderID),
			observability.F("from", string(order.Status)),
			observability.F("to", string(status)))
		return
	}

	evt := r.newEvent(eventTypeFor(status), order)
	evt.Status = status
	evt.TS = parseVenueTime(rec.UpdateTime, r.now())
	if status == schema.OrderStatusRejected && rec.LastErrMsg != nil {
		evt.Reason = *rec.LastErrMsg
	}
	r.emit(ctx, evt)
}

// HandleFill applies one fill push. Duplicate fill ids are suppressed and
// fills for unknown venue orders are dropped without emitting anything.
func (r *Reconciler) HandleFill(ctx context.Context, rec opend.FillRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fill, err := parseFillRecord(rec, r.now())
	if err != nil {
		observability.Log().Warn("fill push rejected",
			observability.F("error", err.Error()))
		r.metrics.addDropped(ctx)
		return
	}
	order, ok := r.cache.ByVenueOrderID(fill.VenueOrderID)
	if !ok {
		observability.Log().Debug("fill for unknown order dropped",
			observability.F("venue_order_id", fill.VenueOrderID),
			observability.F("fill_id", fill.FillID))
		r.metrics.addDropped(ctx)
		return
	}

	if _, dup := r.seenFills[fill.FillID]; dup {
		observability.Log().Debug("duplicate fill suppressed",
			observability.F("fill_id", fill.FillID))
		r.metrics.addFillDeduped(ctx)
		return
	}
	r.seenFills[fill.FillID] = struct{}{}
	cum := r.cumulativeLocked(order).Add(fill.Quantity)
	r.cumFilled[fill.VenueOrderID] = cum

	status := schema.OrderStatusPartiallyFilled
	if cum.GreaterThanOrEqual(order.Quantity) {
		status = schema.OrderStatusFilled
	}
	evt := r.newEvent(schema.EventOrderFilled, order)
	evt.Status = status
	evt.FillID = fill.FillID
	evt.FillQty = fill.Quantity
	evt.FillPrice = fill.Price
	evt.TS = fill.TradedAt
	r.emit(ctx, evt)
}

// EmitSubmitted reports the optimistic local submission transition.
func (r *Reconciler) EmitSubmitted(ctx context.Context, order schema.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	evt := r.newEvent(schema.EventOrderSubmitted, order)
	evt.Status = schema.OrderStatusSubmitted
	evt.TS = r.now()
	r.emit(ctx, evt)
}

// EmitAccepted reports venue acknowledgement carrying the assigned order id.
// Suppressed when a push already advanced the order past acceptance.
func (r *Reconciler) EmitAccepted(ctx context.Context, order schema.Order, venueOrderID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.cacheAllowsLocked(order.ClientOrderID, schema.OrderStatusAccepted) {
		return
	}
	evt := r.newEvent(schema.EventOrderAccepted, order)
	evt.VenueOrderID = venueOrderID
	evt.Status = schema.OrderStatusAccepted
	evt.TS = r.now()
	r.emit(ctx, evt)
}

// EmitRejected reports a submission refusal with the venue's reason.
func (r *Reconciler) EmitRejected(ctx context.Context, order schema.Order, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.cacheAllowsLocked(order.ClientOrderID, schema.OrderStatusRejected) {
		return
	}
	evt := r.newEvent(schema.EventOrderRejected, order)
	evt.Status = schema.OrderStatusRejected
	evt.Reason = reason
	evt.TS = r.now()
	r.emit(ctx, evt)
}

// EmitPendingCancel reports local acceptance of a cancel request.
func (r *Reconciler) EmitPendingCancel(ctx context.Context, order schema.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.cacheAllowsLocked(order.ClientOrderID, schema.OrderStatusPendingCancel) {
		return
	}
	evt := r.newEvent(schema.EventOrderPendingCancel, order)
	evt.Status = schema.OrderStatusPendingCancel
	evt.TS = r.now()
	r.emit(ctx, evt)
}

// cacheAllowsLocked reports whether the cached order, if any, still permits
// the transition. Orders not yet cached are always allowed.
func (r *Reconciler) cacheAllowsLocked(clientOrderID string, next schema.OrderStatus) bool {
	current, ok := r.cache.ByClientOrderID(clientOrderID)
	if !ok {
		return true
	}
	return current.Status.CanTransition(next)
}

// reconcileCumulativeLocked synthesizes one fill event covering the gap
// between the venue's cumulative filled quantity and the fills already
// observed. The synthetic fill id is derived from the order id and the new
// cumulative total, so a repeated update cannot double-emit.
func (r *Reconciler) reconcileCumulativeLocked(ctx context.Context, order schema.Order, rec opend.OrderRecord) {
	venueOrderID := strconv.FormatUint(rec.OrderID, 10)
	venueCum := decimal.NewFromFloat(rec.FillQty)

	cum := r.cumulativeLocked(order)
	if venueCum.LessThanOrEqual(cum) {
		return
	}
	delta := venueCum.Sub(cum)
	fillID := fmt.Sprintf("cum-%s-%s", venueOrderID, venueCum.String())
	if _, dup := r.seenFills[fillID]; dup {
		return
	}
	r.seenFills[fillID] = struct{}{}
	r.cumFilled[venueOrderID] = venueCum

	status := schema.OrderStatusPartiallyFilled
	if venueCum.GreaterThanOrEqual(order.Quantity) {
		status = schema.OrderStatusFilled
	}
	evt := r.newEvent(schema.EventOrderFilled, order)
	evt.Status = status
	evt.FillID = fillID
	evt.FillQty = delta
	if rec.FillAvgPrice != nil {
		evt.FillPrice = decimal.NewFromFloat(*rec.FillAvgPrice)
	}
	evt.TS = parseVenueTime(rec.UpdateTime, r.now())
	observability.Log().Warn("cumulative fill fallback engaged",
		observability.F("venue_order_id", venueOrderID),
		observability.F("delta", delta.String()))
	r.emit(ctx, evt)
}

// cumulativeLocked returns the tracked cumulative fill quantity for the
// order, seeding it from the cache snapshot the first time the order is
// seen. Callers must hold r.mu.
func (r *Reconciler) cumulativeLocked(order schema.Order) decimal.Decimal {
	if cum, ok := r.cumFilled[order.VenueOrderID]; ok {
		return cum
	}
	r.cumFilled[order.VenueOrderID] = order.FilledQty
	return order.FilledQty
}

func (r *Reconciler) newEvent(evtType schema.ExecEventType, order schema.Order) schema.ExecEvent {
	return schema.ExecEvent{
		EventID:       uuid.NewString(),
		Type:          evtType,
		ClientOrderID: order.ClientOrderID,
		VenueOrderID:  order.VenueOrderID,
		Instrument:    order.Instrument,
	}
}

func (r *Reconciler) emit(ctx context.Context, evt schema.ExecEvent) {
	r.metrics.addEvent(ctx, string(evt.Type))
	r.sink.OnExecEvent(evt)
}

func eventTypeFor(status schema.OrderStatus) schema.ExecEventType {
	switch status {
	case schema.OrderStatusAccepted:
		return schema.EventOrderAccepted
	case schema.OrderStatusPendingCancel:
		return schema.EventOrderPendingCancel
	case schema.OrderStatusCanceled:
		return schema.EventOrderCanceled
	case schema.OrderStatusRejected:
		return schema.EventOrderRejected
	default:
		return schema.EventOrderFilled
	}
}
