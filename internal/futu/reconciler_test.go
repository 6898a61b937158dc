package futu

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/futubridge/internal/opend"
	"github.com/coachpo/futubridge/internal/schema"
)

type mapOrderCache struct {
	orders map[string]schema.Order
}

func newMapOrderCache(orders ...schema.Order) *mapOrderCache {
	c := &mapOrderCache{orders: make(map[string]schema.Order)}
	for _, o := range orders {
		c.orders[o.VenueOrderID] = o
	}
	return c
}

func (c *mapOrderCache) ByVenueOrderID(id string) (schema.Order, bool) {
	o, ok := c.orders[id]
	return o, ok
}

func (c *mapOrderCache) ByClientOrderID(id string) (schema.Order, bool) {
	for _, o := range c.orders {
		if o.ClientOrderID == id {
			return o, true
		}
	}
	return schema.Order{}, false
}

type captureSink struct {
	events []schema.ExecEvent
}

func (s *captureSink) OnExecEvent(evt schema.ExecEvent) {
	s.events = append(s.events, evt)
}

func acceptedOrder(venueOrderID string, qty int64) schema.Order {
	return schema.Order{
		VenueOrderID:  venueOrderID,
		ClientOrderID: "C-" + venueOrderID,
		Instrument:    schema.NewInstrumentID(schema.QotMarketHKSecurity, "00700"),
		Side:          schema.OrderSideBuy,
		Kind:          schema.OrderKindLimit,
		Status:        schema.OrderStatusAccepted,
		Quantity:      decimal.NewFromInt(qty),
	}
}

func fillPush(fillID, orderID uint64, qty, price float64) opend.FillRecord {
	return opend.FillRecord{
		FillID:     fillID,
		OrderID:    orderID,
		Code:       "00700",
		SecMarket:  int32(schema.QotMarketHKSecurity),
		TrdSide:    opend.TrdSideBuy,
		Qty:        qty,
		Price:      price,
		CreateTime: "2026-03-02 10:15:00.000",
		TrdMarket:  int32(schema.TrdMarketHK),
	}
}

func TestReconcilerDuplicateFillEmitsOnce(t *testing.T) {
	sink := &captureSink{}
	rec := NewReconciler(newMapOrderCache(acceptedOrder("42", 1000)), sink)

	push := fillPush(7, 42, 400, 310.5)
	rec.HandleFill(context.Background(), push)
	rec.HandleFill(context.Background(), push)
	rec.HandleFill(context.Background(), push)

	require.Len(t, sink.events, 1)
	evt := sink.events[0]
	assert.Equal(t, schema.EventOrderFilled, evt.Type)
	assert.Equal(t, "7", evt.FillID)
	assert.True(t, evt.FillQty.Equal(decimal.NewFromInt(400)))
	assert.Equal(t, schema.OrderStatusPartiallyFilled, evt.Status)
	assert.NotEmpty(t, evt.EventID)
}

func TestReconcilerFillForUnknownOrderDropped(t *testing.T) {
	sink := &captureSink{}
	rec := NewReconciler(newMapOrderCache(acceptedOrder("42", 1000)), sink)

	rec.HandleFill(context.Background(), fillPush(8, 999, 100, 310.5))

	assert.Empty(t, sink.events)
}

func TestReconcilerPartialFillsThenFilled(t *testing.T) {
	sink := &captureSink{}
	rec := NewReconciler(newMapOrderCache(acceptedOrder("42", 1000)), sink)

	rec.HandleFill(context.Background(), fillPush(1, 42, 600, 310.0))
	rec.HandleFill(context.Background(), fillPush(2, 42, 400, 311.0))

	require.Len(t, sink.events, 2)
	assert.Equal(t, schema.OrderStatusPartiallyFilled, sink.events[0].Status)
	assert.Equal(t, schema.OrderStatusFilled, sink.events[1].Status)
	assert.True(t, sink.events[1].FillQty.Equal(decimal.NewFromInt(400)))
}

func TestReconcilerOrderUpdateNeverFabricatesFills(t *testing.T) {
	sink := &captureSink{}
	rec := NewReconciler(newMapOrderCache(acceptedOrder("42", 1000)), sink)

	rec.HandleOrderUpdate(context.Background(), opend.OrderRecord{
		OrderID:     42,
		OrderStatus: opend.OrderStatusFilledAll,
		Code:        "00700",
		TrdSide:     opend.TrdSideBuy,
		Qty:         1000,
		FillQty:     1000,
	})

	assert.Empty(t, sink.events, "cumulative totals must not become fill events")
}

func TestReconcilerCumulativeFallback(t *testing.T) {
	sink := &captureSink{}
	rec := NewReconciler(newMapOrderCache(acceptedOrder("42", 1000)), sink,
		WithCumulativeFillFallback(true))

	update := opend.OrderRecord{
		OrderID:     42,
		OrderStatus: opend.OrderStatusFilledPart,
		Code:        "00700",
		TrdSide:     opend.TrdSideBuy,
		Qty:         1000,
		FillQty:     300,
	}
	rec.HandleOrderUpdate(context.Background(), update)
	rec.HandleOrderUpdate(context.Background(), update)

	require.Len(t, sink.events, 1)
	evt := sink.events[0]
	assert.Equal(t, schema.EventOrderFilled, evt.Type)
	assert.True(t, evt.FillQty.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, schema.OrderStatusPartiallyFilled, evt.Status)
}

func TestReconcilerCumulativeFallbackYieldsToRealFills(t *testing.T) {
	sink := &captureSink{}
	rec := NewReconciler(newMapOrderCache(acceptedOrder("42", 1000)), sink,
		WithCumulativeFillFallback(true))

	rec.HandleFill(context.Background(), fillPush(1, 42, 300, 310.0))
	// Update reporting the same cumulative total adds nothing.
	rec.HandleOrderUpdate(context.Background(), opend.OrderRecord{
		OrderID:     42,
		OrderStatus: opend.OrderStatusFilledPart,
		Code:        "00700",
		TrdSide:     opend.TrdSideBuy,
		Qty:         1000,
		FillQty:     300,
	})

	require.Len(t, sink.events, 1)
	assert.Equal(t, "1", sink.events[0].FillID)
}

func TestReconcilerOrderUpdateTransitions(t *testing.T) {
	sink := &captureSink{}
	order := acceptedOrder("42", 1000)
	rec := NewReconciler(newMapOrderCache(order), sink)

	rec.HandleOrderUpdate(context.Background(), opend.OrderRecord{
		OrderID:     42,
		OrderStatus: opend.OrderStatusCancelledAll,
		Code:        "00700",
		TrdSide:     opend.TrdSideBuy,
		UpdateTime:  "2026-03-02 10:20:00.000",
	})

	require.Len(t, sink.events, 1)
	evt := sink.events[0]
	assert.Equal(t, schema.EventOrderCanceled, evt.Type)
	assert.Equal(t, schema.OrderStatusCanceled, evt.Status)
	assert.Equal(t, order.ClientOrderID, evt.ClientOrderID)
}

func TestReconcilerOrderUpdateRespectsLifecycle(t *testing.T) {
	sink := &captureSink{}
	filled := acceptedOrder("42", 1000)
	filled.Status = schema.OrderStatusFilled
	rec := NewReconciler(newMapOrderCache(filled), sink)

	// Stale acceptance after the order has already filled.
	rec.HandleOrderUpdate(context.Background(), opend.OrderRecord{
		OrderID:     42,
		OrderStatus: opend.OrderStatusSubmitted,
		Code:        "00700",
		TrdSide:     opend.TrdSideBuy,
	})

	assert.Empty(t, sink.events)
}

func TestReconcilerOrderUpdateUnknownOrderDropped(t *testing.T) {
	sink := &captureSink{}
	rec := NewReconciler(newMapOrderCache(acceptedOrder("42", 1000)), sink)

	rec.HandleOrderUpdate(context.Background(), opend.OrderRecord{
		OrderID:     999,
		OrderStatus: opend.OrderStatusSubmitted,
		Code:        "00700",
		TrdSide:     opend.TrdSideBuy,
	})

	assert.Empty(t, sink.events)
}

func TestReconcilerRejectionCarriesReason(t *testing.T) {
	sink := &captureSink{}
	submitted := acceptedOrder("42", 1000)
	submitted.Status = schema.OrderStatusSubmitted
	rec := NewReconciler(newMapOrderCache(submitted), sink)

	reason := "insufficient buying power"
	rec.HandleOrderUpdate(context.Background(), opend.OrderRecord{
		OrderID:     42,
		OrderStatus: opend.OrderStatusSubmitFailed,
		Code:        "00700",
		TrdSide:     opend.TrdSideBuy,
		LastErrMsg:  &reason,
	})

	require.Len(t, sink.events, 1)
	assert.Equal(t, schema.EventOrderRejected, sink.events[0].Type)
	assert.Equal(t, reason, sink.events[0].Reason)
}

func TestReconcilerSubmissionPath(t *testing.T) {
	sink := &captureSink{}
	rec := NewReconciler(newMapOrderCache(), sink,
		withClock(func() time.Time { return time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) }))

	order := acceptedOrder("", 100)
	order.Status = schema.OrderStatusInitialized
	rec.EmitSubmitted(context.Background(), order)
	rec.EmitAccepted(context.Background(), order, "77")
	rec.EmitRejected(context.Background(), order, "market closed")

	require.Len(t, sink.events, 3)
	assert.Equal(t, schema.EventOrderSubmitted, sink.events[0].Type)
	assert.Equal(t, schema.EventOrderAccepted, sink.events[1].Type)
	assert.Equal(t, "77", sink.events[1].VenueOrderID)
	assert.Equal(t, schema.EventOrderRejected, sink.events[2].Type)
	assert.Equal(t, "market closed", sink.events[2].Reason)
	for _, evt := range sink.events {
		assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), evt.TS)
	}
}
