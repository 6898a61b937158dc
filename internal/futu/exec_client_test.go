package futu

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/futubridge/config"
	"github.com/coachpo/futubridge/errs"
	"github.com/coachpo/futubridge/internal/opend"
	"github.com/coachpo/futubridge/internal/opend/sim"
	"github.com/coachpo/futubridge/internal/schema"
)

type chanSink struct {
	events chan schema.ExecEvent
}

func newChanSink() *chanSink {
	return &chanSink{events: make(chan schema.ExecEvent, 32)}
}

func (s *chanSink) OnExecEvent(evt schema.ExecEvent) { s.events <- evt }

func (s *chanSink) next(t *testing.T) schema.ExecEvent {
	t.Helper()
	select {
	case evt := <-s.events:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for execution event")
		return schema.ExecEvent{}
	}
}

func (s *chanSink) expectNone(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case evt := <-s.events:
		t.Fatalf("unexpected event %s for %s", evt.Type, evt.ClientOrderID)
	case <-time.After(within):
	}
}

func testSettings() config.Settings {
	cfg := config.Default()
	cfg.Resilience.PollTimeout = 5 * time.Millisecond
	cfg.Resilience.ReconnectInterval = time.Millisecond
	return cfg
}

func newConnectedExecClient(t *testing.T, venue opend.Client, cfg config.Settings) (*ExecClient, *chanSink) {
	t.Helper()
	registry := opend.NewRegistry(func(string, int) opend.Client { return venue })
	sink := newChanSink()
	client := NewExecClient(registry, cfg, sink)
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return client, sink
}

func tradingVenue(t *testing.T) *sim.Venue {
	t.Helper()
	venue := sim.NewVenue()
	venue.AddAccount(opend.AccountRecord{AccID: 100, TrdEnv: 0, TrdMarketAuths: []int32{1}})
	venue.SetMarketPrice("00700", 310)
	return venue
}

func marketSubmit(clientOrderID string, qty int64) SubmitRequest {
	return SubmitRequest{
		ClientOrderID: clientOrderID,
		Instrument:    schema.NewInstrumentID(schema.QotMarketHKSecurity, "00700"),
		Side:          schema.OrderSideBuy,
		Kind:          schema.OrderKindMarket,
		Quantity:      decimal.NewFromInt(qty),
	}
}

func limitSubmit(clientOrderID string, qty int64, price float64) SubmitRequest {
	px := decimal.NewFromFloat(price)
	req := marketSubmit(clientOrderID, qty)
	req.Kind = schema.OrderKindLimit
	req.LimitPrice = &px
	return req
}

func TestExecClientMarketOrderLifecycle(t *testing.T) {
	client, sink := newConnectedExecClient(t, tradingVenue(t), testSettings())

	require.NoError(t, client.SubmitOrder(context.Background(), marketSubmit("O-1", 500)))

	submitted := sink.next(t)
	assert.Equal(t, schema.EventOrderSubmitted, submitted.Type)
	assert.Equal(t, "O-1", submitted.ClientOrderID)

	accepted := sink.next(t)
	assert.Equal(t, schema.EventOrderAccepted, accepted.Type)
	assert.NotEmpty(t, accepted.VenueOrderID)

	filled := sink.next(t)
	assert.Equal(t, schema.EventOrderFilled, filled.Type)
	assert.Equal(t, schema.OrderStatusFilled, filled.Status)
	assert.True(t, filled.FillQty.Equal(decimal.NewFromInt(500)))
	assert.True(t, filled.FillPrice.Equal(decimal.NewFromInt(310)))
	assert.NotEmpty(t, filled.FillID)

	// The trailing FilledAll order update must not produce a second fill.
	sink.expectNone(t, 50*time.Millisecond)

	order, ok := client.store.ByClientOrderID("O-1")
	require.True(t, ok)
	assert.Equal(t, schema.OrderStatusFilled, order.Status)
	assert.True(t, order.FilledQty.Equal(decimal.NewFromInt(500)))
}

func TestExecClientLimitOrderCancelLifecycle(t *testing.T) {
	venue := tradingVenue(t)
	venue.SetRestLimits(true)
	client, sink := newConnectedExecClient(t, venue, testSettings())

	require.NoError(t, client.SubmitOrder(context.Background(), limitSubmit("O-2", 1000, 305)))
	assert.Equal(t, schema.EventOrderSubmitted, sink.next(t).Type)
	assert.Equal(t, schema.EventOrderAccepted, sink.next(t).Type)

	require.NoError(t, client.CancelOrder(context.Background(), "O-2"))
	assert.Equal(t, schema.EventOrderPendingCancel, sink.next(t).Type)

	canceled := sink.next(t)
	assert.Equal(t, schema.EventOrderCanceled, canceled.Type)
	assert.Equal(t, schema.OrderStatusCanceled, canceled.Status)
	sink.expectNone(t, 50*time.Millisecond)
}

func TestExecClientRestingLimitFills(t *testing.T) {
	venue := tradingVenue(t)
	venue.SetRestLimits(true)
	client, sink := newConnectedExecClient(t, venue, testSettings())

	require.NoError(t, client.SubmitOrder(context.Background(), limitSubmit("O-3", 200, 305)))
	assert.Equal(t, schema.EventOrderSubmitted, sink.next(t).Type)
	accepted := sink.next(t)
	assert.Equal(t, schema.EventOrderAccepted, accepted.Type)

	venueID, err := strconv.ParseUint(accepted.VenueOrderID, 10, 64)
	require.NoError(t, err)
	require.NoError(t, venue.FillResting(venueID))

	filled := sink.next(t)
	assert.Equal(t, schema.EventOrderFilled, filled.Type)
	assert.True(t, filled.FillPrice.Equal(decimal.NewFromInt(305)))
}

func TestExecClientCancelRequiresVenueID(t *testing.T) {
	client, _ := newConnectedExecClient(t, tradingVenue(t), testSettings())

	err := client.CancelOrder(context.Background(), "missing")
	var bridgeErr *errs.E
	require.ErrorAs(t, err, &bridgeErr)
	assert.Equal(t, errs.CodeNotFound, bridgeErr.Code)

	// Tracked but never acknowledged: rejected locally, no venue call.
	client.store.Track(schema.Order{
		ClientOrderID: "pending",
		Instrument:    schema.NewInstrumentID(schema.QotMarketHKSecurity, "00700"),
		Status:        schema.OrderStatusSubmitted,
		Quantity:      decimal.NewFromInt(1),
	})
	err = client.CancelOrder(context.Background(), "pending")
	require.ErrorAs(t, err, &bridgeErr)
	assert.Equal(t, errs.CodeInvalid, bridgeErr.Code)
}

func TestExecClientSubmitValidation(t *testing.T) {
	client, sink := newConnectedExecClient(t, tradingVenue(t), testSettings())

	req := limitSubmit("O-4", 100, 305)
	req.LimitPrice = nil
	assert.Error(t, client.SubmitOrder(context.Background(), req), "limit without price")

	req = marketSubmit("", 100)
	assert.Error(t, client.SubmitOrder(context.Background(), req), "missing client order id")

	req = marketSubmit("O-5", 0)
	assert.Error(t, client.SubmitOrder(context.Background(), req), "non-positive quantity")

	require.NoError(t, client.SubmitOrder(context.Background(), marketSubmit("O-6", 100)))
	assert.Error(t, client.SubmitOrder(context.Background(), marketSubmit("O-6", 100)),
		"duplicate client order id")

	for i := 0; i < 3; i++ {
		sink.next(t)
	}
}

func TestExecClientSnapshotsAfterTrade(t *testing.T) {
	venue := tradingVenue(t)
	venue.SetStatic(opend.SecurityStaticRecord{Market: 1, Code: "00700", Name: "Tencent", LotSize: 100})
	client, sink := newConnectedExecClient(t, venue, testSettings())

	require.NoError(t, client.SubmitOrder(context.Background(), marketSubmit("O-7", 300)))
	for i := 0; i < 3; i++ {
		sink.next(t)
	}

	fills, err := client.FillReports(context.Background())
	require.NoError(t, err)
	require.Len(t, fills, 1)
	assert.True(t, fills[0].Quantity.Equal(decimal.NewFromInt(300)))

	orders, err := client.OrderStatusReports(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, schema.OrderStatusFilled, orders[0].Status)

	positions, err := client.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, schema.PositionSideLong, positions[0].Side)
	assert.True(t, positions[0].Quantity.Equal(decimal.NewFromInt(300)))

	inst, ok := client.Instruments().Cached(positions[0].Instrument)
	require.True(t, ok, "position snapshot should backfill the instrument cache")
	assert.Equal(t, "Tencent", inst.Name)
	assert.Equal(t, int32(100), inst.LotSize)
}

func TestExecClientRealEnvUnlocks(t *testing.T) {
	venue := sim.NewVenue()
	venue.AddAccount(opend.AccountRecord{AccID: 900, TrdEnv: 1, TrdMarketAuths: []int32{1}})

	cfg := testSettings()
	cfg.Trading.Env = schema.EnvReal
	cfg.Trading.UnlockPwdMD5 = "d41d8cd98f00b204e9800998ecf8427e"

	client, _ := newConnectedExecClient(t, venue, cfg)
	assert.Equal(t, schema.EnvReal, client.Session().Env)
	assert.Equal(t, uint64(900), client.Session().Account.AccID)
}
