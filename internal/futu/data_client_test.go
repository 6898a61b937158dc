package futu

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/futubridge/internal/opend"
	"github.com/coachpo/futubridge/internal/opend/sim"
	"github.com/coachpo/futubridge/internal/schema"
)

func TestDataClientRoutesQuotesAndTicks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	venue := sim.NewVenue()
	require.NoError(t, venue.Connect(ctx, "127.0.0.1", 11111, "test", 100))

	quotes := make(chan schema.Quote, 1)
	ticks := make(chan schema.Tick, 1)
	d := NewDispatcher(venue, nil, 5*time.Millisecond, 5)
	data := NewDataClient(d, DataHandlers{
		OnQuote: func(q schema.Quote) { quotes <- q },
		OnTick:  func(tk schema.Tick) { ticks <- tk },
	})
	require.NoError(t, data.Start(ctx))

	assert.ElementsMatch(t,
		[]opend.ProtoID{opend.ProtoUpdateBasicQot, opend.ProtoUpdateTicker},
		venue.RegisteredKinds(), "only kinds with handlers are registered")

	venue.InjectPush(opend.PushMessage{Kind: opend.ProtoUpdateBasicQot, Payload: opend.BasicQotRecord{
		Code:      "00700",
		SecMarket: int32(schema.QotMarketHKSecurity),
		CurPrice:  312.4,
		Volume:    1200,
	}})
	venue.InjectPush(opend.PushMessage{Kind: opend.ProtoUpdateTicker, Payload: opend.TickerRecord{
		Code:      "00700",
		SecMarket: int32(schema.QotMarketHKSecurity),
		Sequence:  9,
		Price:     312.6,
		Volume:    500,
	}})

	select {
	case q := <-quotes:
		assert.Equal(t, schema.VenueHKEX, q.Instrument.Venue)
		assert.True(t, q.Last.Equal(decimal.NewFromFloat(312.4)))
	case <-time.After(2 * time.Second):
		t.Fatal("quote was not delivered")
	}
	select {
	case tk := <-ticks:
		assert.Equal(t, int64(9), tk.Sequence)
		assert.Equal(t, int64(500), tk.Volume)
	case <-time.After(2 * time.Second):
		t.Fatal("tick was not delivered")
	}

	cancel()
	d.Wait()
}

func TestDataClientSharesExecDispatcher(t *testing.T) {
	venue := tradingVenue(t)
	client, sink := newConnectedExecClient(t, venue, testSettings())

	quotes := make(chan schema.Quote, 1)
	data := NewDataClient(client.Dispatcher(), DataHandlers{
		OnQuote: func(q schema.Quote) { quotes <- q },
	})
	require.NoError(t, data.Start(context.Background()))

	// Both consumers' kinds coexist on the one registration set.
	assert.Subset(t, venue.RegisteredKinds(), []opend.ProtoID{
		opend.ProtoUpdateOrder, opend.ProtoUpdateOrderFill, opend.ProtoUpdateBasicQot,
	})

	venue.InjectPush(opend.PushMessage{Kind: opend.ProtoUpdateBasicQot, Payload: opend.BasicQotRecord{
		Code:      "00700",
		SecMarket: int32(schema.QotMarketHKSecurity),
		CurPrice:  310.0,
	}})
	select {
	case <-quotes:
	case <-time.After(2 * time.Second):
		t.Fatal("quote was not delivered on the shared loop")
	}

	require.NoError(t, client.SubmitOrder(context.Background(), marketSubmit("D-1", 100)))
	for i := 0; i < 3; i++ {
		sink.next(t)
	}
}
