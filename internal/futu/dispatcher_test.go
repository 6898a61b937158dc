package futu

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/futubridge/internal/opend"
	"github.com/coachpo/futubridge/internal/opend/sim"
)

// flapTransport wraps the simulator with a controllable run of poll
// failures and a connect counter.
type flapTransport struct {
	*sim.Venue

	mu            sync.Mutex
	connects      int
	failRemaining int
}

func newFlapTransport(failures int) *flapTransport {
	return &flapTransport{Venue: sim.NewVenue(), failRemaining: failures}
}

func (f *flapTransport) Connect(ctx context.Context, host string, port int, clientID string, clientVer int32) error {
	f.mu.Lock()
	f.connects++
	f.mu.Unlock()
	return f.Venue.Connect(ctx, host, port, clientID, clientVer)
}

func (f *flapTransport) PollPush(ctx context.Context, timeout time.Duration) (*opend.PushMessage, error) {
	f.mu.Lock()
	if f.failRemaining > 0 {
		f.failRemaining--
		f.mu.Unlock()
		return nil, errors.New("poll broken")
	}
	f.mu.Unlock()
	return f.Venue.PollPush(ctx, timeout)
}

func (f *flapTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

// startGateTransport wraps the simulator and fails a run of StartPush calls.
type startGateTransport struct {
	*sim.Venue

	failStarts int
}

func (s *startGateTransport) StartPush(ctx context.Context, kinds []opend.ProtoID) error {
	if s.failStarts > 0 {
		s.failStarts--
		return errors.New("registration broken")
	}
	return s.Venue.StartPush(ctx, kinds)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestDispatcherRoutesByKind(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	venue := sim.NewVenue()
	require.NoError(t, venue.Connect(ctx, "127.0.0.1", 11111, "test", 100))

	received := make(chan opend.PushMessage, 1)
	d := NewDispatcher(venue, nil, 5*time.Millisecond, 5)
	d.Register(opend.ProtoUpdateOrder, func(_ context.Context, msg opend.PushMessage) {
		received <- msg
	})
	require.NoError(t, d.Start(ctx, []opend.ProtoID{opend.ProtoUpdateOrder}))

	venue.InjectPush(opend.PushMessage{Kind: opend.ProtoUpdateOrder, Payload: opend.OrderRecord{OrderID: 1}})

	select {
	case msg := <-received:
		assert.Equal(t, opend.ProtoUpdateOrder, msg.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("push was not routed")
	}

	cancel()
	d.Wait()
}

func TestDispatcherStartIsAdditive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	venue := sim.NewVenue()
	require.NoError(t, venue.Connect(ctx, "127.0.0.1", 11111, "test", 100))

	d := NewDispatcher(venue, nil, 5*time.Millisecond, 5)
	require.NoError(t, d.Start(ctx, []opend.ProtoID{opend.ProtoUpdateOrder}))
	require.NoError(t, d.Start(ctx, []opend.ProtoID{opend.ProtoUpdateOrderFill}))

	assert.ElementsMatch(t,
		[]opend.ProtoID{opend.ProtoUpdateOrder, opend.ProtoUpdateOrderFill},
		venue.RegisteredKinds())
	assert.ElementsMatch(t,
		[]opend.ProtoID{opend.ProtoUpdateOrder, opend.ProtoUpdateOrderFill},
		d.registeredKinds())

	cancel()
	d.Wait()
}

func TestDispatcherStartRecoversAfterRegistrationFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := &startGateTransport{Venue: sim.NewVenue(), failStarts: 1}
	require.NoError(t, transport.Connect(ctx, "127.0.0.1", 11111, "test", 100))

	d := NewDispatcher(transport, nil, 5*time.Millisecond, 5)
	received := make(chan opend.PushMessage, 1)
	d.Register(opend.ProtoUpdateOrder, func(_ context.Context, msg opend.PushMessage) {
		received <- msg
	})

	require.Error(t, d.Start(ctx, []opend.ProtoID{opend.ProtoUpdateOrder}))
	require.NoError(t, d.Start(ctx, []opend.ProtoID{opend.ProtoUpdateOrder}))

	transport.InjectPush(opend.PushMessage{Kind: opend.ProtoUpdateOrder, Payload: opend.OrderRecord{OrderID: 1}})
	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop never launched after the failed first start")
	}

	cancel()
	d.Wait()
}

func TestDispatcherFailureThresholdTriggersSingleReconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := newFlapTransport(5)
	require.NoError(t, transport.Connect(ctx, "127.0.0.1", 11111, "test", 100))

	rc := NewReconnector(transport, "127.0.0.1", 11111, "test", 100, time.Millisecond, true)
	d := NewDispatcher(transport, rc, time.Millisecond, 5)
	received := make(chan opend.PushMessage, 1)
	d.Register(opend.ProtoUpdateOrderFill, func(_ context.Context, msg opend.PushMessage) {
		received <- msg
	})
	require.NoError(t, d.Start(ctx, []opend.ProtoID{opend.ProtoUpdateOrderFill}))

	// Initial connect plus exactly one reconnect cycle for five failures.
	waitFor(t, func() bool { return transport.connectCount() == 2 }, "reconnect did not happen")
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 2, transport.connectCount())

	// Registrations were replayed and the loop is draining again.
	assert.Contains(t, transport.RegisteredKinds(), opend.ProtoUpdateOrderFill)
	transport.InjectPush(opend.PushMessage{Kind: opend.ProtoUpdateOrderFill, Payload: opend.FillRecord{FillID: 1}})
	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("push after reconnect was not routed")
	}

	cancel()
	d.Wait()
}

func TestDispatcherReconnectDisabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	transport := newFlapTransport(100)
	require.NoError(t, transport.Connect(ctx, "127.0.0.1", 11111, "test", 100))

	rc := NewReconnector(transport, "127.0.0.1", 11111, "test", 100, time.Millisecond, false)
	d := NewDispatcher(transport, rc, time.Millisecond, 5)
	require.NoError(t, d.Start(ctx, []opend.ProtoID{opend.ProtoUpdateOrder}))

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, transport.connectCount(), "disabled reconnect must never redial")

	cancel()
	d.Wait()
}

func TestDispatcherStopsPromptly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	venue := sim.NewVenue()
	require.NoError(t, venue.Connect(ctx, "127.0.0.1", 11111, "test", 100))

	d := NewDispatcher(venue, nil, 50*time.Millisecond, 5)
	require.NoError(t, d.Start(ctx, []opend.ProtoID{opend.ProtoUpdateOrder}))

	done := make(chan struct{})
	go func() {
		d.Wait()
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}
}
