package futu

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/coachpo/futubridge/internal/observability"
	"github.com/coachpo/futubridge/internal/opend"
)

// PushHandler consumes one routed push message.
type PushHandler func(ctx context.Context, msg opend.PushMessage)

// Dispatcher drains the transport's push queue on a single loop and routes
// each message to the handler registered for its protocol kind. Consumers
// register additively; starting a second consumer extends the registration
// set without disturbing kinds already flowing.
type Dispatcher struct {
	client      opend.Client
	reconnector *Reconnector
	pollTimeout time.Duration
	threshold   int
	metrics     *bridgeMetrics

	mu       sync.Mutex
	handlers map[opend.ProtoID]PushHandler
	kinds    map[opend.ProtoID]struct{}
	running  bool

	wg conc.WaitGroup
}

// NewDispatcher builds a dispatcher over one transport session. threshold
// consecutive poll failures trigger one reconnect cycle; pollTimeout bounds
// each blocking poll so shutdown stays prompt.
func NewDispatcher(client opend.Client, reconnector *Reconnector, pollTimeout time.Duration, threshold int) *Dispatcher {
	if pollTimeout <= 0 {
		pollTimeout = 100 * time.Millisecond
	}
	if threshold <= 0 {
		threshold = 5
	}
	d := &Dispatcher{
		client:      client,
		reconnector: reconnector,
		pollTimeout: pollTimeout,
		threshold:   threshold,
		handlers:    make(map[opend.ProtoID]PushHandler),
		kinds:       make(map[opend.ProtoID]struct{}),
	}
	if reconnector != nil {
		reconnector.AddRegistration(func(ctx context.Context, client opend.Client) error {
			return client.StartPush(ctx, d.registeredKinds())
		})
	}
	return d
}

func (d *Dispatcher) setMetrics(m *bridgeMetrics) { d.metrics = m }

// Register binds a handler to a push kind. Later registrations for the same
// kind replace the earlier handler.
func (d *Dispatcher) Register(kind opend.ProtoID, handler PushHandler) {
	d.mu.Lock()
	d.handlers[kind] = handler
	d.mu.Unlock()
}

// Start merges the kinds into the transport's push registration and launches
// the poll loop if it is not already running. The loop exits when ctx ends.
// A failed registration leaves the loop unlaunched so a later Start can
// still bring it up.
func (d *Dispatcher) Start(ctx context.Context, kinds []opend.ProtoID) error {
	d.mu.Lock()
	for _, kind := range kinds {
		d.kinds[kind] = struct{}{}
	}
	d.mu.Unlock()

	if err := d.client.StartPush(ctx, kinds); err != nil {
		return err
	}

	d.mu.Lock()
	launch := !d.running
	d.running = true
	d.mu.Unlock()
	if launch {
		d.wg.Go(func() { d.loop(ctx) })
	}
	return nil
}

// Wait blocks until the poll loop has exited.
func (d *Dispatcher) Wait() { d.wg.Wait() }

func (d *Dispatcher) registeredKinds() []opend.ProtoID {
	d.mu.Lock()
	defer d.mu.Unlock()
	kinds := make([]opend.ProtoID, 0, len(d.kinds))
	for kind := range d.kinds {
		kinds = append(kinds, kind)
	}
	return kinds
}

// loop drains pushes until the context ends. The consecutive-failure counter
// resets on any successful poll, including empty ones, so a flapping but
// mostly healthy session never accumulates toward the threshold.
func (d *Dispatcher) loop(ctx context.Context) {
	failures := 0
	for ctx.Err() == nil {
		msg, err := d.client.PollPush(ctx, d.pollTimeout)
		d.metrics.addPoll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			d.metrics.addPollError(ctx)
			observability.Log().Warn("push poll failed",
				observability.F("error", err.Error()),
				observability.F("consecutive", failures))
			if failures >= d.threshold {
				failures = 0
				if rerr := d.reconnect(ctx); rerr != nil {
					observability.Log().Error("reconnect failed",
						observability.F("error", rerr.Error()))
					// Without a reconnect path the loop keeps polling at
					// the reconnect cadence instead of spinning.
					d.sleep(ctx, d.reconnectInterval())
				}
			}
			continue
		}
		failures = 0
		if msg == nil {
			continue
		}
		d.route(ctx, *msg)
	}
}

func (d *Dispatcher) reconnect(ctx context.Context) error {
	if d.reconnector == nil {
		return nil
	}
	return d.reconnector.Reconnect(ctx)
}

func (d *Dispatcher) reconnectInterval() time.Duration {
	if d.reconnector != nil && d.reconnector.interval > 0 {
		return d.reconnector.interval
	}
	return 5 * time.Second
}

func (d *Dispatcher) sleep(ctx context.Context, duration time.Duration) {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (d *Dispatcher) route(ctx context.Context, msg opend.PushMessage) {
	d.mu.Lock()
	handler, ok := d.handlers[msg.Kind]
	d.mu.Unlock()
	if !ok {
		observability.Log().Debug("push without handler dropped",
			observability.F("kind", uint32(msg.Kind)))
		d.metrics.addDropped(ctx)
		return
	}
	d.metrics.addDispatched(ctx, uint32(msg.Kind))
	handler(ctx, msg)
}
