package futu

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/coachpo/futubridge/errs"
	"github.com/coachpo/futubridge/internal/observability"
	"github.com/coachpo/futubridge/internal/opend"
)

// Registration replays state that must be re-established on a fresh
// connection, such as push registrations and account subscriptions.
type Registration func(ctx context.Context, client opend.Client) error

// Reconnector re-establishes a transport session after the push loop
// declares it dead. A single reconnect cycle runs at a time per transport;
// concurrent triggers from multiple consumers coalesce on the mutex and the
// later caller finds the session already healthy.
type Reconnector struct {
	client    opend.Client
	host      string
	port      int
	clientID  string
	clientVer int32
	interval  time.Duration
	enabled   bool
	metrics   *bridgeMetrics

	mu            sync.Mutex
	registrations []Registration
}

// NewReconnector builds a reconnector bound to one transport session and
// the connection parameters it was originally opened with.
func NewReconnector(client opend.Client, host string, port int, clientID string, clientVer int32, interval time.Duration, enabled bool) *Reconnector {
	return &Reconnector{
		client:    client,
		host:      host,
		port:      port,
		clientID:  clientID,
		clientVer: clientVer,
		interval:  interval,
		enabled:   enabled,
	}
}

func (r *Reconnector) setMetrics(m *bridgeMetrics) { r.metrics = m }

// AddRegistration appends replay state applied after every successful
// reconnect, in registration order.
func (r *Reconnector) AddRegistration(reg Registration) {
	r.mu.Lock()
	r.registrations = append(r.registrations, reg)
	r.mu.Unlock()
}

// Reconnect tears down the session and dials until the connection and all
// registrations are restored, waiting a constant interval between attempts.
// It returns once the session is healthy, or with an error when reconnection
// is disabled or the context ends.
func (r *Reconnector) Reconnect(ctx context.Context) error {
	if !r.enabled {
		return errs.New("reconnector", errs.CodeUnavailable,
			errs.WithMessage("reconnection disabled by configuration"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	regs := make([]Registration, len(r.registrations))
	copy(regs, r.registrations)

	r.metrics.addReconnect(ctx)
	observability.Log().Warn("reconnecting transport",
		observability.F("host", r.host),
		observability.F("port", r.port))

	if err := r.client.Disconnect(ctx); err != nil {
		observability.Log().Debug("pre-reconnect disconnect failed",
			observability.F("error", err.Error()))
	}

	attempt := func() (struct{}, error) {
		if err := r.client.Connect(ctx, r.host, r.port, r.clientID, r.clientVer); err != nil {
			observability.Log().Warn("reconnect attempt failed",
				observability.F("error", err.Error()))
			return struct{}{}, err
		}
		for _, reg := range regs {
			if err := reg(ctx, r.client); err != nil {
				observability.Log().Warn("registration replay failed",
					observability.F("error", err.Error()))
				_ = r.client.Disconnect(ctx)
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	}

	_, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewConstantBackOff(r.interval)),
		backoff.WithMaxElapsedTime(0))
	if err != nil {
		return errs.New("reconnector", errs.CodeNetwork,
			errs.WithMessage("reconnect abandoned"),
			errs.WithCause(err))
	}
	observability.Log().Info("transport reconnected",
		observability.F("host", r.host),
		observability.F("port", r.port))
	return nil
}
