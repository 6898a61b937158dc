package futu

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// bridgeMetrics instruments the push loop and reconciliation paths.
// All methods are nil-safe so callers never guard.
type bridgeMetrics struct {
	consumer string

	polls            metric.Int64Counter
	pollErrors       metric.Int64Counter
	reconnects       metric.Int64Counter
	pushesDispatched metric.Int64Counter
	pushesDropped    metric.Int64Counter
	eventsEmitted    metric.Int64Counter
	fillsDeduped     metric.Int64Counter
	rowsSkipped      metric.Int64Counter
	marketsSkipped   metric.Int64Counter
}

func newBridgeMetrics(consumer string) *bridgeMetrics {
	meter := otel.Meter("futubridge")
	m := &bridgeMetrics{consumer: consumer}

	m.polls, _ = meter.Int64Counter("futubridge_polls",
		metric.WithDescription("Push polls issued against the gateway"),
		metric.WithUnit("{poll}"))
	m.pollErrors, _ = meter.Int64Counter("futubridge_poll_errors",
		metric.WithDescription("Push polls that returned a transport error"),
		metric.WithUnit("{error}"))
	m.reconnects, _ = meter.Int64Counter("futubridge_reconnects",
		metric.WithDescription("Reconnect cycles executed"),
		metric.WithUnit("{reconnect}"))
	m.pushesDispatched, _ = meter.Int64Counter("futubridge_pushes_dispatched",
		metric.WithDescription("Push messages routed to a handler"),
		metric.WithUnit("{message}"))
	m.pushesDropped, _ = meter.Int64Counter("futubridge_pushes_dropped",
		metric.WithDescription("Push messages dropped for an unresolvable order"),
		metric.WithUnit("{message}"))
	m.eventsEmitted, _ = meter.Int64Counter("futubridge_events_emitted",
		metric.WithDescription("Canonical execution events delivered to the engine"),
		metric.WithUnit("{event}"))
	m.fillsDeduped, _ = meter.Int64Counter("futubridge_fills_deduped",
		metric.WithDescription("Duplicate fill pushes suppressed by fill id"),
		metric.WithUnit("{fill}"))
	m.rowsSkipped, _ = meter.Int64Counter("futubridge_report_rows_skipped",
		metric.WithDescription("Report rows skipped due to parse failures"),
		metric.WithUnit("{row}"))
	m.marketsSkipped, _ = meter.Int64Counter("futubridge_report_markets_skipped",
		metric.WithDescription("Whole markets skipped from a snapshot due to query failures"),
		metric.WithUnit("{market}"))
	return m
}

func (m *bridgeMetrics) attrs(extra ...attribute.KeyValue) metric.AddOption {
	base := []attribute.KeyValue{attribute.String("consumer", m.consumer)}
	return metric.WithAttributes(append(base, extra...)...)
}

func (m *bridgeMetrics) addPoll(ctx context.Context) {
	if m == nil {
		return
	}
	m.polls.Add(ctx, 1, m.attrs())
}

func (m *bridgeMetrics) addPollError(ctx context.Context) {
	if m == nil {
		return
	}
	m.pollErrors.Add(ctx, 1, m.attrs())
}

func (m *bridgeMetrics) addReconnect(ctx context.Context) {
	if m == nil {
		return
	}
	m.reconnects.Add(ctx, 1, m.attrs())
}

func (m *bridgeMetrics) addDispatched(ctx context.Context, kind uint32) {
	if m == nil {
		return
	}
	m.pushesDispatched.Add(ctx, 1, m.attrs(attribute.Int64("kind", int64(kind))))
}

func (m *bridgeMetrics) addDropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.pushesDropped.Add(ctx, 1, m.attrs())
}

func (m *bridgeMetrics) addEvent(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	m.eventsEmitted.Add(ctx, 1, m.attrs(attribute.String("type", eventType)))
}

func (m *bridgeMetrics) addFillDeduped(ctx context.Context) {
	if m == nil {
		return
	}
	m.fillsDeduped.Add(ctx, 1, m.attrs())
}

func (m *bridgeMetrics) addRowSkipped(ctx context.Context, report string) {
	if m == nil {
		return
	}
	m.rowsSkipped.Add(ctx, 1, m.attrs(attribute.String("report", report)))
}

func (m *bridgeMetrics) addMarketSkipped(ctx context.Context, report string) {
	if m == nil {
		return
	}
	m.marketsSkipped.Add(ctx, 1, m.attrs(attribute.String("report", report)))
}
