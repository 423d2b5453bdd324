package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/Additional-Code/kitchen"

// Metrics holds the domain instruments. A nil *Metrics records nothing.
type Metrics struct {
	transitions metric.Int64Counter
	swept       metric.Int64Counter
	submitted   metric.Int64Counter
	refunds     metric.Int64Counter
}

// NewMetrics registers the instruments on the global meter provider. Instruments created before the
// Manager installs its provider are delegated once it does.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	transitions, err := meter.Int64Counter("kitchen.order.transitions",
		metric.WithDescription("Order state transitions by event and outcome"))
	if err != nil {
		return nil, err
	}
	swept, err := meter.Int64Counter("kitchen.reconciliation.orders",
		metric.WithDescription("Orders visited by reconciliation sweeps by sweep and outcome"))
	if err != nil {
		return nil, err
	}
	submitted, err := meter.Int64Counter("kitchen.order.submitted",
		metric.WithDescription("Orders created from carts"))
	if err != nil {
		return nil, err
	}
	refunds, err := meter.Int64Counter("kitchen.order.refunds",
		metric.WithDescription("Refund gateway calls by outcome"))
	if err != nil {
		return nil, err
	}

	return &Metrics{transitions: transitions, swept: swept, submitted: submitted, refunds: refunds}, nil
}

// Transition counts one transition attempt.
func (m *Metrics) Transition(ctx context.Context, event, outcome string) {
	if m == nil {
		return
	}
	m.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("outcome", outcome),
	))
}

// Swept counts one order handled by a sweep.
func (m *Metrics) Swept(ctx context.Context, sweep, outcome string) {
	if m == nil {
		return
	}
	m.swept.Add(ctx, 1, metric.WithAttributes(
		attribute.String("sweep", sweep),
		attribute.String("outcome", outcome),
	))
}

// Submitted counts one created order.
func (m *Metrics) Submitted(ctx context.Context) {
	if m == nil {
		return
	}
	m.submitted.Add(ctx, 1)
}

// Refund counts one refund attempt.
func (m *Metrics) Refund(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.refunds.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
