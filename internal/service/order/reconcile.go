package order

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/port"
)

// SweepResult tallies one reconciliation pass.
type SweepResult struct {
	Found   int
	Updated int
	Failed  int
}

// CancelUnpaid cancels every PENDING_PAYMENT order placed before now minus grace. Each order is updated
// on its own; a failure is logged and the sweep moves on.
func (s *Service) CancelUnpaid(ctx context.Context, grace time.Duration) (SweepResult, error) {
	return s.sweep(ctx, EventPaymentTimeout, entity.StatusPendingPayment, grace, func(t *port.OrderTransition) {
		t.CancelReason = reasonPaymentTimeout
	})
}

// CompleteStuckDeliveries completes every DELIVERY_IN_PROGRESS order placed before now minus grace.
func (s *Service) CompleteStuckDeliveries(ctx context.Context, grace time.Duration) (SweepResult, error) {
	return s.sweep(ctx, EventDeliveryTimeout, entity.StatusDeliveryInProgress, grace, nil)
}

func (s *Service) sweep(ctx context.Context, event string, status entity.OrderStatus, grace time.Duration, adjust func(*port.OrderTransition)) (SweepResult, error) {
	cutoff := s.now().Add(-grace)
	ctx, span := serviceTracer.Start(ctx, "OrderService.sweep", trace.WithAttributes(
		attribute.String("event", event),
		attribute.String("cutoff", cutoff.Format(time.RFC3339)),
	))
	defer span.End()

	var res SweepResult
	orders, err := s.orders.ListByStatusBefore(ctx, status, cutoff)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return res, err
	}
	res.Found = len(orders)

	for _, order := range orders {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.expire(ctx, event, order, adjust); err != nil {
			res.Failed++
			s.metrics.Swept(ctx, event, "failed")
			s.logger.Warn("reconciliation skipped order",
				zap.String("sweep", event),
				zap.Int64("order_id", order.ID),
				zap.Error(err),
			)
			continue
		}
		res.Updated++
		s.metrics.Swept(ctx, event, "updated")
	}

	span.SetAttributes(
		attribute.Int("found", res.Found),
		attribute.Int("updated", res.Updated),
		attribute.Int("failed", res.Failed),
	)
	return res, ctx.Err()
}
