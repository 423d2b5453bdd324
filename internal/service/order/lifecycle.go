package order

import (
	"context"
	"errors"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/port"
	"github.com/Additional-Code/kitchen/pkg/errorbank"
)

// Transition names used in events, metrics and logs.
const (
	EventSubmitted       = "submitted"
	EventPaymentConfirm  = "payment_confirmed"
	EventAccept          = "accepted"
	EventReject          = "rejected"
	EventAdminCancel     = "cancelled_by_staff"
	EventUserCancel      = "cancelled_by_user"
	EventDispatch        = "dispatched"
	EventComplete        = "completed"
	EventPaymentTimeout  = "payment_timeout"
	EventDeliveryTimeout = "delivery_timeout"
	EventLatePayment     = "late_payment_refunded"
)

const (
	reasonUserCancelled  = "user cancelled"
	reasonPaymentTimeout = "payment timeout"
)

// rule describes one transition: who may trigger it, which orders it applies to and where it leads.
type rule struct {
	actors []entity.Role
	from   func(entity.Order) bool
	to     entity.OrderStatus
	// refunds moves PAID orders to REFUND and calls the gateway.
	refunds bool
}

func inStatus(status entity.OrderStatus) func(entity.Order) bool {
	return func(o entity.Order) bool { return o.Status == status }
}

var rules = map[string]rule{
	EventPaymentConfirm: {
		actors: []entity.Role{entity.RoleSystem},
		from: func(o entity.Order) bool {
			return o.Status == entity.StatusPendingPayment && o.PayStatus == entity.PayUnpaid
		},
		to: entity.StatusToBeConfirmed,
	},
	EventAccept: {
		actors: []entity.Role{entity.RoleStaff},
		from:   inStatus(entity.StatusToBeConfirmed),
		to:     entity.StatusConfirmed,
	},
	EventReject: {
		actors:  []entity.Role{entity.RoleStaff},
		from:    inStatus(entity.StatusToBeConfirmed),
		to:      entity.StatusCancelled,
		refunds: true,
	},
	EventAdminCancel: {
		actors:  []entity.Role{entity.RoleStaff},
		from:    func(o entity.Order) bool { return !o.Status.Terminal() },
		to:      entity.StatusCancelled,
		refunds: true,
	},
	EventUserCancel: {
		actors:  []entity.Role{entity.RoleCustomer},
		from:    func(o entity.Order) bool { return o.Status.AtMost(entity.StatusToBeConfirmed) },
		to:      entity.StatusCancelled,
		refunds: true,
	},
	EventDispatch: {
		actors: []entity.Role{entity.RoleStaff},
		from:   inStatus(entity.StatusConfirmed),
		to:     entity.StatusDeliveryInProgress,
	},
	EventComplete: {
		actors: []entity.Role{entity.RoleStaff},
		from:   inStatus(entity.StatusDeliveryInProgress),
		to:     entity.StatusCompleted,
	},
	EventPaymentTimeout: {
		actors: []entity.Role{entity.RoleSystem},
		from: func(o entity.Order) bool {
			return o.Status == entity.StatusPendingPayment && o.PayStatus == entity.PayUnpaid
		},
		to: entity.StatusCancelled,
	},
	EventDeliveryTimeout: {
		actors: []entity.Role{entity.RoleSystem},
		from:   inStatus(entity.StatusDeliveryInProgress),
		to:     entity.StatusCompleted,
	},
}

// latePayment records money that arrived for an order cancelled while unpaid, so the order moves to
// REFUND and the gateway returns it. The status stays CANCELLED.
func (s *Service) latePayment(ctx context.Context, order entity.Order) (*entity.Order, error) {
	s.logger.Error("payment confirmed for a cancelled order; refunding",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.Number),
		zap.Stringer("status", order.Status),
	)
	now := s.now()
	t := port.OrderTransition{
		ID:           order.ID,
		FromStatus:   order.Status,
		FromPay:      entity.PayUnpaid,
		ToStatus:     order.Status,
		ToPay:        entity.PayRefund,
		CheckoutTime: now,
		UpdatedAt:    now,
	}
	return s.commit(ctx, entity.System, EventLatePayment, order, t)
}

func allowedActor(event string, actor entity.Actor) error {
	if slices.Contains(rules[event].actors, actor.Role) {
		return nil
	}
	return errorbank.Forbidden("actor may not perform this action",
		errorbank.WithDetail("action", event),
		errorbank.WithDetail("role", string(actor.Role)),
	)
}

// plan builds the compare-and-swap update for event on order, or fails when the order is not in a
// source state of the transition.
func (s *Service) plan(event string, order entity.Order) (port.OrderTransition, error) {
	r := rules[event]
	if !r.from(order) || !entity.CanMove(order.Status, r.to) {
		return port.OrderTransition{}, errorbank.Unprocessable("order status does not allow this action",
			errorbank.WithReason(errorbank.ReasonOrderStatusError),
			errorbank.WithDetail("action", event),
			errorbank.WithDetail("status", order.Status.String()),
			errorbank.WithDetail("pay_status", order.PayStatus.String()),
		)
	}

	now := s.now()
	t := port.OrderTransition{
		ID:         order.ID,
		FromStatus: order.Status,
		FromPay:    order.PayStatus,
		ToStatus:   r.to,
		ToPay:      order.PayStatus,
		UpdatedAt:  now,
	}
	if r.refunds && order.PayStatus == entity.PayPaid {
		t.ToPay = entity.PayRefund
	}
	switch r.to {
	case entity.StatusCancelled:
		t.CancelTime = now
	case entity.StatusCompleted:
		t.DeliveryTime = now
	}
	return t, nil
}

// commit applies t, then runs the post-commit effects: refund, cache eviction, event and metric.
func (s *Service) commit(ctx context.Context, actor entity.Actor, event string, order entity.Order, t port.OrderTransition) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.commit", trace.WithAttributes(
		attribute.Int64("order.id", order.ID),
		attribute.String("event", event),
		attribute.String("actor", string(actor.Role)),
	))
	defer span.End()

	if err := s.orders.Transition(ctx, t); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
		if errors.Is(err, port.ErrStaleState) {
			s.metrics.Transition(ctx, event, "stale")
			return nil, errorbank.Conflict("order changed concurrently; reload and retry",
				errorbank.WithReason(errorbank.ReasonOrderStateStale),
				errorbank.WithDetail("order_id", order.ID),
				errorbank.WithCause(err),
			)
		}
		s.metrics.Transition(ctx, event, "error")
		return nil, errorbank.Internal("failed to update order", errorbank.WithCause(err))
	}

	updated := t.Apply(order)
	s.metrics.Transition(ctx, event, "ok")

	if t.FromPay != entity.PayRefund && t.ToPay == entity.PayRefund {
		s.refund(ctx, updated)
	}
	s.evict(ctx, order.ID)
	s.publish(ctx, Event{
		Type:       event,
		OrderID:    updated.ID,
		Number:     updated.Number,
		UserID:     updated.UserID,
		From:       order.Status.String(),
		Status:     updated.Status.String(),
		PayStatus:  updated.PayStatus.String(),
		Actor:      string(actor.Role),
		OccurredAt: t.UpdatedAt,
	})

	s.logger.Info("order transitioned",
		zap.Int64("order_id", updated.ID),
		zap.String("event", event),
		zap.Stringer("from", order.Status),
		zap.Stringer("to", updated.Status),
		zap.Stringer("pay_status", updated.PayStatus),
	)
	return &updated, nil
}

// refund is best effort: the cancellation is already committed, so a gateway failure is logged for
// manual follow-up instead of failing the caller.
func (s *Service) refund(ctx context.Context, order entity.Order) {
	if s.refunds == nil {
		return
	}
	if err := s.refunds.Refund(ctx, order); err != nil {
		s.metrics.Refund(ctx, "error")
		s.logger.Error("refund failed; needs manual follow-up",
			zap.Int64("order_id", order.ID),
			zap.String("order_number", order.Number),
			zap.Error(err),
		)
		return
	}
	s.metrics.Refund(ctx, "ok")
}

// transition is the common path for id-addressed transitions.
func (s *Service) transition(ctx context.Context, actor entity.Actor, event string, id int64, adjust func(*port.OrderTransition)) (*entity.Order, error) {
	if err := allowedActor(event, actor); err != nil {
		return nil, err
	}
	order, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	t, err := s.plan(event, *order)
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(&t)
	}
	return s.commit(ctx, actor, event, *order, t)
}

// ConfirmPayment marks a pending order as paid. Confirmations for orders that are already paid,
// including ones paid and since refunded, succeed without changes. Money arriving for an order that
// was cancelled unpaid is refunded.
func (s *Service) ConfirmPayment(ctx context.Context, actor entity.Actor, number string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.ConfirmPayment", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	if err := allowedActor(EventPaymentConfirm, actor); err != nil {
		return nil, err
	}
	if number == "" {
		return nil, errorbank.BadRequest("order number is required", errorbank.WithReason(errorbank.ReasonInvalidArgument))
	}

	order, err := s.orders.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, errorbank.NotFound("order not found",
				errorbank.WithReason(errorbank.ReasonOrderNotFound),
				errorbank.WithDetail("order_number", number),
			)
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if order.PayStatus != entity.PayUnpaid {
		s.metrics.Transition(ctx, EventPaymentConfirm, "duplicate")
		s.logger.Info("duplicate payment confirmation ignored", zap.String("order_number", number))
		return order, nil
	}
	if order.Status == entity.StatusCancelled {
		return s.latePayment(ctx, *order)
	}

	t, err := s.plan(EventPaymentConfirm, *order)
	if err != nil {
		return nil, err
	}
	t.ToPay = entity.PayPaid
	t.CheckoutTime = t.UpdatedAt

	updated, err := s.commit(ctx, actor, EventPaymentConfirm, *order, t)
	if err == nil {
		return updated, nil
	}
	if !errorbank.HasReason(err, errorbank.ReasonOrderStateStale) {
		return nil, err
	}

	// A concurrent delivery of the same confirmation may have won the race.
	current, rerr := s.orders.GetByID(ctx, order.ID)
	if rerr == nil && current.PayStatus != entity.PayUnpaid {
		s.metrics.Transition(ctx, EventPaymentConfirm, "duplicate")
		return current, nil
	}
	return nil, err
}

// Pay is the customer's checkout of one of their own orders. The payment gateway is stubbed, so the
// confirmation is applied immediately on the payment adapter's behalf.
func (s *Service) Pay(ctx context.Context, actor entity.Actor, number string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Pay", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	if actor.Role != entity.RoleCustomer {
		return nil, errorbank.Forbidden("only customers pay for orders")
	}
	order, err := s.orders.GetByNumber(ctx, number)
	if err != nil && !errors.Is(err, port.ErrNotFound) {
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if order == nil || order.UserID != actor.ID {
		return nil, errorbank.NotFound("order not found",
			errorbank.WithReason(errorbank.ReasonOrderNotFound),
			errorbank.WithDetail("order_number", number),
		)
	}
	// Nothing is charged for an order that can no longer be paid.
	if order.PayStatus == entity.PayUnpaid {
		if _, err := s.plan(EventPaymentConfirm, *order); err != nil {
			return nil, err
		}
	}
	return s.ConfirmPayment(ctx, entity.System, number)
}

// Accept moves a paid order awaiting the merchant to CONFIRMED.
func (s *Service) Accept(ctx context.Context, actor entity.Actor, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Accept", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	return s.transition(ctx, actor, EventAccept, id, nil)
}

// Reject declines an order awaiting the merchant, refunding it when paid.
func (s *Service) Reject(ctx context.Context, actor entity.Actor, id int64, reason string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Reject", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if reason == "" {
		return nil, errorbank.BadRequest("rejection reason is required", errorbank.WithReason(errorbank.ReasonInvalidArgument))
	}
	return s.transition(ctx, actor, EventReject, id, func(t *port.OrderTransition) {
		t.RejectionReason = reason
		t.CancelReason = reason
	})
}

// AdminCancel cancels any non-terminal order, refunding it when paid.
func (s *Service) AdminCancel(ctx context.Context, actor entity.Actor, id int64, reason string) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.AdminCancel", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if reason == "" {
		return nil, errorbank.BadRequest("cancel reason is required", errorbank.WithReason(errorbank.ReasonInvalidArgument))
	}
	return s.transition(ctx, actor, EventAdminCancel, id, func(t *port.OrderTransition) {
		t.CancelReason = reason
	})
}

// UserCancel lets the owner cancel an order the merchant has not accepted yet.
func (s *Service) UserCancel(ctx context.Context, actor entity.Actor, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.UserCancel", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	return s.transition(ctx, actor, EventUserCancel, id, func(t *port.OrderTransition) {
		t.CancelReason = reasonUserCancelled
	})
}

// Dispatch hands a confirmed order to delivery.
func (s *Service) Dispatch(ctx context.Context, actor entity.Actor, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Dispatch", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	return s.transition(ctx, actor, EventDispatch, id, nil)
}

// Complete marks a delivery as finished.
func (s *Service) Complete(ctx context.Context, actor entity.Actor, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Complete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	return s.transition(ctx, actor, EventComplete, id, nil)
}

// expire applies a system transition to an order snapshot taken by a sweep.
func (s *Service) expire(ctx context.Context, event string, order entity.Order, adjust func(*port.OrderTransition)) (*entity.Order, error) {
	if err := allowedActor(event, entity.System); err != nil {
		return nil, err
	}
	t, err := s.plan(event, order)
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(&t)
	}
	return s.commit(ctx, entity.System, event, order, t)
}
