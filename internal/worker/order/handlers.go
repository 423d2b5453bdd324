package order

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/config"
	"github.com/Additional-Code/kitchen/internal/entity"
	applog "github.com/Additional-Code/kitchen/internal/logger"
	"github.com/Additional-Code/kitchen/internal/messaging"
	ordersvc "github.com/Additional-Code/kitchen/internal/service/order"
	"github.com/Additional-Code/kitchen/internal/worker"
	"github.com/Additional-Code/kitchen/pkg/errorbank"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/kitchen/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		func(svc *ordersvc.Service) PaymentConfirmer { return svc },
		fx.Annotate(
			NewOrderEventsHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
		fx.Annotate(
			NewPaymentConfirmedHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// PaymentConfirmer applies a confirmed payment to an order.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, actor entity.Actor, number string) (*entity.Order, error)
}

// PaymentConfirmed is the payload of the payment confirmation topic.
type PaymentConfirmed struct {
	OrderNumber string `json:"order_number"`
}

// NewOrderEventsHandler sets up a worker handler that logs order lifecycle events.
func NewOrderEventsHandler(logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.events", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()
		log := applog.WithTrace(ctx, logger)

		var event ordersvc.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			// A malformed event will never decode; drop it.
			log.Error("failed to decode order event", zap.ByteString("key", msg.Key), zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return nil
		}
		log.Info("order event processed",
			zap.String("type", event.Type),
			zap.Int64("order_id", event.OrderID),
			zap.String("number", event.Number),
			zap.String("from", event.From),
			zap.String("status", event.Status),
			zap.String("pay_status", event.PayStatus),
		)

		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Topics.OrderEvents,
		Handler: handler,
	}
}

// NewPaymentConfirmedHandler applies payment confirmations. Deliveries may repeat; confirming an order
// twice is a no-op. Only failures worth retrying are returned to the bus.
func NewPaymentConfirmedHandler(confirmer PaymentConfirmer, logger *zap.Logger, cfg config.Config) worker.HandlerRegistration {
	handler := func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.payments.confirmed", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
		))
		defer span.End()
		log := applog.WithTrace(ctx, logger)

		var payload PaymentConfirmed
		if err := json.Unmarshal(msg.Value, &payload); err != nil || strings.TrimSpace(payload.OrderNumber) == "" {
			if err == nil {
				err = errors.New("missing order_number")
			}
			log.Error("invalid payment confirmation", zap.ByteString("value", msg.Value), zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return nil
		}
		span.SetAttributes(attribute.String("order.number", payload.OrderNumber))

		order, err := confirmer.ConfirmPayment(ctx, entity.System, payload.OrderNumber)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "confirm failed")
			appErr := errorbank.From(err)
			if appErr.Retryable() || appErr.Kind() == errorbank.KindInternal {
				log.Warn("payment confirmation will be retried",
					zap.String("order_number", payload.OrderNumber),
					zap.Error(err),
				)
				return err
			}
			log.Error("payment confirmation rejected",
				zap.String("order_number", payload.OrderNumber),
				zap.String("reason", string(appErr.Reason())),
				zap.Error(err),
			)
			return nil
		}

		log.Info("payment confirmed",
			zap.Int64("order_id", order.ID),
			zap.String("order_number", order.Number),
		)
		return nil
	}

	return worker.HandlerRegistration{
		Topic:   cfg.Messaging.Topics.PaymentsConfirmed,
		Handler: handler,
	}
}
