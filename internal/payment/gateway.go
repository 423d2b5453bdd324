package payment

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/port"
)

var gatewayTracer = otel.Tracer("github.com/Additional-Code/kitchen/payment")

// Module provides the refund gateway.
var Module = fx.Provide(NewLoggingGateway)

// LoggingGateway records refunds instead of calling a real payment provider.
type LoggingGateway struct {
	logger *zap.Logger
}

// NewLoggingGateway returns the gateway as a port.
func NewLoggingGateway(logger *zap.Logger) port.RefundGateway {
	return &LoggingGateway{logger: logger.Named("payment")}
}

// Refund logs the full order amount as refunded.
func (g *LoggingGateway) Refund(ctx context.Context, order entity.Order) error {
	_, span := gatewayTracer.Start(ctx, "Payment.Refund", trace.WithAttributes(
		attribute.String("order.number", order.Number),
		attribute.String("amount", order.Amount.StringFixed(2)),
	))
	defer span.End()

	g.logger.Info("refund issued",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.Number),
		zap.String("amount", order.Amount.StringFixed(2)),
	)
	return nil
}
