package order

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/port"
	"github.com/Additional-Code/kitchen/pkg/errorbank"
)

// SubmitInput carries the customer's checkout choices.
type SubmitInput struct {
	AddressBookID         int64
	PayMethod             int
	Remark                string
	EstimatedDeliveryTime time.Time
	DeliveryStatus        int
	PackAmount            int
	TablewareNumber       int
	TablewareStatus       int
}

// SubmitResult identifies the created order.
type SubmitResult struct {
	ID        int64           `json:"id"`
	Number    string          `json:"order_number"`
	Amount    decimal.Decimal `json:"order_amount"`
	OrderTime time.Time       `json:"order_time"`
}

// Submit converts the caller's cart into a PENDING_PAYMENT order. The address and delivery range are
// checked first; then, in one transaction, the cart rows are locked, the order and its lines are
// inserted and the cart is cleared.
func (s *Service) Submit(ctx context.Context, actor entity.Actor, in SubmitInput) (*SubmitResult, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Submit", trace.WithAttributes(
		attribute.Int64("user.id", actor.ID),
		attribute.Int64("address.id", in.AddressBookID),
	))
	defer span.End()

	if actor.Role != entity.RoleCustomer {
		return nil, errorbank.Forbidden("only customers submit orders", errorbank.WithDetail("role", string(actor.Role)))
	}
	if in.AddressBookID <= 0 {
		return nil, errorbank.BadRequest("address book id is required",
			errorbank.WithReason(errorbank.ReasonAddressNotFound))
	}
	if in.PackAmount < 0 || in.TablewareNumber < 0 {
		return nil, errorbank.BadRequest("pack amount and tableware number must not be negative",
			errorbank.WithReason(errorbank.ReasonInvalidArgument))
	}

	addr, err := s.addresses.GetByID(ctx, in.AddressBookID)
	if err != nil && !errors.Is(err, port.ErrNotFound) {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to load address", errorbank.WithCause(err))
	}
	if addr == nil || addr.UserID != actor.ID {
		return nil, errorbank.BadRequest("address not found",
			errorbank.WithReason(errorbank.ReasonAddressNotFound),
			errorbank.WithDetail("address_book_id", in.AddressBookID),
		)
	}

	if err := s.checkDeliveryRange(ctx, addr.FullAddress()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery range")
		return nil, err
	}

	now := s.now()
	order := entity.Order{
		Number:                uuid.Must(uuid.NewV7()).String(),
		Status:                entity.StatusPendingPayment,
		PayStatus:             entity.PayUnpaid,
		PayMethod:             in.PayMethod,
		UserID:                actor.ID,
		AddressBookID:         addr.ID,
		Remark:                in.Remark,
		Phone:                 addr.Phone,
		Address:               addr.FullAddress(),
		Consignee:             addr.Consignee,
		OrderTime:             now,
		EstimatedDeliveryTime: in.EstimatedDeliveryTime,
		DeliveryStatus:        in.DeliveryStatus,
		PackAmount:            in.PackAmount,
		TablewareNumber:       in.TablewareNumber,
		TablewareStatus:       in.TablewareStatus,
		UpdatedAt:             now,
	}

	err = s.tx.InTx(ctx, func(ctx context.Context, st port.Stores) error {
		items, err := st.Carts.ListForUpdate(ctx, actor.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return errorbank.BadRequest("shopping cart is empty", errorbank.WithReason(errorbank.ReasonCartEmpty))
		}

		lines := lo.Map(items, func(item entity.CartItem, _ int) entity.OrderLine {
			return item.ToOrderLine(0)
		})
		order.Amount = s.orderAmount(lines, in.PackAmount)

		if err := st.Orders.Create(ctx, &order, lines); err != nil {
			return err
		}
		_, err = st.Carts.Clear(ctx, actor.ID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		var appErr *errorbank.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, errorbank.Internal("failed to submit order", errorbank.WithCause(err))
	}

	s.metrics.Submitted(ctx)
	s.publish(ctx, Event{
		Type:       EventSubmitted,
		OrderID:    order.ID,
		Number:     order.Number,
		UserID:     order.UserID,
		Status:     order.Status.String(),
		PayStatus:  order.PayStatus.String(),
		Actor:      string(actor.Role),
		OccurredAt: now,
	})
	s.logger.Info("order submitted",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.Number),
		zap.Int64("user_id", actor.ID),
		zap.String("amount", order.Amount.StringFixed(2)),
	)

	return &SubmitResult{ID: order.ID, Number: order.Number, Amount: order.Amount, OrderTime: order.OrderTime}, nil
}

// orderAmount is the sum of line subtotals plus packaging and the delivery fee.
func (s *Service) orderAmount(lines []entity.OrderLine, packAmount int) decimal.Decimal {
	total := lo.Reduce(lines, func(acc decimal.Decimal, line entity.OrderLine, _ int) decimal.Decimal {
		return acc.Add(line.Subtotal())
	}, decimal.Zero)
	return total.Add(decimal.NewFromInt(int64(packAmount))).Add(s.shop.deliveryFee)
}

func (s *Service) checkDeliveryRange(ctx context.Context, address string) error {
	dest, err := s.geocoder.ResolveCoordinates(ctx, address)
	if err != nil {
		if errors.Is(err, port.ErrGeocodeFailed) {
			return errorbank.Unprocessable("delivery address could not be resolved",
				errorbank.WithReason(errorbank.ReasonAddressUnresolved), errorbank.WithCause(err))
		}
		return errorbank.Unavailable("geocoding unavailable, try again", errorbank.WithCause(err))
	}

	distance, err := s.geocoder.RouteDistance(ctx, s.shop.origin, dest)
	if err != nil {
		if errors.Is(err, port.ErrRoutePlanFailed) {
			return errorbank.Unprocessable("delivery route could not be planned",
				errorbank.WithReason(errorbank.ReasonRoutePlanFailed), errorbank.WithCause(err))
		}
		return errorbank.Unavailable("route planning unavailable, try again", errorbank.WithCause(err))
	}

	if distance > s.shop.maxDistance {
		return errorbank.Unprocessable("address is out of delivery range",
			errorbank.WithReason(errorbank.ReasonOutOfRange),
			errorbank.WithDetail("distance", distance),
			errorbank.WithDetail("max_distance", s.shop.maxDistance),
		)
	}
	return nil
}
