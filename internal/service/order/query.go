package order

import (
	"context"
	"errors"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/port"
	"github.com/Additional-Code/kitchen/pkg/errorbank"
)

// Summary is a search row: the order, its lines and the rendered dish string.
type Summary struct {
	Order  entity.Order       `json:"order"`
	Lines  []entity.OrderLine `json:"lines,omitempty"`
	Dishes string             `json:"dishes"`
}

// Page is one page of results with the total match count.
type Page struct {
	Total   int       `json:"total"`
	Records []Summary `json:"records"`
}

// Statistics counts orders the merchant still has to act on.
type Statistics struct {
	ToBeConfirmed      int `json:"to_be_confirmed"`
	Confirmed          int `json:"confirmed"`
	DeliveryInProgress int `json:"delivery_in_progress"`
}

// History pages through the caller's own orders, newest first, with their lines.
func (s *Service) History(ctx context.Context, actor entity.Actor, q port.OrderQuery) (*Page, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.History", trace.WithAttributes(attribute.Int64("user.id", actor.ID)))
	defer span.End()

	if actor.Role != entity.RoleCustomer {
		return nil, errorbank.Forbidden("only customers have an order history")
	}
	q.UserID = actor.ID
	return s.search(ctx, q, true)
}

// Search is the merchant's conditional search; each row carries its dish string.
func (s *Service) Search(ctx context.Context, actor entity.Actor, q port.OrderQuery) (*Page, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Search")
	defer span.End()

	if actor.Role != entity.RoleStaff {
		return nil, errorbank.Forbidden("only staff may search all orders")
	}
	return s.search(ctx, q, false)
}

func (s *Service) search(ctx context.Context, q port.OrderQuery, withLines bool) (*Page, error) {
	if !q.Begin.IsZero() && !q.End.IsZero() && q.End.Before(q.Begin) {
		return nil, errorbank.BadRequest("end time precedes begin time", errorbank.WithReason(errorbank.ReasonInvalidArgument))
	}

	orders, total, err := s.orders.Search(ctx, q)
	if err != nil {
		return nil, errorbank.Internal("failed to search orders", errorbank.WithCause(err))
	}
	lines, err := s.orders.LinesByOrders(ctx, lo.Map(orders, func(o entity.Order, _ int) int64 { return o.ID }))
	if err != nil {
		return nil, errorbank.Internal("failed to load order lines", errorbank.WithCause(err))
	}

	records := lo.Map(orders, func(o entity.Order, _ int) Summary {
		row := Summary{Order: o, Dishes: entity.DishString(lines[o.ID])}
		if withLines {
			row.Lines = lines[o.ID]
		}
		return row
	})
	return &Page{Total: total, Records: records}, nil
}

// Statistics counts orders awaiting confirmation, confirmed and out for delivery.
func (s *Service) Statistics(ctx context.Context, actor entity.Actor) (*Statistics, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Statistics")
	defer span.End()

	if actor.Role != entity.RoleStaff {
		return nil, errorbank.Forbidden("only staff may read order statistics")
	}
	counts, err := s.orders.CountByStatus(ctx)
	if err != nil {
		return nil, errorbank.Internal("failed to count orders", errorbank.WithCause(err))
	}
	return &Statistics{
		ToBeConfirmed:      counts[entity.StatusToBeConfirmed],
		Confirmed:          counts[entity.StatusConfirmed],
		DeliveryInProgress: counts[entity.StatusDeliveryInProgress],
	}, nil
}

// Reorder copies the lines of one of the caller's orders into their cart, adding quantities to
// matching entries. The order itself is untouched.
func (s *Service) Reorder(ctx context.Context, actor entity.Actor, id int64) error {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Reorder", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if actor.Role != entity.RoleCustomer {
		return errorbank.Forbidden("only customers may reorder")
	}
	order, err := s.loadOwned(ctx, actor, id)
	if err != nil {
		return err
	}

	now := s.now()
	err = s.tx.InTx(ctx, func(ctx context.Context, st port.Stores) error {
		lines, err := st.Orders.Lines(ctx, order.ID)
		if err != nil {
			return err
		}
		for _, line := range lines {
			item := entity.CartItemFromLine(actor.ID, line, now)
			existing, err := st.Carts.Find(ctx, actor.ID, item.Key())
			switch {
			case errors.Is(err, port.ErrNotFound):
				if err := st.Carts.Insert(ctx, &item); err != nil {
					return err
				}
			case err != nil:
				return err
			default:
				if err := st.Carts.UpdateNumber(ctx, existing.ID, existing.Number+item.Number); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return errorbank.Internal("failed to copy order into cart", errorbank.WithCause(err))
	}

	s.logger.Info("order copied into cart", zap.Int64("order_id", order.ID), zap.Int64("user_id", actor.ID))
	return nil
}
