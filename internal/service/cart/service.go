package cart

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/port"
	"github.com/Additional-Code/kitchen/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/kitchen/service/cart")

// Module provides the cart service to Fx.
var Module = fx.Provide(NewService)

// Service manages each customer's shopping cart.
type Service struct {
	carts   port.CartStore
	catalog port.Catalog
	tx      port.Transactor
	logger  *zap.Logger
	now     func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Carts      port.CartStore
	Catalog    port.Catalog
	Transactor port.Transactor
	Logger     *zap.Logger
	Clock      func() time.Time `name:"clock" optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	now := p.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		carts:   p.Carts,
		catalog: p.Catalog,
		tx:      p.Transactor,
		logger:  p.Logger.Named("cart"),
		now:     now,
	}
}

func requireCustomer(actor entity.Actor) error {
	if actor.Role != entity.RoleCustomer {
		return errorbank.Forbidden("only customers have a cart", errorbank.WithDetail("role", string(actor.Role)))
	}
	return nil
}

func validKey(key entity.CartKey) error {
	if !key.Valid() {
		return errorbank.BadRequest("exactly one of dish id and combo id is required",
			errorbank.WithReason(errorbank.ReasonInvalidArgument))
	}
	return nil
}

// Add puts one unit of the item into the caller's cart. An existing entry is incremented; otherwise a new
// entry is created with the catalog's current name, image and price.
func (s *Service) Add(ctx context.Context, actor entity.Actor, key entity.CartKey) (*entity.CartItem, error) {
	ctx, span := serviceTracer.Start(ctx, "CartService.Add", trace.WithAttributes(
		attribute.Int64("user.id", actor.ID),
		attribute.Int64("dish.id", key.DishID),
		attribute.Int64("combo.id", key.ComboID),
	))
	defer span.End()

	if err := requireCustomer(actor); err != nil {
		return nil, err
	}
	if err := validKey(key); err != nil {
		return nil, err
	}

	var result entity.CartItem
	err := s.tx.InTx(ctx, func(ctx context.Context, st port.Stores) error {
		existing, err := st.Carts.Find(ctx, actor.ID, key)
		switch {
		case err == nil:
			existing.Number++
			if err := st.Carts.UpdateNumber(ctx, existing.ID, existing.Number); err != nil {
				return err
			}
			result = *existing
			return nil
		case !errors.Is(err, port.ErrNotFound):
			return err
		}

		item, err := s.snapshot(ctx, key)
		if err != nil {
			return err
		}
		result = entity.CartItem{
			UserID:     actor.ID,
			Name:       item.Name,
			Image:      item.Image,
			DishID:     key.DishID,
			ComboID:    key.ComboID,
			DishFlavor: key.DishFlavor,
			Number:     1,
			Amount:     item.Price,
			CreatedAt:  s.now(),
		}
		return st.Carts.Insert(ctx, &result)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "add failed")
		return nil, asAppError(err, "failed to add to cart")
	}

	s.logger.Debug("cart item added",
		zap.Int64("user_id", actor.ID),
		zap.Int64("cart_id", result.ID),
		zap.Int("number", result.Number),
	)
	return &result, nil
}

// snapshot reads the catalog view of the keyed item. Missing and disabled items are rejected.
func (s *Service) snapshot(ctx context.Context, key entity.CartKey) (entity.CatalogItem, error) {
	var (
		item entity.CatalogItem
		err  error
	)
	if key.DishID > 0 {
		var dish *entity.Dish
		if dish, err = s.catalog.GetDish(ctx, key.DishID); err == nil {
			item = dish.CatalogItem()
		}
	} else {
		var combo *entity.Combo
		if combo, err = s.catalog.GetCombo(ctx, key.ComboID); err == nil {
			item = combo.CatalogItem()
		}
	}

	switch {
	case errors.Is(err, port.ErrNotFound):
		return item, errorbank.NotFound("item not found",
			errorbank.WithReason(errorbank.ReasonItemNotFound),
			errorbank.WithDetail("dish_id", key.DishID),
			errorbank.WithDetail("combo_id", key.ComboID),
		)
	case err != nil:
		return item, err
	case !item.Enabled:
		return item, errorbank.Unprocessable("item is not on sale",
			errorbank.WithReason(errorbank.ReasonItemUnavailable),
			errorbank.WithDetail("name", item.Name),
		)
	}
	return item, nil
}

// Sub removes one unit of the item; the entry is deleted when its quantity reaches zero. Removing an
// item that is not in the cart is a no-op.
func (s *Service) Sub(ctx context.Context, actor entity.Actor, key entity.CartKey) error {
	ctx, span := serviceTracer.Start(ctx, "CartService.Sub", trace.WithAttributes(attribute.Int64("user.id", actor.ID)))
	defer span.End()

	if err := requireCustomer(actor); err != nil {
		return err
	}
	if err := validKey(key); err != nil {
		return err
	}

	err := s.tx.InTx(ctx, func(ctx context.Context, st port.Stores) error {
		existing, err := st.Carts.Find(ctx, actor.ID, key)
		if errors.Is(err, port.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if existing.Number > 1 {
			return st.Carts.UpdateNumber(ctx, existing.ID, existing.Number-1)
		}
		return st.Carts.Delete(ctx, existing.ID)
	})
	if err != nil {
		span.RecordError(err)
		return asAppError(err, "failed to remove from cart")
	}
	return nil
}

// List returns the caller's cart entries.
func (s *Service) List(ctx context.Context, actor entity.Actor) ([]entity.CartItem, error) {
	ctx, span := serviceTracer.Start(ctx, "CartService.List", trace.WithAttributes(attribute.Int64("user.id", actor.ID)))
	defer span.End()

	if err := requireCustomer(actor); err != nil {
		return nil, err
	}
	items, err := s.carts.List(ctx, actor.ID)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to list cart", errorbank.WithCause(err))
	}
	if items == nil {
		items = []entity.CartItem{}
	}
	return items, nil
}

// Clean empties the caller's cart.
func (s *Service) Clean(ctx context.Context, actor entity.Actor) error {
	ctx, span := serviceTracer.Start(ctx, "CartService.Clean", trace.WithAttributes(attribute.Int64("user.id", actor.ID)))
	defer span.End()

	if err := requireCustomer(actor); err != nil {
		return err
	}
	removed, err := s.carts.Clear(ctx, actor.ID)
	if err != nil {
		span.RecordError(err)
		return errorbank.Internal("failed to clean cart", errorbank.WithCause(err))
	}
	s.logger.Debug("cart cleaned", zap.Int64("user_id", actor.ID), zap.Int("removed", removed))
	return nil
}

func asAppError(err error, message string) error {
	var appErr *errorbank.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return errorbank.Internal(message, errorbank.WithCause(err))
}
