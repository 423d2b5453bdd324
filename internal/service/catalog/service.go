package catalog

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/port"
	"github.com/Additional-Code/kitchen/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/kitchen/service/catalog")

// Module provides the catalog service to Fx.
var Module = fx.Provide(NewService)

// Service toggles the sale status of dishes and combos.
type Service struct {
	catalog port.Catalog
	logger  *zap.Logger
}

// NewService wires a new Service instance.
func NewService(catalog port.Catalog, logger *zap.Logger) *Service {
	return &Service{catalog: catalog, logger: logger.Named("catalog")}
}

func requireStaff(actor entity.Actor) error {
	if actor.Role != entity.RoleStaff {
		return errorbank.Forbidden("only staff may change the catalog")
	}
	return nil
}

func validStatus(status entity.SaleStatus) error {
	if status != entity.SaleEnabled && status != entity.SaleDisabled {
		return errorbank.BadRequest("status must be 0 or 1",
			errorbank.WithReason(errorbank.ReasonInvalidArgument),
			errorbank.WithDetail("status", int(status)),
		)
	}
	return nil
}

// SetDishStatus puts a dish on or off sale.
func (s *Service) SetDishStatus(ctx context.Context, actor entity.Actor, id int64, status entity.SaleStatus) error {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.SetDishStatus", trace.WithAttributes(attribute.Int64("dish.id", id)))
	defer span.End()

	if err := requireStaff(actor); err != nil {
		return err
	}
	if err := validStatus(status); err != nil {
		return err
	}
	if err := s.catalog.SetDishStatus(ctx, id, status); err != nil {
		span.RecordError(err)
		return translate(err, "dish", id)
	}
	s.logger.Info("dish status changed", zap.Int64("dish_id", id), zap.Int("status", int(status)))
	return nil
}

// SetComboStatus puts a combo on or off sale. A combo cannot go on sale while any of its dishes is off sale.
func (s *Service) SetComboStatus(ctx context.Context, actor entity.Actor, id int64, status entity.SaleStatus) error {
	ctx, span := serviceTracer.Start(ctx, "CatalogService.SetComboStatus", trace.WithAttributes(attribute.Int64("combo.id", id)))
	defer span.End()

	if err := requireStaff(actor); err != nil {
		return err
	}
	if err := validStatus(status); err != nil {
		return err
	}

	if status == entity.SaleEnabled {
		dishes, err := s.catalog.ComboDishes(ctx, id)
		if err != nil {
			span.RecordError(err)
			return errorbank.Internal("failed to load combo dishes", errorbank.WithCause(err))
		}
		for _, dish := range dishes {
			if dish.Status == entity.SaleDisabled {
				return errorbank.Unprocessable("combo contains a dish that is off sale",
					errorbank.WithReason(errorbank.ReasonComboEnableFailed),
					errorbank.WithDetail("dish_id", dish.ID),
					errorbank.WithDetail("dish", dish.Name),
				)
			}
		}
	}

	if err := s.catalog.SetComboStatus(ctx, id, status); err != nil {
		span.RecordError(err)
		return translate(err, "combo", id)
	}
	s.logger.Info("combo status changed", zap.Int64("combo_id", id), zap.Int("status", int(status)))
	return nil
}

func translate(err error, kind string, id int64) error {
	if errors.Is(err, port.ErrNotFound) {
		return errorbank.NotFound(kind+" not found",
			errorbank.WithReason(errorbank.ReasonItemNotFound),
			errorbank.WithDetail("id", id),
		)
	}
	return errorbank.Internal("failed to update "+kind, errorbank.WithCause(err))
}
