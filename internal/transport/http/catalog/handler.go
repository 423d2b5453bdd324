package catalog

import (
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/presentation/http/response"
	service "github.com/Additional-Code/kitchen/internal/service/catalog"
	"github.com/Additional-Code/kitchen/internal/transport/http/middleware"
	"github.com/Additional-Code/kitchen/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/kitchen/transport/http/catalog")

// Module wires HTTP catalog handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler exposes catalog sale-status toggles over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a catalog Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes POST /admin/{dish,combo}/status/:status?id=.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/admin", middleware.Staff())
	g.POST("/dish/status/:status", h.dishStatus)
	g.POST("/combo/status/:status", h.comboStatus)
}

func parse(c echo.Context) (int64, entity.SaleStatus, error) {
	status, err := strconv.Atoi(c.Param("status"))
	if err != nil {
		return 0, 0, errorbank.BadRequest("invalid status", errorbank.WithReason(errorbank.ReasonInvalidArgument))
	}
	id, err := strconv.ParseInt(c.QueryParam("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, 0, errorbank.BadRequest("invalid id", errorbank.WithReason(errorbank.ReasonInvalidArgument))
	}
	return id, entity.SaleStatus(status), nil
}

func (h *Handler) dishStatus(c echo.Context) error {
	b := response.New(c)

	id, status, err := parse(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "catalog.dishStatus", trace.WithAttributes(attribute.Int64("dish.id", id)))
	defer span.End()

	if err := h.svc.SetDishStatus(ctx, middleware.Actor(c), id, status); err != nil {
		return b.WithError(err).Build()
	}
	return b.Build()
}

func (h *Handler) comboStatus(c echo.Context) error {
	b := response.New(c)

	id, status, err := parse(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "catalog.comboStatus", trace.WithAttributes(attribute.Int64("combo.id", id)))
	defer span.End()

	if err := h.svc.SetComboStatus(ctx, middleware.Actor(c), id, status); err != nil {
		return b.WithError(err).Build()
	}
	return b.Build()
}
