package cart

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"

	"github.com/Additional-Code/kitchen/internal/dto"
	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/presentation/http/response"
	service "github.com/Additional-Code/kitchen/internal/service/cart"
	"github.com/Additional-Code/kitchen/internal/transport/http/middleware"
	"github.com/Additional-Code/kitchen/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/kitchen/transport/http/cart")

// Module wires HTTP cart handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler exposes the customer's cart over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a cart Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes the cart endpoints.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/user/cart", middleware.Customer())
	g.POST("/add", h.add)
	g.POST("/sub", h.sub)
	g.GET("/list", h.list)
	g.DELETE("/clean", h.clean)
}

func (h *Handler) add(c echo.Context) error {
	b := response.New(c)

	var payload dto.CartRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "cart.add")
	defer span.End()

	item, err := h.svc.Add(ctx, middleware.Actor(c), payload.Key())
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.FromCart([]entity.CartItem{*item})[0]).Build()
}

func (h *Handler) sub(c echo.Context) error {
	b := response.New(c)

	var payload dto.CartRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "cart.sub")
	defer span.End()

	if err := h.svc.Sub(ctx, middleware.Actor(c), payload.Key()); err != nil {
		return b.WithError(err).Build()
	}
	return b.Build()
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "cart.list")
	defer span.End()

	items, err := h.svc.List(ctx, middleware.Actor(c))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromCart(items)).Build()
}

func (h *Handler) clean(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "cart.clean")
	defer span.End()

	if err := h.svc.Clean(ctx, middleware.Actor(c)); err != nil {
		return b.WithError(err).Build()
	}
	return b.Build()
}
