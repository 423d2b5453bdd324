package report

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"

	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/presentation/http/response"
	service "github.com/Additional-Code/kitchen/internal/service/report"
	"github.com/Additional-Code/kitchen/internal/transport/http/middleware"
	"github.com/Additional-Code/kitchen/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/kitchen/transport/http/report")

// Module wires HTTP report handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Handler exposes the merchant dashboards over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs a report Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes GET /admin/report/{turnover,orders,top10}?begin=YYYY-MM-DD&end=YYYY-MM-DD.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/admin/report", middleware.Staff())
	g.GET("/turnover", func(c echo.Context) error {
		return serve(c, h, "reports.turnover", func(ctx context.Context, a entity.Actor, begin, end time.Time) (any, error) {
			return h.svc.Turnover(ctx, a, begin, end)
		})
	})
	g.GET("/orders", func(c echo.Context) error {
		return serve(c, h, "reports.orders", func(ctx context.Context, a entity.Actor, begin, end time.Time) (any, error) {
			return h.svc.OrderStatistics(ctx, a, begin, end)
		})
	})
	g.GET("/top10", func(c echo.Context) error {
		return serve(c, h, "reports.top10", func(ctx context.Context, a entity.Actor, begin, end time.Time) (any, error) {
			return h.svc.SalesTop10(ctx, a, begin, end)
		})
	})
}

type reportFunc func(ctx context.Context, actor entity.Actor, begin, end time.Time) (any, error)

func serve(c echo.Context, h *Handler, name string, fn reportFunc) error {
	b := response.New(c)

	begin, err := h.date(c, "begin")
	if err != nil {
		return b.WithError(err).Build()
	}
	end, err := h.date(c, "end")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), name)
	defer span.End()

	data, err := fn(ctx, middleware.Actor(c), begin, end)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(data).Build()
}

func (h *Handler) date(c echo.Context, name string) (time.Time, error) {
	raw := c.QueryParam(name)
	t, err := time.ParseInLocation(time.DateOnly, raw, h.svc.Location())
	if err != nil {
		return time.Time{}, errorbank.BadRequest(name+" must be a YYYY-MM-DD date",
			errorbank.WithReason(errorbank.ReasonInvalidArgument),
			errorbank.WithDetail(name, raw),
		)
	}
	return t, nil
}
