package order

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/kitchen/internal/dto"
	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/port"
	"github.com/Additional-Code/kitchen/internal/presentation/http/response"
	service "github.com/Additional-Code/kitchen/internal/service/order"
	"github.com/Additional-Code/kitchen/internal/transport/http/middleware"
	"github.com/Additional-Code/kitchen/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/kitchen/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes the customer and merchant order endpoints.
func Register(e *echo.Echo, h *Handler) {
	user := e.Group("/user/order", middleware.Customer())
	user.POST("/submit", h.submit)
	user.PUT("/payment", h.pay)
	user.GET("/history", h.history)
	user.GET("/:id", h.get)
	user.PUT("/cancel/:id", h.userCancel)
	user.POST("/repetition/:id", h.reorder)

	admin := e.Group("/admin/order", middleware.Staff())
	admin.GET("/search", h.search)
	admin.GET("/statistics", h.statistics)
	admin.GET("/:id", h.get)
	admin.PUT("/confirm", h.accept)
	admin.PUT("/rejection", h.reject)
	admin.PUT("/cancel", h.adminCancel)
	admin.PUT("/delivery/:id", h.dispatch)
	admin.PUT("/complete/:id", h.complete)
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid id", errorbank.WithReason(errorbank.ReasonInvalidArgument))
	}
	return id, nil
}

func (h *Handler) submit(c echo.Context) error {
	b := response.New(c)

	var payload dto.SubmitOrderRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.submit")
	defer span.End()

	res, err := h.svc.Submit(ctx, middleware.Actor(c), service.SubmitInput{
		AddressBookID:         payload.AddressBookID,
		PayMethod:             payload.PayMethod,
		Remark:                payload.Remark,
		EstimatedDeliveryTime: lo.FromPtr(payload.EstimatedDeliveryTime),
		DeliveryStatus:        payload.DeliveryStatus,
		PackAmount:            payload.PackAmount,
		TablewareNumber:       payload.TablewareNumber,
		TablewareStatus:       payload.TablewareStatus,
	})
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.SubmitOrderResponse{
		ID:        res.ID,
		Number:    res.Number,
		Amount:    res.Amount,
		OrderTime: res.OrderTime,
	}).Build()
}

func (h *Handler) pay(c echo.Context) error {
	b := response.New(c)

	var payload dto.PaymentRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if payload.OrderNumber == "" {
		return b.WithError(errorbank.BadRequest("order_number is required")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.pay", trace.WithAttributes(attribute.String("order.number", payload.OrderNumber)))
	defer span.End()

	order, err := h.svc.Pay(ctx, middleware.Actor(c), payload.OrderNumber)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(*order)).Build()
}

func (h *Handler) history(c echo.Context) error {
	b := response.New(c)

	q, err := parseQuery(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.history")
	defer span.End()

	page, err := h.svc.History(ctx, middleware.Actor(c), q)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toPage(page)).Build()
}

func (h *Handler) search(c echo.Context) error {
	b := response.New(c)

	q, err := parseQuery(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.search")
	defer span.End()

	page, err := h.svc.Search(ctx, middleware.Actor(c), q)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toPage(page)).Build()
}

func (h *Handler) statistics(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.statistics")
	defer span.End()

	stats, err := h.svc.Statistics(ctx, middleware.Actor(c))
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(stats).Build()
}

func (h *Handler) get(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	detail, err := h.svc.Get(ctx, middleware.Actor(c), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.OrderDetailResponse{
		OrderResponse: dto.FromOrder(detail.Order),
		Lines:         dto.FromLines(detail.Lines),
	}).Build()
}

func (h *Handler) userCancel(c echo.Context) error {
	return h.byPathID(c, "orders.userCancel", h.svc.UserCancel)
}

func (h *Handler) dispatch(c echo.Context) error {
	return h.byPathID(c, "orders.dispatch", h.svc.Dispatch)
}

func (h *Handler) complete(c echo.Context) error {
	return h.byPathID(c, "orders.complete", h.svc.Complete)
}

func (h *Handler) reorder(c echo.Context) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.reorder", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := h.svc.Reorder(ctx, middleware.Actor(c), id); err != nil {
		return b.WithError(err).Build()
	}
	return b.Build()
}

func (h *Handler) accept(c echo.Context) error {
	b := response.New(c)

	var payload dto.ConfirmRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.accept", trace.WithAttributes(attribute.Int64("order.id", payload.ID)))
	defer span.End()

	order, err := h.svc.Accept(ctx, middleware.Actor(c), payload.ID)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(*order)).Build()
}

func (h *Handler) reject(c echo.Context) error {
	b := response.New(c)

	var payload dto.RejectionRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.reject", trace.WithAttributes(attribute.Int64("order.id", payload.ID)))
	defer span.End()

	order, err := h.svc.Reject(ctx, middleware.Actor(c), payload.ID, payload.RejectionReason)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(*order)).Build()
}

func (h *Handler) adminCancel(c echo.Context) error {
	b := response.New(c)

	var payload dto.CancelRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.adminCancel", trace.WithAttributes(attribute.Int64("order.id", payload.ID)))
	defer span.End()

	order, err := h.svc.AdminCancel(ctx, middleware.Actor(c), payload.ID, payload.CancelReason)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(*order)).Build()
}

type transitionFunc func(ctx context.Context, actor entity.Actor, id int64) (*entity.Order, error)

func (h *Handler) byPathID(c echo.Context, span string, fn transitionFunc) error {
	b := response.New(c)

	id, err := pathID(c)
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, sp := httpTracer.Start(c.Request().Context(), span, trace.WithAttributes(attribute.Int64("order.id", id)))
	defer sp.End()

	order, err := fn(ctx, middleware.Actor(c), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(*order)).Build()
}

// Accepted time layouts for begin_time and end_time.
var timeLayouts = []string{time.RFC3339, time.DateTime, time.DateOnly}

func parseTime(name, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errorbank.BadRequest("invalid "+name,
		errorbank.WithReason(errorbank.ReasonInvalidArgument),
		errorbank.WithDetail(name, raw),
	)
}

func parseInt(name, raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errorbank.BadRequest("invalid "+name,
			errorbank.WithReason(errorbank.ReasonInvalidArgument),
			errorbank.WithDetail(name, raw),
		)
	}
	return v, nil
}

func parseQuery(c echo.Context) (port.OrderQuery, error) {
	var (
		q   port.OrderQuery
		err error
	)
	if q.Page, err = parseInt("page", c.QueryParam("page")); err != nil {
		return q, err
	}
	if q.PageSize, err = parseInt("page_size", c.QueryParam("page_size")); err != nil {
		return q, err
	}
	status, err := parseInt("status", c.QueryParam("status"))
	if err != nil {
		return q, err
	}
	if status != 0 {
		q.Status = entity.OrderStatus(status)
		if !q.Status.Valid() {
			return q, errorbank.BadRequest("unknown status", errorbank.WithReason(errorbank.ReasonInvalidArgument))
		}
	}
	if q.Begin, err = parseTime("begin_time", c.QueryParam("begin_time")); err != nil {
		return q, err
	}
	if q.End, err = parseTime("end_time", c.QueryParam("end_time")); err != nil {
		return q, err
	}
	q.Number = c.QueryParam("number")
	q.Phone = c.QueryParam("phone")
	return q, nil
}

func toPage(page *service.Page) dto.PageResponse[dto.OrderDetailResponse] {
	return dto.PageResponse[dto.OrderDetailResponse]{
		Total: page.Total,
		Records: lo.Map(page.Records, func(s service.Summary, _ int) dto.OrderDetailResponse {
			return dto.OrderDetailResponse{
				OrderResponse: dto.FromOrder(s.Order),
				Lines:         dto.FromLines(s.Lines),
				Dishes:        s.Dishes,
			}
		}),
	}
}
