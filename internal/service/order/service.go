package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/Additional-Code/kitchen/internal/cache"
	"github.com/Additional-Code/kitchen/internal/config"
	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/geo"
	"github.com/Additional-Code/kitchen/internal/messaging"
	"github.com/Additional-Code/kitchen/internal/observability"
	"github.com/Additional-Code/kitchen/internal/port"
	"github.com/Additional-Code/kitchen/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/kitchen/service/order")

// Service is the order lifecycle engine: submission, every state transition and the read models
// derived from the ledger.
type Service struct {
	orders    port.OrderLedger
	tx        port.Transactor
	addresses port.AddressBook
	geocoder  port.Geocoder
	refunds   port.RefundGateway
	cache     cache.Store
	cacheTTL  time.Duration
	flight    singleflight.Group
	publisher messaging.Client
	topic     string
	metrics   *observability.Metrics
	logger    *zap.Logger
	shop      shopPolicy
	now       func() time.Time
}

type shopPolicy struct {
	origin      port.Coordinate
	maxDistance int
	deliveryFee decimal.Decimal
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders     port.OrderLedger
	Transactor port.Transactor
	Addresses  port.AddressBook
	Geocoder   port.Geocoder
	Refunds    port.RefundGateway
	Cache      cache.Store
	Publisher  messaging.Client
	Metrics    *observability.Metrics `optional:"true"`
	Config     config.Config
	Logger     *zap.Logger
	Clock      func() time.Time `name:"clock" optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) (*Service, error) {
	var origin port.Coordinate
	if p.Config.Geo.Enabled {
		var err error
		if origin, err = geo.ParseCoordinate(p.Config.Shop.Coordinate); err != nil {
			return nil, fmt.Errorf("shop coordinate: %w", err)
		}
	}

	now := p.Clock
	if now == nil {
		now = time.Now
	}

	topic := ""
	if p.Config.Messaging.Enabled {
		topic = p.Config.Messaging.Topics.OrderEvents
	}

	return &Service{
		orders:    p.Orders,
		tx:        p.Transactor,
		addresses: p.Addresses,
		geocoder:  p.Geocoder,
		refunds:   p.Refunds,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		publisher: p.Publisher,
		topic:     topic,
		metrics:   p.Metrics,
		logger:    p.Logger.Named("orders"),
		shop: shopPolicy{
			origin:      origin,
			maxDistance: p.Config.Shop.MaxDeliveryDistance,
			deliveryFee: p.Config.Shop.DeliveryFee,
		},
		now: now,
	}, nil
}

// Detail is an order together with its lines.
type Detail struct {
	Order entity.Order       `json:"order"`
	Lines []entity.OrderLine `json:"lines"`
}

// Get returns an order with its lines, consulting the cache first. Customers only see their own orders.
func (s *Service) Get(ctx context.Context, actor entity.Actor, id int64) (*Detail, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	detail, err := s.loadDetail(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, err
	}
	if actor.Role == entity.RoleCustomer && detail.Order.UserID != actor.ID {
		return nil, orderNotFound(id)
	}
	return detail, nil
}

func (s *Service) loadDetail(ctx context.Context, id int64) (*Detail, error) {
	if detail, err := s.getFromCache(ctx, id); err == nil {
		return detail, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("order_id", id), zap.Error(err))
	}

	v, err, _ := s.flight.Do(s.cacheKey(id), func() (any, error) {
		order, err := s.orders.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, port.ErrNotFound) {
				return nil, orderNotFound(id)
			}
			return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
		}
		lines, err := s.orders.Lines(ctx, id)
		if err != nil {
			return nil, errorbank.Internal("failed to load order lines", errorbank.WithCause(err))
		}
		detail := &Detail{Order: *order, Lines: lines}
		if err := s.storeInCache(ctx, detail); err != nil {
			s.logger.Warn("orders cache write failed", zap.Int64("order_id", id), zap.Error(err))
		}
		return detail, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Detail), nil
}

// loadOwned reads an order for a transition. Orders of other customers are reported as missing.
func (s *Service) loadOwned(ctx context.Context, actor entity.Actor, id int64) (*entity.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, port.ErrNotFound) {
			return nil, orderNotFound(id)
		}
		return nil, errorbank.Internal("failed to load order", errorbank.WithCause(err))
	}
	if actor.Role == entity.RoleCustomer && order.UserID != actor.ID {
		return nil, orderNotFound(id)
	}
	return order, nil
}

func orderNotFound(id int64) error {
	return errorbank.NotFound("order not found",
		errorbank.WithReason(errorbank.ReasonOrderNotFound),
		errorbank.WithDetail("order_id", id),
	)
}

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*Detail, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	return cache.GetJSON[Detail](ctx, s.cache, s.cacheKey(id))
}

func (s *Service) storeInCache(ctx context.Context, detail *Detail) error {
	if s.cache == nil {
		return nil
	}
	return cache.SetJSON(ctx, s.cache, s.cacheKey(detail.Order.ID), detail, s.cacheTTL)
}

func (s *Service) evict(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil {
		s.logger.Warn("orders cache evict failed", zap.Int64("order_id", id), zap.Error(err))
	}
}

// Event is published on the order events topic after every committed state change.
type Event struct {
	Type       string    `json:"type"`
	OrderID    int64     `json:"order_id"`
	Number     string    `json:"number"`
	UserID     int64     `json:"user_id"`
	From       string    `json:"from,omitempty"`
	Status     string    `json:"status"`
	PayStatus  string    `json:"pay_status"`
	Actor      string    `json:"actor"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (s *Service) publish(ctx context.Context, event Event) {
	if s.topic == "" || s.publisher == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.Error(err))
		return
	}
	key := []byte("order-" + strconv.FormatInt(event.OrderID, 10))
	if err := s.publisher.Publish(ctx, s.topic, key, payload); err != nil {
		s.logger.Error("publish order event",
			zap.String("type", event.Type),
			zap.Int64("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}
