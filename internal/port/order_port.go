package port

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/kitchen/internal/entity"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStaleState is returned when a compare-and-swap transition matched no row because the order
	// moved on since it was read.
	ErrStaleState = errors.New("stale order state")
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// OrderQuery enumerates the optional filters for order searches. Zero values mean "no filter".
type OrderQuery struct {
	UserID   int64
	Number   string
	Phone    string
	Status   entity.OrderStatus
	Begin    time.Time
	End      time.Time
	Page     int
	PageSize int
}

// Normalize clamps paging to sane bounds.
func (q OrderQuery) Normalize() OrderQuery {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

// Offset is the row offset of the requested page.
func (q OrderQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// OrderCountQuery filters status counts over an order-time range. Nil Status counts every status.
type OrderCountQuery struct {
	Status *entity.OrderStatus
	Begin  time.Time
	End    time.Time
}

// OrderTransition is a compare-and-swap update: it applies only while the order still has FromStatus
// and FromPay. Zero times and empty reasons leave the stored column untouched.
type OrderTransition struct {
	ID              int64
	FromStatus      entity.OrderStatus
	FromPay         entity.PayStatus
	ToStatus        entity.OrderStatus
	ToPay           entity.PayStatus
	CheckoutTime    time.Time
	CancelTime      time.Time
	DeliveryTime    time.Time
	CancelReason    string
	RejectionReason string
	UpdatedAt       time.Time
}

// Apply returns a copy of order with the transition's effects.
func (t OrderTransition) Apply(order entity.Order) entity.Order {
	order.Status = t.ToStatus
	order.PayStatus = t.ToPay
	if !t.CheckoutTime.IsZero() {
		order.CheckoutTime = t.CheckoutTime
	}
	if !t.CancelTime.IsZero() {
		order.CancelTime = t.CancelTime
	}
	if !t.DeliveryTime.IsZero() {
		order.DeliveryTime = t.DeliveryTime
	}
	if t.CancelReason != "" {
		order.CancelReason = t.CancelReason
	}
	if t.RejectionReason != "" {
		order.RejectionReason = t.RejectionReason
	}
	if !t.UpdatedAt.IsZero() {
		order.UpdatedAt = t.UpdatedAt
	}
	return order
}

// OrderLedger is the durable store of orders and their lines.
type OrderLedger interface {
	Create(ctx context.Context, order *entity.Order, lines []entity.OrderLine) error
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	GetByNumber(ctx context.Context, number string) (*entity.Order, error)
	Lines(ctx context.Context, orderID int64) ([]entity.OrderLine, error)
	LinesByOrders(ctx context.Context, orderIDs []int64) (map[int64][]entity.OrderLine, error)
	Search(ctx context.Context, q OrderQuery) ([]entity.Order, int, error)
	CountByStatus(ctx context.Context) (map[entity.OrderStatus]int, error)
	ListByStatusBefore(ctx context.Context, status entity.OrderStatus, before time.Time) ([]entity.Order, error)
	Transition(ctx context.Context, t OrderTransition) error
}

// DailyTurnover is the completed-order revenue of one calendar day.
type DailyTurnover struct {
	Day      time.Time
	Turnover decimal.Decimal
}

// SoldItem is an item name with its total sold quantity.
type SoldItem struct {
	Name     string
	Quantity int
}

// OrderReporter is the read-only query contract the reporting side needs from the ledger.
type OrderReporter interface {
	CountByStatusAndTimeRange(ctx context.Context, q OrderCountQuery) (int, error)
	SumTurnoverByDay(ctx context.Context, begin, end time.Time) ([]DailyTurnover, error)
	TopSoldItems(ctx context.Context, begin, end time.Time, limit int) ([]SoldItem, error)
}
