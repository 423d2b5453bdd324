package entity

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// OrderStatus is the fulfillment state of an order. The fulfillment states form a total order;
// StatusCancelled sits outside that order.
type OrderStatus int

const (
	StatusPendingPayment     OrderStatus = 1
	StatusToBeConfirmed      OrderStatus = 2
	StatusConfirmed          OrderStatus = 3
	StatusDeliveryInProgress OrderStatus = 4
	StatusCompleted          OrderStatus = 5
	StatusCancelled          OrderStatus = 6
)

var statusNames = map[OrderStatus]string{
	StatusPendingPayment:     "PENDING_PAYMENT",
	StatusToBeConfirmed:      "TO_BE_CONFIRMED",
	StatusConfirmed:          "CONFIRMED",
	StatusDeliveryInProgress: "DELIVERY_IN_PROGRESS",
	StatusCompleted:          "COMPLETED",
	StatusCancelled:          "CANCELLED",
}

// String returns the canonical upper-case status name.
func (s OrderStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "UNKNOWN(" + strconv.Itoa(int(s)) + ")"
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Rank returns the position of s in the fulfillment progression. ok is false for
// StatusCancelled and unknown values, which have no rank.
func (s OrderStatus) Rank() (rank int, ok bool) {
	if s >= StatusPendingPayment && s <= StatusCompleted {
		return int(s), true
	}
	return 0, false
}

// AtMost reports whether s is ranked and no further along than limit.
func (s OrderStatus) AtMost(limit OrderStatus) bool {
	r, ok := s.Rank()
	if !ok {
		return false
	}
	l, ok := limit.Rank()
	return ok && r <= l
}

// Terminal reports whether no further transition can leave s.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseOrderStatus accepts either the numeric code or the canonical name.
func ParseOrderStatus(v string) (OrderStatus, bool) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		s := OrderStatus(n)
		return s, s.Valid()
	}
	for s, name := range statusNames {
		if strings.EqualFold(name, v) {
			return s, true
		}
	}
	return 0, false
}

// edges lists every status move an order may make.
var edges = map[OrderStatus][]OrderStatus{
	StatusPendingPayment:     {StatusToBeConfirmed, StatusCancelled},
	StatusToBeConfirmed:      {StatusConfirmed, StatusCancelled},
	StatusConfirmed:          {StatusDeliveryInProgress, StatusCancelled},
	StatusDeliveryInProgress: {StatusCompleted, StatusCancelled},
}

// CanMove reports whether from → to is a defined edge of the state machine.
func CanMove(from, to OrderStatus) bool {
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PayStatus tracks money movement independently of fulfillment.
type PayStatus int

const (
	PayUnpaid PayStatus = 0
	PayPaid   PayStatus = 1
	PayRefund PayStatus = 2
)

// String returns the canonical upper-case pay status name.
func (p PayStatus) String() string {
	switch p {
	case PayUnpaid:
		return "UNPAID"
	case PayPaid:
		return "PAID"
	case PayRefund:
		return "REFUND"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(p)) + ")"
	}
}

// Order is a customer's purchase tracked through the fulfillment state machine. Address, consignee and
// phone are snapshots taken at submission.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID                    int64           `bun:",pk,autoincrement"`
	Number                string          `bun:"number,notnull,unique"`
	Status                OrderStatus     `bun:"status,notnull"`
	PayStatus             PayStatus       `bun:"pay_status,notnull"`
	PayMethod             int             `bun:"pay_method,notnull"`
	UserID                int64           `bun:"user_id,notnull"`
	AddressBookID         int64           `bun:"address_book_id,notnull"`
	Amount                decimal.Decimal `bun:"amount,type:numeric(10,2),notnull"`
	Remark                string          `bun:"remark"`
	Phone                 string          `bun:"phone"`
	Address               string          `bun:"address"`
	Consignee             string          `bun:"consignee"`
	OrderTime             time.Time       `bun:"order_time,notnull"`
	CheckoutTime          time.Time       `bun:"checkout_time,nullzero"`
	CancelReason          string          `bun:"cancel_reason"`
	RejectionReason       string          `bun:"rejection_reason"`
	CancelTime            time.Time       `bun:"cancel_time,nullzero"`
	EstimatedDeliveryTime time.Time       `bun:"estimated_delivery_time,nullzero"`
	DeliveryStatus        int             `bun:"delivery_status,notnull"`
	DeliveryTime          time.Time       `bun:"delivery_time,nullzero"`
	PackAmount            int             `bun:"pack_amount,notnull"`
	TablewareNumber       int             `bun:"tableware_number,notnull"`
	TablewareStatus       int             `bun:"tableware_status,notnull"`
	UpdatedAt             time.Time       `bun:"updated_at,nullzero"`
}

// OrderLine is an immutable snapshot of one cart entry taken at submission.
type OrderLine struct {
	bun.BaseModel `bun:"table:order_lines"`

	ID         int64           `bun:",pk,autoincrement"`
	OrderID    int64           `bun:"order_id,notnull"`
	Name       string          `bun:"name,notnull"`
	Image      string          `bun:"image"`
	DishID     int64           `bun:"dish_id,nullzero"`
	ComboID    int64           `bun:"combo_id,nullzero"`
	DishFlavor string          `bun:"dish_flavor"`
	Number     int             `bun:"number,notnull"`
	Amount     decimal.Decimal `bun:"amount,type:numeric(10,2),notnull"`
}

// Subtotal is the unit price times quantity.
func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Amount.Mul(decimal.NewFromInt(int64(l.Number)))
}

// DishString renders lines as "name*qty" joined by ";\n" in line order.
func DishString(lines []OrderLine) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		parts = append(parts, line.Name+"*"+strconv.Itoa(line.Number))
	}
	return strings.Join(parts, ";\n")
}
