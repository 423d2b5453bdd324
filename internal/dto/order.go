package dto

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/Additional-Code/kitchen/internal/entity"
)

// SubmitOrderRequest is the customer's checkout payload.
type SubmitOrderRequest struct {
	AddressBookID         int64      `json:"address_book_id"`
	PayMethod             int        `json:"pay_method"`
	Remark                string     `json:"remark"`
	EstimatedDeliveryTime *time.Time `json:"estimated_delivery_time"`
	DeliveryStatus        int        `json:"delivery_status"`
	PackAmount            int        `json:"pack_amount"`
	TablewareNumber       int        `json:"tableware_number"`
	TablewareStatus       int        `json:"tableware_status"`
}

// PaymentRequest pays for an order by number.
type PaymentRequest struct {
	OrderNumber string `json:"order_number"`
	PayMethod   int    `json:"pay_method"`
}

// RejectionRequest declines an order awaiting the merchant.
type RejectionRequest struct {
	ID              int64  `json:"id"`
	RejectionReason string `json:"rejection_reason"`
}

// CancelRequest cancels an order on the merchant side.
type CancelRequest struct {
	ID           int64  `json:"id"`
	CancelReason string `json:"cancel_reason"`
}

// ConfirmRequest accepts an order awaiting the merchant.
type ConfirmRequest struct {
	ID int64 `json:"id"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID                    int64           `json:"id"`
	Number                string          `json:"number"`
	Status                int             `json:"status"`
	StatusName            string          `json:"status_name"`
	PayStatus             int             `json:"pay_status"`
	PayStatusName         string          `json:"pay_status_name"`
	PayMethod             int             `json:"pay_method"`
	UserID                int64           `json:"user_id"`
	AddressBookID         int64           `json:"address_book_id"`
	Amount                decimal.Decimal `json:"amount"`
	Remark                string          `json:"remark,omitempty"`
	Phone                 string          `json:"phone"`
	Address               string          `json:"address"`
	Consignee             string          `json:"consignee"`
	OrderTime             time.Time       `json:"order_time"`
	CheckoutTime          *time.Time      `json:"checkout_time,omitempty"`
	CancelReason          string          `json:"cancel_reason,omitempty"`
	RejectionReason       string          `json:"rejection_reason,omitempty"`
	CancelTime            *time.Time      `json:"cancel_time,omitempty"`
	EstimatedDeliveryTime *time.Time      `json:"estimated_delivery_time,omitempty"`
	DeliveryStatus        int             `json:"delivery_status"`
	DeliveryTime          *time.Time      `json:"delivery_time,omitempty"`
	PackAmount            int             `json:"pack_amount"`
	TablewareNumber       int             `json:"tableware_number"`
	TablewareStatus       int             `json:"tableware_status"`
}

// OrderLineResponse is one line of an order.
type OrderLineResponse struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Image      string          `json:"image,omitempty"`
	DishID     int64           `json:"dish_id,omitempty"`
	ComboID    int64           `json:"combo_id,omitempty"`
	DishFlavor string          `json:"dish_flavor,omitempty"`
	Number     int             `json:"number"`
	Amount     decimal.Decimal `json:"amount"`
}

// OrderDetailResponse is an order with its lines and, for merchant searches, the dish summary.
type OrderDetailResponse struct {
	OrderResponse
	Lines  []OrderLineResponse `json:"lines,omitempty"`
	Dishes string              `json:"dishes,omitempty"`
}

// PageResponse is one page of results.
type PageResponse[T any] struct {
	Total   int `json:"total"`
	Records []T `json:"records"`
}

// SubmitOrderResponse identifies a newly created order.
type SubmitOrderResponse struct {
	ID        int64           `json:"id"`
	Number    string          `json:"order_number"`
	Amount    decimal.Decimal `json:"order_amount"`
	OrderTime time.Time       `json:"order_time"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// FromOrder converts an order into its transport form.
func FromOrder(o entity.Order) OrderResponse {
	return OrderResponse{
		ID:                    o.ID,
		Number:                o.Number,
		Status:                int(o.Status),
		StatusName:            o.Status.String(),
		PayStatus:             int(o.PayStatus),
		PayStatusName:         o.PayStatus.String(),
		PayMethod:             o.PayMethod,
		UserID:                o.UserID,
		AddressBookID:         o.AddressBookID,
		Amount:                o.Amount,
		Remark:                o.Remark,
		Phone:                 o.Phone,
		Address:               o.Address,
		Consignee:             o.Consignee,
		OrderTime:             o.OrderTime,
		CheckoutTime:          optionalTime(o.CheckoutTime),
		CancelReason:          o.CancelReason,
		RejectionReason:       o.RejectionReason,
		CancelTime:            optionalTime(o.CancelTime),
		EstimatedDeliveryTime: optionalTime(o.EstimatedDeliveryTime),
		DeliveryStatus:        o.DeliveryStatus,
		DeliveryTime:          optionalTime(o.DeliveryTime),
		PackAmount:            o.PackAmount,
		TablewareNumber:       o.TablewareNumber,
		TablewareStatus:       o.TablewareStatus,
	}
}

// FromLines converts order lines into their transport form.
func FromLines(lines []entity.OrderLine) []OrderLineResponse {
	return lo.Map(lines, func(l entity.OrderLine, _ int) OrderLineResponse {
		return OrderLineResponse{
			ID:         l.ID,
			Name:       l.Name,
			Image:      l.Image,
			DishID:     l.DishID,
			ComboID:    l.ComboID,
			DishFlavor: l.DishFlavor,
			Number:     l.Number,
			Amount:     l.Amount,
		}
	})
}
