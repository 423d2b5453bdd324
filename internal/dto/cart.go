package dto

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/Additional-Code/kitchen/internal/entity"
)

// CartRequest names a dish (with flavor) or a combo.
type CartRequest struct {
	DishID     int64  `json:"dish_id"`
	ComboID    int64  `json:"combo_id"`
	DishFlavor string `json:"dish_flavor"`
}

// Key returns the cart identity of the request.
func (r CartRequest) Key() entity.CartKey {
	return entity.CartKey{DishID: r.DishID, ComboID: r.ComboID, DishFlavor: r.DishFlavor}
}

// CartItemResponse is one cart entry.
type CartItemResponse struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	Image      string          `json:"image,omitempty"`
	DishID     int64           `json:"dish_id,omitempty"`
	ComboID    int64           `json:"combo_id,omitempty"`
	DishFlavor string          `json:"dish_flavor,omitempty"`
	Number     int             `json:"number"`
	Amount     decimal.Decimal `json:"amount"`
	CreatedAt  time.Time       `json:"created_at"`
}

// FromCart converts cart entries into their transport form.
func FromCart(items []entity.CartItem) []CartItemResponse {
	return lo.Map(items, func(c entity.CartItem, _ int) CartItemResponse {
		return CartItemResponse{
			ID:         c.ID,
			Name:       c.Name,
			Image:      c.Image,
			DishID:     c.DishID,
			ComboID:    c.ComboID,
			DishFlavor: c.DishFlavor,
			Number:     c.Number,
			Amount:     c.Amount,
			CreatedAt:  c.CreatedAt,
		}
	})
}
