package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// CartItem is a per-user cart entry. Name, image and price are cached from the catalog when the item is
// first added and never refreshed.
type CartItem struct {
	bun.BaseModel `bun:"table:cart_items"`

	ID         int64           `bun:",pk,autoincrement"`
	UserID     int64           `bun:"user_id,notnull"`
	Name       string          `bun:"name,notnull"`
	Image      string          `bun:"image"`
	DishID     int64           `bun:"dish_id,nullzero"`
	ComboID    int64           `bun:"combo_id,nullzero"`
	DishFlavor string          `bun:"dish_flavor"`
	Number     int             `bun:"number,notnull"`
	Amount     decimal.Decimal `bun:"amount,type:numeric(10,2),notnull"`
	CreatedAt  time.Time       `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
}

// CartKey identifies a cart entry within one user's cart. Exactly one of DishID and ComboID is set.
type CartKey struct {
	DishID     int64
	ComboID    int64
	DishFlavor string
}

// Valid reports whether exactly one item reference is set.
func (k CartKey) Valid() bool {
	return (k.DishID > 0) != (k.ComboID > 0)
}

// Key returns the identity of the entry.
func (c CartItem) Key() CartKey {
	return CartKey{DishID: c.DishID, ComboID: c.ComboID, DishFlavor: c.DishFlavor}
}

// ToOrderLine snapshots the entry into a line of orderID.
func (c CartItem) ToOrderLine(orderID int64) OrderLine {
	return OrderLine{
		OrderID:    orderID,
		Name:       c.Name,
		Image:      c.Image,
		DishID:     c.DishID,
		ComboID:    c.ComboID,
		DishFlavor: c.DishFlavor,
		Number:     c.Number,
		Amount:     c.Amount,
	}
}

// CartItemFromLine copies an order line back into a cart entry for userID.
func CartItemFromLine(userID int64, line OrderLine, now time.Time) CartItem {
	return CartItem{
		UserID:     userID,
		Name:       line.Name,
		Image:      line.Image,
		DishID:     line.DishID,
		ComboID:    line.ComboID,
		DishFlavor: line.DishFlavor,
		Number:     line.Number,
		Amount:     line.Amount,
		CreatedAt:  now,
	}
}
