package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// SaleStatus marks a catalog item as on or off sale.
type SaleStatus int

const (
	SaleDisabled SaleStatus = 0
	SaleEnabled  SaleStatus = 1
)

// Dish is a single catalog item.
type Dish struct {
	bun.BaseModel `bun:"table:dishes"`

	ID          int64           `bun:",pk,autoincrement"`
	Name        string          `bun:"name,notnull,unique"`
	CategoryID  int64           `bun:"category_id"`
	Price       decimal.Decimal `bun:"price,type:numeric(10,2),notnull"`
	Image       string          `bun:"image"`
	Description string          `bun:"description"`
	Status      SaleStatus      `bun:"status,notnull"`
	UpdatedAt   time.Time       `bun:"updated_at,nullzero"`
}

// Combo bundles several dishes sold together.
type Combo struct {
	bun.BaseModel `bun:"table:combos"`

	ID          int64           `bun:",pk,autoincrement"`
	Name        string          `bun:"name,notnull,unique"`
	CategoryID  int64           `bun:"category_id"`
	Price       decimal.Decimal `bun:"price,type:numeric(10,2),notnull"`
	Image       string          `bun:"image"`
	Description string          `bun:"description"`
	Status      SaleStatus      `bun:"status,notnull"`
	UpdatedAt   time.Time       `bun:"updated_at,nullzero"`
}

// ComboDish links a dish into a combo.
type ComboDish struct {
	bun.BaseModel `bun:"table:combo_dishes"`

	ID      int64           `bun:",pk,autoincrement"`
	ComboID int64           `bun:"combo_id,notnull"`
	DishID  int64           `bun:"dish_id,notnull"`
	Name    string          `bun:"name"`
	Price   decimal.Decimal `bun:"price,type:numeric(10,2)"`
	Copies  int             `bun:"copies,notnull"`
}

// CatalogItem is the read view of a dish or combo used for cart pricing.
type CatalogItem struct {
	Name    string
	Image   string
	Price   decimal.Decimal
	Enabled bool
}

// CatalogItem returns the pricing view of the dish.
func (d Dish) CatalogItem() CatalogItem {
	return CatalogItem{Name: d.Name, Image: d.Image, Price: d.Price, Enabled: d.Status == SaleEnabled}
}

// CatalogItem returns the pricing view of the combo.
func (c Combo) CatalogItem() CatalogItem {
	return CatalogItem{Name: c.Name, Image: c.Image, Price: c.Price, Enabled: c.Status == SaleEnabled}
}
