package seeder

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/database"
	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/repository/address"
	"github.com/Additional-Code/kitchen/internal/repository/cart"
	"github.com/Additional-Code/kitchen/internal/repository/catalog"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// DemoUserID owns the seeded address book entry.
const DemoUserID int64 = 1

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db        *bun.DB
	catalog   *catalog.Repository
	addresses *address.Repository
	carts     *cart.Repository
	logger    *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(
	conns *database.Connections,
	catalog *catalog.Repository,
	addresses *address.Repository,
	carts *cart.Repository,
	logger *zap.Logger,
) *Seeder {
	return &Seeder{db: conns.Writer, catalog: catalog, addresses: addresses, carts: carts, logger: logger}
}

// Catalog seeds a small menu and one combo if no dish exists yet.
func (s *Seeder) Catalog(ctx context.Context) error {
	count, err := s.db.NewSelect().Model((*entity.Dish)(nil)).Count(ctx)
	if err != nil {
		return fmt.Errorf("count dishes: %w", err)
	}
	if count > 0 {
		s.logger.Info("catalog already seeded", zap.Int("dishes", count))
		return nil
	}

	dishes := []entity.Dish{
		{Name: "Kung Pao Chicken", Price: decimal.RequireFromString("28.00"), Status: entity.SaleEnabled},
		{Name: "Mapo Tofu", Price: decimal.RequireFromString("18.50"), Status: entity.SaleEnabled},
		{Name: "Egg Fried Rice", Price: decimal.RequireFromString("12.00"), Status: entity.SaleEnabled},
		{Name: "Seasonal Greens", Price: decimal.RequireFromString("15.00"), Status: entity.SaleDisabled},
	}
	for i := range dishes {
		if err := s.catalog.InsertDish(ctx, &dishes[i]); err != nil {
			return fmt.Errorf("insert dish %s: %w", dishes[i].Name, err)
		}
	}

	combo := entity.Combo{Name: "Lunch Set", Price: decimal.RequireFromString("36.00"), Status: entity.SaleEnabled}
	links := []entity.ComboDish{
		{DishID: dishes[0].ID, Name: dishes[0].Name, Price: dishes[0].Price, Copies: 1},
		{DishID: dishes[2].ID, Name: dishes[2].Name, Price: dishes[2].Price, Copies: 1},
	}
	if err := s.catalog.InsertCombo(ctx, &combo, links); err != nil {
		return err
	}

	s.logger.Info("seeded catalog", zap.Int("dishes", len(dishes)), zap.Int("combos", 1))
	return nil
}

// Addresses seeds the demo customer's default address if they have none.
func (s *Seeder) Addresses(ctx context.Context) error {
	count, err := s.db.NewSelect().Model((*entity.AddressBook)(nil)).Where("user_id = ?", DemoUserID).Count(ctx)
	if err != nil {
		return fmt.Errorf("count addresses: %w", err)
	}
	if count > 0 {
		return nil
	}

	addr := entity.AddressBook{
		UserID:       DemoUserID,
		Consignee:    "Demo Customer",
		Phone:        "13800000000",
		ProvinceName: "Beijing",
		CityName:     "Beijing",
		DistrictName: "Haidian",
		Detail:       "No. 1 Zhongguancun Street",
		Label:        "home",
		IsDefault:    true,
	}
	if err := s.addresses.Insert(ctx, &addr); err != nil {
		return fmt.Errorf("insert address: %w", err)
	}

	s.logger.Info("seeded address", zap.Int64("user_id", DemoUserID), zap.Int64("address_id", addr.ID))
	return nil
}

// Cart puts two units of the first two dishes on sale into the demo customer's empty cart.
func (s *Seeder) Cart(ctx context.Context) error {
	items, err := s.carts.List(ctx, DemoUserID)
	if err != nil {
		return fmt.Errorf("list cart: %w", err)
	}
	if len(items) > 0 {
		return nil
	}

	var dishes []entity.Dish
	err = s.db.NewSelect().Model(&dishes).
		Where("status = ?", entity.SaleEnabled).
		OrderExpr("id ASC").
		Limit(2).
		Scan(ctx)
	if err != nil {
		return fmt.Errorf("select dishes: %w", err)
	}
	for _, d := range dishes {
		item := entity.CartItem{UserID: DemoUserID, Name: d.Name, Image: d.Image, DishID: d.ID, Number: 2, Amount: d.Price}
		if err := s.carts.Insert(ctx, &item); err != nil {
			return fmt.Errorf("insert cart item %s: %w", d.Name, err)
		}
	}

	s.logger.Info("seeded cart", zap.Int64("user_id", DemoUserID), zap.Int("items", len(dishes)))
	return nil
}

// All runs every seeder in dependency order.
func (s *Seeder) All(ctx context.Context) error {
	if err := s.Catalog(ctx); err != nil {
		return err
	}
	if err := s.Addresses(ctx); err != nil {
		return err
	}
	return s.Cart(ctx)
}
