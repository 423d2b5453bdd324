package cart_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/repository/memory"
	cartsvc "github.com/Additional-Code/kitchen/internal/service/cart"
	"github.com/Additional-Code/kitchen/pkg/errorbank"
)

type CartServiceSuite struct {
	suite.Suite

	store *memory.Store
	svc   *cartsvc.Service
	user  entity.Actor
	dish  entity.Dish
	combo entity.Combo
}

func TestCartServiceSuite(t *testing.T) {
	suite.Run(t, new(CartServiceSuite))
}

func (s *CartServiceSuite) SetupTest() {
	s.store = memory.NewStore()
	s.user = entity.Customer(7)
	s.dish = s.store.PutDish(entity.Dish{
		Name: "Mapo Tofu", Image: "tofu.png", Price: decimal.RequireFromString("18.00"), Status: entity.SaleEnabled,
	})
	s.combo = s.store.PutCombo(entity.Combo{
		Name: "Lunch Set", Price: decimal.RequireFromString("45.00"), Status: entity.SaleEnabled,
	}, s.dish.ID)
	s.svc = cartsvc.NewService(cartsvc.Params{
		Carts:      s.store.Carts(),
		Catalog:    s.store.Catalog(),
		Transactor: s.store,
		Logger:     zap.NewNop(),
		Clock:      func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
}

func (s *CartServiceSuite) TestAddInsertsSnapshotThenIncrements() {
	ctx := s.T().Context()
	key := entity.CartKey{DishID: s.dish.ID, DishFlavor: "spicy"}

	first, err := s.svc.Add(ctx, s.user, key)
	s.Require().NoError(err)
	s.Equal("Mapo Tofu", first.Name)
	s.Equal("tofu.png", first.Image)
	s.True(first.Amount.Equal(s.dish.Price))
	s.Equal(1, first.Number)

	// Price changes do not touch existing entries.
	s.dish.Price = decimal.RequireFromString("99")
	s.store.PutDish(s.dish)

	second, err := s.svc.Add(ctx, s.user, key)
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
	s.Equal(2, second.Number)
	s.True(second.Amount.Equal(decimal.RequireFromString("18")))

	// A different flavor is a separate entry.
	_, err = s.svc.Add(ctx, s.user, entity.CartKey{DishID: s.dish.ID, DishFlavor: "mild"})
	s.Require().NoError(err)
	_, err = s.svc.Add(ctx, s.user, entity.CartKey{ComboID: s.combo.ID})
	s.Require().NoError(err)

	items, err := s.svc.List(ctx, s.user)
	s.Require().NoError(err)
	s.Len(items, 3)
}

func (s *CartServiceSuite) TestAddRejectsUnavailableItems() {
	ctx := s.T().Context()

	_, err := s.svc.Add(ctx, s.user, entity.CartKey{DishID: 404})
	s.True(errorbank.HasReason(err, errorbank.ReasonItemNotFound))

	s.Require().NoError(s.store.Catalog().SetComboStatus(ctx, s.combo.ID, entity.SaleDisabled))
	_, err = s.svc.Add(ctx, s.user, entity.CartKey{ComboID: s.combo.ID})
	s.True(errorbank.HasReason(err, errorbank.ReasonItemUnavailable))

	_, err = s.svc.Add(ctx, s.user, entity.CartKey{DishID: s.dish.ID, ComboID: s.combo.ID})
	s.True(errorbank.HasReason(err, errorbank.ReasonInvalidArgument))

	_, err = s.svc.Add(ctx, entity.Staff(1), entity.CartKey{DishID: s.dish.ID})
	s.True(errorbank.IsKind(err, errorbank.KindForbidden))

	items, err := s.svc.List(ctx, s.user)
	s.Require().NoError(err)
	s.Empty(items)
}

func (s *CartServiceSuite) TestSubDecrementsThenRemoves() {
	ctx := s.T().Context()
	key := entity.CartKey{ComboID: s.combo.ID}
	for range 2 {
		_, err := s.svc.Add(ctx, s.user, key)
		s.Require().NoError(err)
	}

	s.Require().NoError(s.svc.Sub(ctx, s.user, key))
	items, err := s.svc.List(ctx, s.user)
	s.Require().NoError(err)
	s.Require().Len(items, 1)
	s.Equal(1, items[0].Number)

	s.Require().NoError(s.svc.Sub(ctx, s.user, key))
	items, err = s.svc.List(ctx, s.user)
	s.Require().NoError(err)
	s.Empty(items)

	s.Require().NoError(s.svc.Sub(ctx, s.user, key))
}

func (s *CartServiceSuite) TestCleanOnlyTouchesCaller() {
	ctx := s.T().Context()
	other := entity.Customer(8)
	_, err := s.svc.Add(ctx, s.user, entity.CartKey{DishID: s.dish.ID})
	s.Require().NoError(err)
	_, err = s.svc.Add(ctx, other, entity.CartKey{DishID: s.dish.ID})
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Clean(ctx, s.user))

	mine, err := s.svc.List(ctx, s.user)
	s.Require().NoError(err)
	s.Empty(mine)
	theirs, err := s.svc.List(ctx, other)
	s.Require().NoError(err)
	require.Len(s.T(), theirs, 1)
}
