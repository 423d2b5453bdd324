package port

import (
	"context"
	"errors"
	"fmt"

	"github.com/Additional-Code/kitchen/internal/entity"
)

// CartStore owns cart entries.
type CartStore interface {
	List(ctx context.Context, userID int64) ([]entity.CartItem, error)
	// ListForUpdate reads the cart and locks its rows until the surrounding transaction ends.
	ListForUpdate(ctx context.Context, userID int64) ([]entity.CartItem, error)
	Find(ctx context.Context, userID int64, key entity.CartKey) (*entity.CartItem, error)
	Insert(ctx context.Context, item *entity.CartItem) error
	UpdateNumber(ctx context.Context, id int64, number int) error
	Delete(ctx context.Context, id int64) error
	Clear(ctx context.Context, userID int64) (int, error)
}

// Catalog is the dish/combo collaborator.
type Catalog interface {
	GetDish(ctx context.Context, id int64) (*entity.Dish, error)
	GetCombo(ctx context.Context, id int64) (*entity.Combo, error)
	ComboDishes(ctx context.Context, comboID int64) ([]entity.Dish, error)
	SetDishStatus(ctx context.Context, id int64, status entity.SaleStatus) error
	SetComboStatus(ctx context.Context, id int64, status entity.SaleStatus) error
}

// AddressBook resolves saved delivery addresses.
type AddressBook interface {
	GetByID(ctx context.Context, id int64) (*entity.AddressBook, error)
}

// Stores are the ledger and cart bound to one transaction.
type Stores struct {
	Orders OrderLedger
	Carts  CartStore
}

// Transactor runs fn atomically: every write made through the supplied stores commits or none does.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}

var (
	// ErrGeocodeFailed signals the geocoder answered with a non-success status.
	ErrGeocodeFailed = errors.New("geocoding failed")
	// ErrRoutePlanFailed signals the router answered with a non-success status.
	ErrRoutePlanFailed = errors.New("route planning failed")
)

// Coordinate is a WGS-style latitude/longitude pair.
type Coordinate struct {
	Lat float64
	Lng float64
}

// String renders the coordinate as "lat,lng".
func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Geocoder resolves addresses and plans routes.
type Geocoder interface {
	ResolveCoordinates(ctx context.Context, address string) (Coordinate, error)
	RouteDistance(ctx context.Context, origin, destination Coordinate) (int, error)
}

// RefundGateway issues refunds for paid orders that were cancelled.
type RefundGateway interface {
	Refund(ctx context.Context, order entity.Order) error
}
