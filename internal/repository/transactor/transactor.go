package transactor

import (
	"context"

	"github.com/uptrace/bun"
	"go.uber.org/fx"

	"github.com/Additional-Code/kitchen/internal/database"
	"github.com/Additional-Code/kitchen/internal/port"
	"github.com/Additional-Code/kitchen/internal/repository/cart"
	"github.com/Additional-Code/kitchen/internal/repository/order"
)

// Module provides the bun-backed transactor to Fx.
var Module = fx.Provide(
	New,
	func(t *Transactor) port.Transactor { return t },
)

// Transactor runs units of work in a writer transaction, handing out tx-bound repositories.
type Transactor struct {
	db     *bun.DB
	orders *order.Repository
	carts  *cart.Repository
}

// New wires a transactor.
func New(conns *database.Connections, orders *order.Repository, carts *cart.Repository) *Transactor {
	return &Transactor{db: conns.Writer, orders: orders, carts: carts}
}

// InTx commits when fn returns nil and rolls back otherwise.
func (t *Transactor) InTx(ctx context.Context, fn func(ctx context.Context, s port.Stores) error) error {
	return t.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, port.Stores{
			Orders: t.orders.WithTx(tx),
			Carts:  t.carts.WithTx(tx),
		})
	})
}
