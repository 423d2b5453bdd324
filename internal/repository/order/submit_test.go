package order_test

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/cache"
	"github.com/Additional-Code/kitchen/internal/config"
	"github.com/Additional-Code/kitchen/internal/database"
	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/geo"
	"github.com/Additional-Code/kitchen/internal/messaging"
	"github.com/Additional-Code/kitchen/internal/port"
	"github.com/Additional-Code/kitchen/internal/repository/address"
	"github.com/Additional-Code/kitchen/internal/repository/cart"
	"github.com/Additional-Code/kitchen/internal/repository/order"
	"github.com/Additional-Code/kitchen/internal/repository/transactor"
	ordersvc "github.com/Additional-Code/kitchen/internal/service/order"
	"github.com/Additional-Code/kitchen/pkg/errorbank"
)

// submitStack wires the order engine onto the container database the way the application does.
type submitStack struct {
	svc   *ordersvc.Service
	carts *cart.Repository
	tx    port.Transactor
}

func newSubmitStack(db *bun.DB, wrap func(port.Transactor) port.Transactor) (submitStack, error) {
	conns := &database.Connections{Writer: db, Reader: db}
	orders := order.NewRepository(conns)
	carts := cart.NewRepository(conns)

	var tx port.Transactor = transactor.New(conns, orders, carts)
	if wrap != nil {
		tx = wrap(tx)
	}
	svc, err := ordersvc.NewService(ordersvc.Params{
		Orders:     orders,
		Transactor: tx,
		Addresses:  address.NewRepository(conns),
		Geocoder:   geo.Disabled{},
		Cache:      cache.Noop(),
		Publisher:  messaging.NewBus(),
		Config:     config.Config{Shop: config.Shop{MaxDeliveryDistance: 5000, DeliveryFee: decimal.RequireFromString("6")}},
		Logger:     zap.NewNop(),
	})
	return submitStack{svc: svc, carts: carts, tx: tx}, err
}

// customerWithCart stores an address and a two-entry cart for a new customer.
func (s *orderRepositorySuite) customerWithCart(carts *cart.Repository, userID int64) entity.AddressBook {
	ctx := s.T().Context()
	addr := entity.AddressBook{UserID: userID, Consignee: "Li Lei", Phone: "13800000000", CityName: "Beijing", Detail: "1 Zhongguancun St"}
	_, err := s.db.NewInsert().Model(&addr).Exec(ctx)
	s.Require().NoError(err)

	s.Require().NoError(carts.Insert(ctx, &entity.CartItem{
		UserID: userID, Name: "Kung Pao Chicken", DishID: 1, DishFlavor: "mild", Number: 2, Amount: decimal.RequireFromString("28.00"),
	}))
	s.Require().NoError(carts.Insert(ctx, &entity.CartItem{
		UserID: userID, Name: "Lunch Set", ComboID: 1, Number: 1, Amount: decimal.RequireFromString("36.00"),
	}))
	return addr
}

func (s *orderRepositorySuite) countRows(model any, userID int64) int {
	n, err := s.db.NewSelect().Model(model).Where("user_id = ?", userID).Count(s.T().Context())
	s.Require().NoError(err)
	return n
}

func (s *orderRepositorySuite) countLines() int {
	n, err := s.db.NewSelect().Model((*entity.OrderLine)(nil)).Count(s.T().Context())
	s.Require().NoError(err)
	return n
}

func (s *orderRepositorySuite) TestConcurrentSubmitsForOneCustomerCreateOneOrder() {
	t := s.T()
	stack, err := newSubmitStack(s.db, nil)
	require.NoError(t, err)
	customer := entity.Customer(501)
	addr := s.customerWithCart(stack.carts, customer.ID)

	const attempts = 4
	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, attempts)
	)
	for i := range attempts {
		wg.Go(func() {
			<-start
			_, errs[i] = stack.svc.Submit(t.Context(), customer, ordersvc.SubmitInput{AddressBookID: addr.ID})
		})
	}
	close(start)
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.True(t, errorbank.HasReason(err, errorbank.ReasonCartEmpty), "unexpected error: %v", err)
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, s.countRows((*entity.Order)(nil), customer.ID))
	require.Equal(t, 2, s.countLines())
	require.Zero(t, s.countRows((*entity.CartItem)(nil), customer.ID))
}

// failingClear makes the cart clear step of a unit of work fail after the order was written.
type failingClear struct {
	port.CartStore
	err error
}

func (f failingClear) Clear(context.Context, int64) (int, error) { return 0, f.err }

type clearFailsTransactor struct {
	inner port.Transactor
	err   error
}

func (c clearFailsTransactor) InTx(ctx context.Context, fn func(context.Context, port.Stores) error) error {
	return c.inner.InTx(ctx, func(ctx context.Context, st port.Stores) error {
		st.Carts = failingClear{CartStore: st.Carts, err: c.err}
		return fn(ctx, st)
	})
}

func (s *orderRepositorySuite) TestSubmitRollsBackWhenCartClearFails() {
	t := s.T()
	boom := errors.New("cart clear failed")
	stack, err := newSubmitStack(s.db, func(inner port.Transactor) port.Transactor {
		return clearFailsTransactor{inner: inner, err: boom}
	})
	require.NoError(t, err)
	customer := entity.Customer(502)
	addr := s.customerWithCart(stack.carts, customer.ID)

	_, err = stack.svc.Submit(t.Context(), customer, ordersvc.SubmitInput{AddressBookID: addr.ID})
	require.True(t, errorbank.IsKind(err, errorbank.KindInternal))
	require.ErrorIs(t, err, boom)

	require.Zero(t, s.countRows((*entity.Order)(nil), customer.ID))
	require.Zero(t, s.countLines())
	items, err := stack.carts.List(t.Context(), customer.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func (s *orderRepositorySuite) TestTransactorRollsBackOrderAndLines() {
	t := s.T()
	ctx := t.Context()
	stack, err := newSubmitStack(s.db, nil)
	require.NoError(t, err)

	o := fakeOrder(entity.StatusPendingPayment, entity.PayUnpaid, baseTime)
	boom := errors.New("abort")
	err = stack.tx.InTx(ctx, func(ctx context.Context, st port.Stores) error {
		if err := st.Orders.Create(ctx, &o, fakeLines()); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.repo.GetByNumber(ctx, o.Number)
	require.ErrorIs(t, err, port.ErrNotFound)
	require.Zero(t, s.countLines())
}

// statementLog records every statement bun sends.
type statementLog struct {
	mu         sync.Mutex
	statements []string
}

func (l *statementLog) BeforeQuery(ctx context.Context, e *bun.QueryEvent) context.Context {
	l.mu.Lock()
	l.statements = append(l.statements, e.Query)
	l.mu.Unlock()
	return ctx
}

func (l *statementLog) AfterQuery(context.Context, *bun.QueryEvent) {}

func (l *statementLog) containing(fragment string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, q := range l.statements {
		if strings.Contains(strings.ToUpper(q), fragment) {
			out = append(out, q)
		}
	}
	return out
}

func (s *orderRepositorySuite) TestSubmitLocksCartWithoutSavepoints() {
	t := s.T()
	// A second handle on the same pool so the statement log sees only this test.
	db := bun.NewDB(s.db.DB, pgdialect.New())
	log := &statementLog{}
	db.AddQueryHook(log)

	stack, err := newSubmitStack(db, nil)
	require.NoError(t, err)
	customer := entity.Customer(503)
	addr := s.customerWithCart(stack.carts, customer.ID)

	_, err = stack.svc.Submit(t.Context(), customer, ordersvc.SubmitInput{AddressBookID: addr.ID})
	require.NoError(t, err)

	require.Len(t, log.containing("FOR UPDATE"), 1)
	require.Empty(t, log.containing("SAVEPOINT"))
}
