package order_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/database"
	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/migration"
	"github.com/Additional-Code/kitchen/internal/port"
	"github.com/Additional-Code/kitchen/internal/repository/order"
)

type orderRepositorySuite struct {
	suite.Suite

	container testcontainers.Container
	db        *bun.DB
	repo      *order.Repository
}

func TestOrderRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("postgres container tests are skipped in short mode")
	}
	suite.Run(t, new(orderRepositorySuite))
}

func startPostgres(ctx context.Context) (testcontainers.Container, string, error) {
	container, err := postgres.Run(ctx, "postgres:17-alpine",
		postgres.WithDatabase("kitchen"),
		postgres.WithUsername("kitchen"),
		postgres.WithPassword("kitchen"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, "", fmt.Errorf("start postgres: %w", err)
	}
	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return container, "", fmt.Errorf("connection string: %w", err)
	}
	return container, connStr, nil
}

func (s *orderRepositorySuite) SetupSuite() {
	ctx := s.T().Context()

	container, connStr, err := startPostgres(ctx)
	s.container = container
	if err != nil {
		s.T().Skipf("docker unavailable: %v", err)
	}

	sqlDB, err := sql.Open("pgx", connStr)
	s.Require().NoError(err)
	s.db = bun.NewDB(sqlDB, pgdialect.New())

	mig, err := migration.NewForDB("pgx", s.db, zap.NewNop())
	s.Require().NoError(err)
	_, err = mig.Up(ctx)
	s.Require().NoError(err)

	s.repo = order.NewRepository(&database.Connections{Writer: s.db, Reader: s.db})
}

func (s *orderRepositorySuite) TearDownSuite() {
	if s.db != nil {
		s.NoError(s.db.Close())
	}
	if s.container != nil {
		s.NoError(s.container.Terminate(context.Background()))
	}
}

func (s *orderRepositorySuite) SetupTest() {
	ctx := s.T().Context()
	for _, model := range []any{(*entity.OrderLine)(nil), (*entity.CartItem)(nil), (*entity.AddressBook)(nil)} {
		_, err := s.db.NewTruncateTable().Model(model).Exec(ctx)
		s.Require().NoError(err)
	}
	_, err := s.db.NewTruncateTable().Model((*entity.Order)(nil)).Cascade().Exec(ctx)
	s.Require().NoError(err)
}

var baseTime = time.Date(2026, 3, 10, 11, 30, 0, 0, time.UTC)

func fakeOrder(status entity.OrderStatus, pay entity.PayStatus, at time.Time) entity.Order {
	return entity.Order{
		Number:        uuid.Must(uuid.NewV7()).String(),
		Status:        status,
		PayStatus:     pay,
		PayMethod:     1,
		UserID:        int64(gofakeit.IntRange(1, 1000)),
		AddressBookID: int64(gofakeit.IntRange(1, 1000)),
		Amount:        decimal.RequireFromString("45.50"),
		Phone:         "139" + gofakeit.Numerify("########"),
		Address:       gofakeit.Street(),
		Consignee:     gofakeit.Name(),
		OrderTime:     at,
	}
}

func fakeLines() []entity.OrderLine {
	return []entity.OrderLine{
		{Name: "Kung Pao Chicken", DishID: 1, DishFlavor: "mild", Number: 1, Amount: decimal.RequireFromString("28.00")},
		{Name: "Egg Fried Rice", DishID: 3, Number: 2, Amount: decimal.RequireFromString("8.75")},
	}
}

func (s *orderRepositorySuite) create(o entity.Order, lines ...entity.OrderLine) entity.Order {
	if len(lines) == 0 {
		lines = fakeLines()
	}
	s.Require().NoError(s.repo.Create(s.T().Context(), &o, lines))
	return o
}

func (s *orderRepositorySuite) TestCreateAndLoad() {
	t := s.T()
	ctx := t.Context()

	created := s.create(fakeOrder(entity.StatusPendingPayment, entity.PayUnpaid, baseTime))
	require.NotZero(t, created.ID)

	byID, err := s.repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	byNumber, err := s.repo.GetByNumber(ctx, created.Number)
	require.NoError(t, err)
	require.Equal(t, byID.ID, byNumber.ID)
	require.True(t, created.Amount.Equal(byID.Amount))
	require.True(t, byID.OrderTime.Equal(baseTime))
	require.True(t, byID.CheckoutTime.IsZero())

	lines, err := s.repo.Lines(ctx, created.ID)
	require.NoError(t, err)
	got := make([]string, 0, len(lines))
	for _, l := range lines {
		require.Equal(t, created.ID, l.OrderID)
		got = append(got, fmt.Sprintf("%s*%d@%s", l.Name, l.Number, l.Amount.StringFixed(2)))
	}
	want := []string{"Kung Pao Chicken*1@28.00", "Egg Fried Rice*2@8.75"}
	require.Empty(t, cmp.Diff(want, got))

	_, err = s.repo.GetByID(ctx, created.ID+1000)
	require.ErrorIs(t, err, port.ErrNotFound)
	_, err = s.repo.GetByNumber(ctx, "missing")
	require.ErrorIs(t, err, port.ErrNotFound)
}

func (s *orderRepositorySuite) TestCreateRejectsDuplicateNumber() {
	t := s.T()
	first := s.create(fakeOrder(entity.StatusPendingPayment, entity.PayUnpaid, baseTime))

	dup := fakeOrder(entity.StatusPendingPayment, entity.PayUnpaid, baseTime)
	dup.Number = first.Number
	require.Error(t, s.repo.Create(t.Context(), &dup, fakeLines()))

	// The failed insert left no orphan lines behind.
	n, err := s.db.NewSelect().Model((*entity.OrderLine)(nil)).Count(t.Context())
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func (s *orderRepositorySuite) TestTransitionIsCompareAndSwap() {
	t := s.T()
	ctx := t.Context()
	o := s.create(fakeOrder(entity.StatusPendingPayment, entity.PayUnpaid, baseTime))

	paid := port.OrderTransition{
		ID:           o.ID,
		FromStatus:   entity.StatusPendingPayment,
		FromPay:      entity.PayUnpaid,
		ToStatus:     entity.StatusToBeConfirmed,
		ToPay:        entity.PayPaid,
		CheckoutTime: baseTime.Add(time.Minute),
		UpdatedAt:    baseTime.Add(time.Minute),
	}
	require.NoError(t, s.repo.Transition(ctx, paid))
	require.ErrorIs(t, s.repo.Transition(ctx, paid), port.ErrStaleState)

	got, err := s.repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StatusToBeConfirmed, got.Status)
	require.Equal(t, entity.PayPaid, got.PayStatus)
	require.True(t, got.CheckoutTime.Equal(paid.CheckoutTime))

	cancel := port.OrderTransition{
		ID:           o.ID,
		FromStatus:   entity.StatusToBeConfirmed,
		FromPay:      entity.PayPaid,
		ToStatus:     entity.StatusCancelled,
		ToPay:        entity.PayRefund,
		CancelTime:   baseTime.Add(time.Hour),
		CancelReason: "customer asked",
	}
	require.NoError(t, s.repo.Transition(ctx, cancel))
	got, err = s.repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, entity.StatusCancelled, got.Status)
	require.Equal(t, entity.PayRefund, got.PayStatus)
	require.Equal(t, "customer asked", got.CancelReason)
	// Untouched columns keep their previous values.
	require.True(t, got.CheckoutTime.Equal(paid.CheckoutTime))
}

func (s *orderRepositorySuite) TestSearchFiltersAndPages() {
	t := s.T()
	ctx := t.Context()

	target := fakeOrder(entity.StatusToBeConfirmed, entity.PayPaid, baseTime)
	target.Phone = "13912345678"
	target = s.create(target)
	for i := range 4 {
		s.create(fakeOrder(entity.StatusPendingPayment, entity.PayUnpaid, baseTime.Add(time.Duration(i+1)*time.Hour)))
	}

	orders, total, err := s.repo.Search(ctx, port.OrderQuery{Phone: "1234", Status: entity.StatusToBeConfirmed})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, orders, 1)
	require.Equal(t, target.ID, orders[0].ID)

	orders, total, err = s.repo.Search(ctx, port.OrderQuery{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, 5, total)
	require.Len(t, orders, 2)
	// Newest first.
	require.True(t, orders[0].OrderTime.After(orders[1].OrderTime))

	orders, total, err = s.repo.Search(ctx, port.OrderQuery{Begin: baseTime.Add(90 * time.Minute), End: baseTime.Add(3 * time.Hour)})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, orders, 2)

	counts, err := s.repo.CountByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, counts[entity.StatusPendingPayment])
	require.Equal(t, 1, counts[entity.StatusToBeConfirmed])

	lines, err := s.repo.LinesByOrders(ctx, []int64{target.ID})
	require.NoError(t, err)
	require.Len(t, lines[target.ID], 2)
}

func (s *orderRepositorySuite) TestListByStatusBefore() {
	t := s.T()
	old := s.create(fakeOrder(entity.StatusPendingPayment, entity.PayUnpaid, baseTime))
	s.create(fakeOrder(entity.StatusPendingPayment, entity.PayUnpaid, baseTime.Add(time.Hour)))
	s.create(fakeOrder(entity.StatusCompleted, entity.PayPaid, baseTime))

	orders, err := s.repo.ListByStatusBefore(t.Context(), entity.StatusPendingPayment, baseTime.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, old.ID, orders[0].ID)
}

func (s *orderRepositorySuite) TestReports() {
	t := s.T()
	ctx := t.Context()
	day1 := baseTime
	day2 := baseTime.Add(24 * time.Hour)

	s.create(fakeOrder(entity.StatusCompleted, entity.PayPaid, day1))
	s.create(fakeOrder(entity.StatusCompleted, entity.PayPaid, day1.Add(time.Hour)))
	s.create(fakeOrder(entity.StatusCancelled, entity.PayRefund, day2))
	s.create(fakeOrder(entity.StatusCompleted, entity.PayPaid, day2),
		entity.OrderLine{Name: "Mapo Tofu", DishID: 2, Number: 5, Amount: decimal.RequireFromString("9.10")})

	begin := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 11, 23, 59, 59, 0, time.UTC)

	turnover, err := s.repo.SumTurnoverByDay(ctx, begin, end)
	require.NoError(t, err)
	require.Len(t, turnover, 2)
	require.Equal(t, "91", turnover[0].Turnover.String())
	require.Equal(t, "45.5", turnover[1].Turnover.String())

	completed := entity.StatusCompleted
	n, err := s.repo.CountByStatusAndTimeRange(ctx, port.OrderCountQuery{Status: &completed, Begin: begin, End: end})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	n, err = s.repo.CountByStatusAndTimeRange(ctx, port.OrderCountQuery{Begin: begin, End: end})
	require.NoError(t, err)
	require.Equal(t, 4, n)

	top, err := s.repo.TopSoldItems(ctx, begin, end, 10)
	require.NoError(t, err)
	want := []port.SoldItem{
		{Name: "Mapo Tofu", Quantity: 5},
		{Name: "Egg Fried Rice", Quantity: 4},
		{Name: "Kung Pao Chicken", Quantity: 2},
	}
	require.Empty(t, cmp.Diff(want, top))
}
