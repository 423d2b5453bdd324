package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/port"
	"github.com/Additional-Code/kitchen/internal/repository/memory"
)

var at = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func line(name string, n int) entity.OrderLine {
	return entity.OrderLine{Name: name, DishID: 1, Number: n, Amount: decimal.NewFromInt(10)}
}

func TestInTxRestoresStateOnError(t *testing.T) {
	store := memory.NewStore()
	ctx := t.Context()
	require.NoError(t, store.Carts().Insert(ctx, &entity.CartItem{UserID: 1, DishID: 5, Number: 1}))

	boom := errors.New("boom")
	err := store.InTx(ctx, func(ctx context.Context, st port.Stores) error {
		order := entity.Order{Number: "A-1", Status: entity.StatusPendingPayment, OrderTime: at}
		if err := st.Orders.Create(ctx, &order, []entity.OrderLine{line("Rice", 1)}); err != nil {
			return err
		}
		if _, err := st.Carts.Clear(ctx, 1); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.Orders().GetByNumber(ctx, "A-1")
	assert.ErrorIs(t, err, port.ErrNotFound)
	items, err := store.Carts().List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestTransitionComparesBothStatuses(t *testing.T) {
	store := memory.NewStore()
	ctx := t.Context()
	o := store.PutOrder(entity.Order{Number: "A-2", Status: entity.StatusToBeConfirmed, PayStatus: entity.PayPaid, OrderTime: at})

	wrongPay := port.OrderTransition{ID: o.ID, FromStatus: entity.StatusToBeConfirmed, FromPay: entity.PayUnpaid, ToStatus: entity.StatusConfirmed}
	assert.ErrorIs(t, store.Orders().Transition(ctx, wrongPay), port.ErrStaleState)

	accept := port.OrderTransition{ID: o.ID, FromStatus: entity.StatusToBeConfirmed, FromPay: entity.PayPaid, ToStatus: entity.StatusConfirmed, ToPay: entity.PayPaid}
	require.NoError(t, store.Orders().Transition(ctx, accept))
	assert.ErrorIs(t, store.Orders().Transition(ctx, accept), port.ErrStaleState)

	unknown := accept
	unknown.ID = 999
	assert.ErrorIs(t, store.Orders().Transition(ctx, unknown), port.ErrStaleState)

	injected := errors.New("disk full")
	store.FailTransitions(o.ID, injected)
	next := port.OrderTransition{ID: o.ID, FromStatus: entity.StatusConfirmed, FromPay: entity.PayPaid, ToStatus: entity.StatusDeliveryInProgress, ToPay: entity.PayPaid}
	assert.ErrorIs(t, store.Orders().Transition(ctx, next), injected)
	store.FailTransitions(o.ID, nil)
	assert.NoError(t, store.Orders().Transition(ctx, next))
}

func TestCreateRejectsDuplicateNumbers(t *testing.T) {
	store := memory.NewStore()
	ctx := t.Context()
	first := entity.Order{Number: "A-3", OrderTime: at}
	require.NoError(t, store.Orders().Create(ctx, &first, []entity.OrderLine{line("Rice", 1)}))

	second := entity.Order{Number: "A-3", OrderTime: at}
	assert.ErrorIs(t, store.Orders().Create(ctx, &second, []entity.OrderLine{line("Rice", 1)}), memory.ErrDuplicateNumber)
	assert.Error(t, store.Orders().Create(ctx, &entity.Order{Number: "A-4"}, nil))
}

func TestSearchPagesNewestFirst(t *testing.T) {
	store := memory.NewStore()
	for i := range 5 {
		store.PutOrder(entity.Order{
			Number:    "N-" + string(rune('a'+i)),
			UserID:    int64(1 + i%2),
			Status:    entity.StatusPendingPayment,
			OrderTime: at.Add(time.Duration(i) * time.Hour),
		})
	}

	page, total, err := store.Orders().Search(t.Context(), port.OrderQuery{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "N-e", page[0].Number)
	assert.Equal(t, "N-d", page[1].Number)

	page, total, err = store.Orders().Search(t.Context(), port.OrderQuery{UserID: 2, Page: 9})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Empty(t, page)
}
