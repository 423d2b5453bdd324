// Package memory holds map-backed implementations of the storage ports. They keep the same
// compare-and-swap and not-found semantics as the SQL repositories and back the service and
// transport tests.
package memory

import (
	"context"
	"errors"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/port"
)

// ErrDuplicateNumber mirrors the unique index on orders.number.
var ErrDuplicateNumber = errors.New("duplicate order number")

// Store is the shared state behind every view.
type Store struct {
	tx sync.Mutex
	mu sync.Mutex

	seq         int64
	orders      map[int64]entity.Order
	lines       map[int64][]entity.OrderLine
	carts       map[int64]entity.CartItem
	dishes      map[int64]entity.Dish
	combos      map[int64]entity.Combo
	comboDishes map[int64][]int64
	addresses   map[int64]entity.AddressBook

	transitionErrs map[int64]error
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		orders:         make(map[int64]entity.Order),
		lines:          make(map[int64][]entity.OrderLine),
		carts:          make(map[int64]entity.CartItem),
		dishes:         make(map[int64]entity.Dish),
		combos:         make(map[int64]entity.Combo),
		comboDishes:    make(map[int64][]int64),
		addresses:      make(map[int64]entity.AddressBook),
		transitionErrs: make(map[int64]error),
	}
}

// Orders returns the ledger view.
func (s *Store) Orders() *Orders { return &Orders{s: s} }

// Carts returns the cart view.
func (s *Store) Carts() *Carts { return &Carts{s: s} }

// Catalog returns the catalog view.
func (s *Store) Catalog() *Catalog { return &Catalog{s: s} }

// Addresses returns the address book view.
func (s *Store) Addresses() *Addresses { return &Addresses{s: s} }

// InTx serialises units of work and restores the previous state when fn fails.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, st port.Stores) error) error {
	s.tx.Lock()
	defer s.tx.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, port.Stores{Orders: s.Orders(), Carts: s.Carts()}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// FailTransitions makes every Transition of order id fail with err until cleared with a nil err.
func (s *Store) FailTransitions(id int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.transitionErrs, id)
		return
	}
	s.transitionErrs[id] = err
}

// PutOrder stores an order as is, assigning an id when missing.
func (s *Store) PutOrder(order entity.Order, lines ...entity.OrderLine) entity.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID == 0 {
		order.ID = s.next()
	}
	for i := range lines {
		lines[i].OrderID = order.ID
		if lines[i].ID == 0 {
			lines[i].ID = s.next()
		}
	}
	s.orders[order.ID] = order
	s.lines[order.ID] = append([]entity.OrderLine(nil), lines...)
	return order
}

// PutDish stores a dish, assigning an id when missing.
func (s *Store) PutDish(d entity.Dish) entity.Dish {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID == 0 {
		d.ID = s.next()
	}
	s.dishes[d.ID] = d
	return d
}

// PutCombo stores a combo linked to dishIDs.
func (s *Store) PutCombo(c entity.Combo, dishIDs ...int64) entity.Combo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.next()
	}
	s.combos[c.ID] = c
	s.comboDishes[c.ID] = append([]int64(nil), dishIDs...)
	return c
}

// PutAddress stores an address, assigning an id when missing.
func (s *Store) PutAddress(a entity.AddressBook) entity.AddressBook {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.next()
	}
	s.addresses[a.ID] = a
	return a
}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

type snapshot struct {
	seq    int64
	orders map[int64]entity.Order
	lines  map[int64][]entity.OrderLine
	carts  map[int64]entity.CartItem
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make(map[int64][]entity.OrderLine, len(s.lines))
	for id, ls := range s.lines {
		lines[id] = append([]entity.OrderLine(nil), ls...)
	}
	return snapshot{seq: s.seq, orders: maps.Clone(s.orders), lines: lines, carts: maps.Clone(s.carts)}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = snap.seq
	s.orders = snap.orders
	s.lines = snap.lines
	s.carts = snap.carts
}

// Orders implements port.OrderLedger and port.OrderReporter.
type Orders struct{ s *Store }

var (
	_ port.OrderLedger   = (*Orders)(nil)
	_ port.OrderReporter = (*Orders)(nil)
	_ port.Transactor    = (*Store)(nil)
)

func (o *Orders) Create(_ context.Context, order *entity.Order, lines []entity.OrderLine) error {
	if order == nil {
		return errors.New("nil order")
	}
	if len(lines) == 0 {
		return errors.New("no lines in order")
	}
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	for _, existing := range o.s.orders {
		if existing.Number == order.Number {
			return ErrDuplicateNumber
		}
	}
	order.ID = o.s.next()
	stored := make([]entity.OrderLine, len(lines))
	for i := range lines {
		lines[i].OrderID = order.ID
		lines[i].ID = o.s.next()
		stored[i] = lines[i]
	}
	o.s.orders[order.ID] = *order
	o.s.lines[order.ID] = stored
	return nil
}

func (o *Orders) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	order, ok := o.s.orders[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &order, nil
}

func (o *Orders) GetByNumber(_ context.Context, number string) (*entity.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	for _, order := range o.s.orders {
		if order.Number == number {
			return &order, nil
		}
	}
	return nil, port.ErrNotFound
}

func (o *Orders) Lines(_ context.Context, orderID int64) ([]entity.OrderLine, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	return append([]entity.OrderLine(nil), o.s.lines[orderID]...), nil
}

func (o *Orders) LinesByOrders(_ context.Context, orderIDs []int64) (map[int64][]entity.OrderLine, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	out := make(map[int64][]entity.OrderLine, len(orderIDs))
	for _, id := range orderIDs {
		if ls, ok := o.s.lines[id]; ok {
			out[id] = append([]entity.OrderLine(nil), ls...)
		}
	}
	return out, nil
}

func (o *Orders) Search(_ context.Context, q port.OrderQuery) ([]entity.Order, int, error) {
	q = q.Normalize()
	o.s.mu.Lock()
	matched := make([]entity.Order, 0)
	for _, order := range o.s.orders {
		if q.UserID > 0 && order.UserID != q.UserID {
			continue
		}
		if q.Number != "" && !strings.Contains(order.Number, q.Number) {
			continue
		}
		if q.Phone != "" && !strings.Contains(order.Phone, q.Phone) {
			continue
		}
		if q.Status.Valid() && order.Status != q.Status {
			continue
		}
		if !inRange(order.OrderTime, q.Begin, q.End) {
			continue
		}
		matched = append(matched, order)
	}
	o.s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].OrderTime.Equal(matched[j].OrderTime) {
			return matched[i].OrderTime.After(matched[j].OrderTime)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	start := min(q.Offset(), total)
	end := min(start+q.PageSize, total)
	return matched[start:end], total, nil
}

func (o *Orders) CountByStatus(_ context.Context) (map[entity.OrderStatus]int, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	out := make(map[entity.OrderStatus]int)
	for _, order := range o.s.orders {
		out[order.Status]++
	}
	return out, nil
}

func (o *Orders) ListByStatusBefore(_ context.Context, status entity.OrderStatus, before time.Time) ([]entity.Order, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	var out []entity.Order
	for _, order := range o.s.orders {
		if order.Status == status && order.OrderTime.Before(before) {
			out = append(out, order)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (o *Orders) Transition(_ context.Context, t port.OrderTransition) error {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	if err := o.s.transitionErrs[t.ID]; err != nil {
		return err
	}
	order, ok := o.s.orders[t.ID]
	if !ok || order.Status != t.FromStatus || order.PayStatus != t.FromPay {
		return port.ErrStaleState
	}
	o.s.orders[t.ID] = t.Apply(order)
	return nil
}

func (o *Orders) CountByStatusAndTimeRange(_ context.Context, q port.OrderCountQuery) (int, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	n := 0
	for _, order := range o.s.orders {
		if q.Status != nil && order.Status != *q.Status {
			continue
		}
		if inRange(order.OrderTime, q.Begin, q.End) {
			n++
		}
	}
	return n, nil
}

func (o *Orders) SumTurnoverByDay(_ context.Context, begin, end time.Time) ([]port.DailyTurnover, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	loc := begin.Location()
	byDay := make(map[time.Time]decimal.Decimal)
	for _, order := range o.s.orders {
		if order.Status != entity.StatusCompleted || !inRange(order.OrderTime, begin, end) {
			continue
		}
		t := order.OrderTime.In(loc)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		byDay[day] = byDay[day].Add(order.Amount)
	}
	out := make([]port.DailyTurnover, 0, len(byDay))
	for day, sum := range byDay {
		out = append(out, port.DailyTurnover{Day: day, Turnover: sum})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (o *Orders) TopSoldItems(_ context.Context, begin, end time.Time, limit int) ([]port.SoldItem, error) {
	o.s.mu.Lock()
	defer o.s.mu.Unlock()
	totals := make(map[string]int)
	for id, order := range o.s.orders {
		if order.Status != entity.StatusCompleted || !inRange(order.OrderTime, begin, end) {
			continue
		}
		for _, line := range o.s.lines[id] {
			totals[line.Name] += line.Number
		}
	}
	out := make([]port.SoldItem, 0, len(totals))
	for name, qty := range totals {
		out = append(out, port.SoldItem{Name: name, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Carts implements port.CartStore.
type Carts struct{ s *Store }

var _ port.CartStore = (*Carts)(nil)

func (c *Carts) List(_ context.Context, userID int64) ([]entity.CartItem, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	var out []entity.CartItem
	for _, item := range c.s.carts {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListForUpdate relies on InTx serialisation for locking.
func (c *Carts) ListForUpdate(ctx context.Context, userID int64) ([]entity.CartItem, error) {
	return c.List(ctx, userID)
}

func (c *Carts) Find(_ context.Context, userID int64, key entity.CartKey) (*entity.CartItem, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	for _, item := range c.s.carts {
		if item.UserID != userID {
			continue
		}
		if key.DishID > 0 && item.DishID == key.DishID && item.DishFlavor == key.DishFlavor {
			return &item, nil
		}
		if key.ComboID > 0 && item.ComboID == key.ComboID {
			return &item, nil
		}
	}
	return nil, port.ErrNotFound
}

func (c *Carts) Insert(_ context.Context, item *entity.CartItem) error {
	if item == nil {
		return errors.New("nil cart item")
	}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	item.ID = c.s.next()
	c.s.carts[item.ID] = *item
	return nil
}

func (c *Carts) UpdateNumber(_ context.Context, id int64, number int) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	item, ok := c.s.carts[id]
	if !ok {
		return port.ErrNotFound
	}
	item.Number = number
	c.s.carts[id] = item
	return nil
}

func (c *Carts) Delete(_ context.Context, id int64) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.carts[id]; !ok {
		return port.ErrNotFound
	}
	delete(c.s.carts, id)
	return nil
}

func (c *Carts) Clear(_ context.Context, userID int64) (int, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	n := 0
	for id, item := range c.s.carts {
		if item.UserID == userID {
			delete(c.s.carts, id)
			n++
		}
	}
	return n, nil
}

// Catalog implements port.Catalog.
type Catalog struct{ s *Store }

var _ port.Catalog = (*Catalog)(nil)

func (c *Catalog) GetDish(_ context.Context, id int64) (*entity.Dish, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	d, ok := c.s.dishes[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &d, nil
}

func (c *Catalog) GetCombo(_ context.Context, id int64) (*entity.Combo, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	combo, ok := c.s.combos[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &combo, nil
}

func (c *Catalog) ComboDishes(_ context.Context, comboID int64) ([]entity.Dish, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	var out []entity.Dish
	for _, id := range c.s.comboDishes[comboID] {
		if d, ok := c.s.dishes[id]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (c *Catalog) SetDishStatus(_ context.Context, id int64, status entity.SaleStatus) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	d, ok := c.s.dishes[id]
	if !ok {
		return port.ErrNotFound
	}
	d.Status = status
	c.s.dishes[id] = d
	return nil
}

func (c *Catalog) SetComboStatus(_ context.Context, id int64, status entity.SaleStatus) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	combo, ok := c.s.combos[id]
	if !ok {
		return port.ErrNotFound
	}
	combo.Status = status
	c.s.combos[id] = combo
	return nil
}

// Addresses implements port.AddressBook.
type Addresses struct{ s *Store }

var _ port.AddressBook = (*Addresses)(nil)

func (a *Addresses) GetByID(_ context.Context, id int64) (*entity.AddressBook, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	addr, ok := a.s.addresses[id]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &addr, nil
}

func inRange(t, begin, end time.Time) bool {
	if !begin.IsZero() && t.Before(begin) {
		return false
	}
	if !end.IsZero() && t.After(end) {
		return false
	}
	return true
}
