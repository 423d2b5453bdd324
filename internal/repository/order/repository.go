package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/kitchen/internal/database"
	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/port"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/kitchen/repository/order")

// Repository encapsulates read/write access for orders and their lines.
type Repository struct {
	writer bun.IDB
	reader bun.IDB
	// inTx marks a copy bound to a caller's transaction.
	inTx bool
}

var (
	_ port.OrderLedger   = (*Repository)(nil)
	_ port.OrderReporter = (*Repository)(nil)
)

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// WithTx returns a copy bound to tx for both reads and writes.
func (r *Repository) WithTx(tx bun.Tx) *Repository {
	return &Repository{writer: tx, reader: tx, inTx: true}
}

// Create persists the order and its lines atomically. Line order ids are filled in.
func (r *Repository) Create(ctx context.Context, order *entity.Order, lines []entity.OrderLine) error {
	if order == nil {
		return errors.New("nil order")
	}
	if len(lines) == 0 {
		return errors.New("no lines in order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(
		attribute.String("order.number", order.Number),
		attribute.Int("order.lines", len(lines)),
	))
	defer span.End()

	// A tx-bound copy already runs inside the caller's transaction and needs no savepoint.
	var err error
	if r.inTx {
		err = insertOrder(ctx, r.writer, order, lines)
	} else {
		err = r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			return insertOrder(ctx, tx, order, lines)
		})
	}
	if err != nil {
		return fail(span, err, "insert failed")
	}
	return nil
}

func insertOrder(ctx context.Context, db bun.IDB, order *entity.Order, lines []entity.OrderLine) error {
	if _, err := db.NewInsert().Model(order).Exec(ctx); err != nil {
		return err
	}
	for i := range lines {
		lines[i].OrderID = order.ID
	}
	_, err := db.NewInsert().Model(&lines).Exec(ctx)
	return err
}

// GetByID fetches an order by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fail(span, err, "select failed")
	}
	return order, nil
}

// GetByNumber fetches an order by its external number.
func (r *Repository) GetByNumber(ctx context.Context, number string) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByNumber", trace.WithAttributes(attribute.String("order.number", number)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Where("number = ?", number).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fail(span, err, "select failed")
	}
	return order, nil
}

// Lines returns the lines of one order in insertion order.
func (r *Repository) Lines(ctx context.Context, orderID int64) ([]entity.OrderLine, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Lines", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var lines []entity.OrderLine
	if err := r.reader.NewSelect().Model(&lines).Where("order_id = ?", orderID).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, fail(span, err, "select failed")
	}
	return lines, nil
}

// LinesByOrders loads the lines of several orders in one round trip.
func (r *Repository) LinesByOrders(ctx context.Context, orderIDs []int64) (map[int64][]entity.OrderLine, error) {
	out := make(map[int64][]entity.OrderLine, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.LinesByOrders", trace.WithAttributes(attribute.Int("order.count", len(orderIDs))))
	defer span.End()

	var lines []entity.OrderLine
	err := r.reader.NewSelect().
		Model(&lines).
		Where("order_id IN (?)", bun.In(orderIDs)).
		OrderExpr("order_id ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fail(span, err, "select failed")
	}
	for _, line := range lines {
		out[line.OrderID] = append(out[line.OrderID], line)
	}
	return out, nil
}

// Search pages through orders matching q, newest first, and returns the total match count.
func (r *Repository) Search(ctx context.Context, q port.OrderQuery) ([]entity.Order, int, error) {
	q = q.Normalize()
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Search", trace.WithAttributes(
		attribute.Int("page", q.Page),
		attribute.Int("page_size", q.PageSize),
	))
	defer span.End()

	var orders []entity.Order
	sel := r.reader.NewSelect().Model(&orders)
	if q.UserID > 0 {
		sel = sel.Where("user_id = ?", q.UserID)
	}
	if q.Number != "" {
		sel = sel.Where("number LIKE ?", "%"+q.Number+"%")
	}
	if q.Phone != "" {
		sel = sel.Where("phone LIKE ?", "%"+q.Phone+"%")
	}
	if q.Status.Valid() {
		sel = sel.Where("status = ?", q.Status)
	}
	if !q.Begin.IsZero() {
		sel = sel.Where("order_time >= ?", q.Begin)
	}
	if !q.End.IsZero() {
		sel = sel.Where("order_time <= ?", q.End)
	}

	total, err := sel.
		OrderExpr("order_time DESC, id DESC").
		Limit(q.PageSize).
		Offset(q.Offset()).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fail(span, err, "search failed")
	}
	return orders, total, nil
}

// CountByStatus counts every order grouped by status.
func (r *Repository) CountByStatus(ctx context.Context) (map[entity.OrderStatus]int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CountByStatus")
	defer span.End()

	var rows []struct {
		Status entity.OrderStatus `bun:"status"`
		Count  int                `bun:"count"`
	}
	err := r.reader.NewSelect().
		Model((*entity.Order)(nil)).
		Column("status").
		ColumnExpr("COUNT(*) AS count").
		Group("status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fail(span, err, "count failed")
	}

	out := make(map[entity.OrderStatus]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// ListByStatusBefore returns orders in status placed strictly before the cutoff.
func (r *Repository) ListByStatusBefore(ctx context.Context, status entity.OrderStatus, before time.Time) ([]entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.ListByStatusBefore", trace.WithAttributes(
		attribute.String("order.status", status.String()),
		attribute.String("before", before.Format(time.RFC3339)),
	))
	defer span.End()

	var orders []entity.Order
	err := r.reader.NewSelect().
		Model(&orders).
		Where("status = ?", status).
		Where("order_time < ?", before).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fail(span, err, "select failed")
	}
	return orders, nil
}

// Transition applies t only if the stored status and pay status still match its expectations. A
// mismatch yields port.ErrStaleState and leaves the row untouched.
func (r *Repository) Transition(ctx context.Context, t port.OrderTransition) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Transition", trace.WithAttributes(
		attribute.Int64("order.id", t.ID),
		attribute.String("from", t.FromStatus.String()),
		attribute.String("to", t.ToStatus.String()),
	))
	defer span.End()

	upd := r.writer.NewUpdate().
		Model((*entity.Order)(nil)).
		Set("status = ?", t.ToStatus).
		Set("pay_status = ?", t.ToPay)
	if !t.CheckoutTime.IsZero() {
		upd = upd.Set("checkout_time = ?", t.CheckoutTime)
	}
	if !t.CancelTime.IsZero() {
		upd = upd.Set("cancel_time = ?", t.CancelTime)
	}
	if !t.DeliveryTime.IsZero() {
		upd = upd.Set("delivery_time = ?", t.DeliveryTime)
	}
	if t.CancelReason != "" {
		upd = upd.Set("cancel_reason = ?", t.CancelReason)
	}
	if t.RejectionReason != "" {
		upd = upd.Set("rejection_reason = ?", t.RejectionReason)
	}
	if !t.UpdatedAt.IsZero() {
		upd = upd.Set("updated_at = ?", t.UpdatedAt)
	}

	res, err := upd.
		Where("id = ?", t.ID).
		Where("status = ?", t.FromStatus).
		Where("pay_status = ?", t.FromPay).
		Exec(ctx)
	if err != nil {
		return fail(span, err, "update failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fail(span, err, "rows affected")
	}
	if n == 0 {
		span.SetStatus(codes.Error, "stale")
		return port.ErrStaleState
	}
	return nil
}

func fail(span trace.Span, err error, msg string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return err
}
