package cart

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/kitchen/internal/database"
	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/port"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/kitchen/repository/cart")

// Repository stores per-user cart entries.
type Repository struct {
	db       bun.IDB
	rowLocks bool
}

var _ port.CartStore = (*Repository)(nil)

// NewRepository wires a cart repository on the writer pool. Carts are read back immediately after
// writes, so replicas are never consulted.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{db: conns.Writer, rowLocks: conns.SupportsRowLocks()}
}

// WithTx returns a copy bound to tx.
func (r *Repository) WithTx(tx bun.Tx) *Repository {
	return &Repository{db: tx, rowLocks: r.rowLocks}
}

// List returns the user's cart entries oldest first.
func (r *Repository) List(ctx context.Context, userID int64) ([]entity.CartItem, error) {
	ctx, span := repoTracer.Start(ctx, "CartRepository.List", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	items, err := r.list(ctx, userID, false)
	if err != nil {
		return nil, fail(span, err, "select failed")
	}
	return items, nil
}

// ListForUpdate is List with the rows locked until the enclosing transaction ends.
func (r *Repository) ListForUpdate(ctx context.Context, userID int64) ([]entity.CartItem, error) {
	ctx, span := repoTracer.Start(ctx, "CartRepository.ListForUpdate", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	items, err := r.list(ctx, userID, r.rowLocks)
	if err != nil {
		return nil, fail(span, err, "select failed")
	}
	return items, nil
}

func (r *Repository) list(ctx context.Context, userID int64, lock bool) ([]entity.CartItem, error) {
	var items []entity.CartItem
	sel := r.db.NewSelect().Model(&items).Where("user_id = ?", userID).OrderExpr("created_at ASC, id ASC")
	if lock {
		sel = sel.For("UPDATE")
	}
	if err := sel.Scan(ctx); err != nil {
		return nil, err
	}
	return items, nil
}

// Find returns the entry with key in the user's cart or port.ErrNotFound.
func (r *Repository) Find(ctx context.Context, userID int64, key entity.CartKey) (*entity.CartItem, error) {
	ctx, span := repoTracer.Start(ctx, "CartRepository.Find", trace.WithAttributes(
		attribute.Int64("user.id", userID),
		attribute.Int64("dish.id", key.DishID),
		attribute.Int64("combo.id", key.ComboID),
	))
	defer span.End()

	item := new(entity.CartItem)
	sel := r.db.NewSelect().Model(item).Where("user_id = ?", userID)
	if key.DishID > 0 {
		sel = sel.Where("dish_id = ?", key.DishID).Where("dish_flavor = ?", key.DishFlavor)
	} else {
		sel = sel.Where("combo_id = ?", key.ComboID)
	}

	err := sel.Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fail(span, err, "select failed")
	}
	return item, nil
}

// Insert adds a new entry and fills in its id.
func (r *Repository) Insert(ctx context.Context, item *entity.CartItem) error {
	if item == nil {
		return errors.New("nil cart item")
	}
	ctx, span := repoTracer.Start(ctx, "CartRepository.Insert", trace.WithAttributes(attribute.Int64("user.id", item.UserID)))
	defer span.End()

	if _, err := r.db.NewInsert().Model(item).Exec(ctx); err != nil {
		return fail(span, err, "insert failed")
	}
	return nil
}

// UpdateNumber sets the quantity of an entry.
func (r *Repository) UpdateNumber(ctx context.Context, id int64, number int) error {
	ctx, span := repoTracer.Start(ctx, "CartRepository.UpdateNumber", trace.WithAttributes(
		attribute.Int64("cart.id", id),
		attribute.Int("number", number),
	))
	defer span.End()

	res, err := r.db.NewUpdate().
		Model((*entity.CartItem)(nil)).
		Set("number = ?", number).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fail(span, err, "update failed")
	}
	return affected(res)
}

// Delete removes a single entry.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "CartRepository.Delete", trace.WithAttributes(attribute.Int64("cart.id", id)))
	defer span.End()

	res, err := r.db.NewDelete().Model((*entity.CartItem)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fail(span, err, "delete failed")
	}
	return affected(res)
}

// Clear empties the user's cart and returns the number of removed entries.
func (r *Repository) Clear(ctx context.Context, userID int64) (int, error) {
	ctx, span := repoTracer.Start(ctx, "CartRepository.Clear", trace.WithAttributes(attribute.Int64("user.id", userID)))
	defer span.End()

	res, err := r.db.NewDelete().Model((*entity.CartItem)(nil)).Where("user_id = ?", userID).Exec(ctx)
	if err != nil {
		return 0, fail(span, err, "delete failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return port.ErrNotFound
	}
	return nil
}

func fail(span trace.Span, err error, msg string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	return err
}
