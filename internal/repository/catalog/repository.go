package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

var repoTracer = otel.Tracer("github.com/Additional-Code/kitchen/repository/catalog")

// Repository reads and toggles dishes and combos.
type Repository struct {
	writer bun.IDB
	reader bun.IDB
}

var _ port.Catalog = (*Repository)(nil)

// NewRepository wires a catalog repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// GetDish loads a dish by id.
func (r *Repository) GetDish(ctx context.Context, id int64) (*entity.Dish, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.GetDish", trace.WithAttributes(attribute.Int64("dish.id", id)))
	defer span.End()

	dish := new(entity.Dish)
	if err := r.reader.NewSelect().Model(dish).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(span, err)
	}
	return dish, nil
}

// GetCombo loads a combo by id.
func (r *Repository) GetCombo(ctx context.Context, id int64) (*entity.Combo, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.GetCombo", trace.WithAttributes(attribute.Int64("combo.id", id)))
	defer span.End()

	combo := new(entity.Combo)
	if err := r.reader.NewSelect().Model(combo).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(span, err)
	}
	return combo, nil
}

// ComboDishes returns the dishes bundled into a combo.
func (r *Repository) ComboDishes(ctx context.Context, comboID int64) ([]entity.Dish, error) {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.ComboDishes", trace.WithAttributes(attribute.Int64("combo.id", comboID)))
	defer span.End()

	var dishes []entity.Dish
	err := r.reader.NewSelect().
		Model(&dishes).
		Join("JOIN combo_dishes AS cd ON cd.dish_id = dish.id").
		Where("cd.combo_id = ?", comboID).
		OrderExpr("dish.id ASC").
		Scan(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return dishes, nil
}

// SetDishStatus turns a dish on or off sale.
func (r *Repository) SetDishStatus(ctx context.Context, id int64, status entity.SaleStatus) error {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.SetDishStatus", trace.WithAttributes(attribute.Int64("dish.id", id)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Dish)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	return affected(span, res, err)
}

// SetComboStatus turns a combo on or off sale.
func (r *Repository) SetComboStatus(ctx context.Context, id int64, status entity.SaleStatus) error {
	ctx, span := repoTracer.Start(ctx, "CatalogRepository.SetComboStatus", trace.WithAttributes(attribute.Int64("combo.id", id)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.Combo)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	return affected(span, res, err)
}

// InsertDish adds a dish to the catalog.
func (r *Repository) InsertDish(ctx context.Context, dish *entity.Dish) error {
	_, err := r.writer.NewInsert().Model(dish).Exec(ctx)
	return err
}

// InsertCombo adds a combo together with its dish links.
func (r *Repository) InsertCombo(ctx context.Context, combo *entity.Combo, links []entity.ComboDish) error {
	return r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(combo).Exec(ctx); err != nil {
			return fmt.Errorf("insert combo: %w", err)
		}
		if len(links) == 0 {
			return nil
		}
		for i := range links {
			links[i].ComboID = combo.ID
		}
		if _, err := tx.NewInsert().Model(&links).Exec(ctx); err != nil {
			return fmt.Errorf("insert combo dishes: %w", err)
		}
		return nil
	})
}

func notFound(span trace.Span, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return port.ErrNotFound
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "select failed")
	return err
}

func affected(span trace.Span, res sql.Result, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return port.ErrNotFound
	}
	return nil
}
