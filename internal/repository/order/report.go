package order

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/port"
)

// CountByStatusAndTimeRange counts orders placed within [Begin, End], optionally restricted to one status.
func (r *Repository) CountByStatusAndTimeRange(ctx context.Context, q port.OrderCountQuery) (int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CountByStatusAndTimeRange")
	defer span.End()

	sel := r.reader.NewSelect().Model((*entity.Order)(nil))
	if q.Status != nil {
		span.SetAttributes(attribute.String("order.status", q.Status.String()))
		sel = sel.Where("status = ?", *q.Status)
	}
	if !q.Begin.IsZero() {
		sel = sel.Where("order_time >= ?", q.Begin)
	}
	if !q.End.IsZero() {
		sel = sel.Where("order_time <= ?", q.End)
	}

	n, err := sel.Count(ctx)
	if err != nil {
		return 0, fail(span, err, "count failed")
	}
	return n, nil
}

// SumTurnoverByDay totals completed-order amounts per calendar day of begin's location. Days without
// revenue are omitted.
func (r *Repository) SumTurnoverByDay(ctx context.Context, begin, end time.Time) ([]port.DailyTurnover, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.SumTurnoverByDay", trace.WithAttributes(
		attribute.String("begin", begin.Format(time.RFC3339)),
		attribute.String("end", end.Format(time.RFC3339)),
	))
	defer span.End()

	var rows []struct {
		OrderTime time.Time       `bun:"order_time"`
		Amount    decimal.Decimal `bun:"amount"`
	}
	err := r.reader.NewSelect().
		Model((*entity.Order)(nil)).
		Column("order_time", "amount").
		Where("status = ?", entity.StatusCompleted).
		Where("order_time >= ?", begin).
		Where("order_time <= ?", end).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fail(span, err, "select failed")
	}

	loc := begin.Location()
	byDay := make(map[time.Time]decimal.Decimal)
	for _, row := range rows {
		t := row.OrderTime.In(loc)
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		byDay[day] = byDay[day].Add(row.Amount)
	}

	out := make([]port.DailyTurnover, 0, len(byDay))
	for day, sum := range byDay {
		out = append(out, port.DailyTurnover{Day: day, Turnover: sum})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

// TopSoldItems ranks item names of completed orders by total quantity, ties broken by name.
func (r *Repository) TopSoldItems(ctx context.Context, begin, end time.Time, limit int) ([]port.SoldItem, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.TopSoldItems", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	var rows []struct {
		Name     string `bun:"name"`
		Quantity int    `bun:"quantity"`
	}
	err := r.reader.NewSelect().
		TableExpr("order_lines AS ol").
		Join("JOIN orders AS o ON o.id = ol.order_id").
		ColumnExpr("ol.name AS name").
		ColumnExpr("SUM(ol.number) AS quantity").
		Where("o.status = ?", entity.StatusCompleted).
		Where("o.order_time >= ?", begin).
		Where("o.order_time <= ?", end).
		GroupExpr("ol.name").
		OrderExpr("quantity DESC, name ASC").
		Limit(limit).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fail(span, err, "select failed")
	}

	out := make([]port.SoldItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, port.SoldItem{Name: row.Name, Quantity: row.Quantity})
	}
	return out, nil
}
