package report

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/config"
	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/port"
	"github.com/Additional-Code/kitchen/pkg/errorbank"
)

const (
	dayLayout = "2006-01-02"
	topLimit  = 10
	// maxDays bounds a report window.
	maxDays = 366
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/kitchen/service/report")

// Module provides the report service to Fx.
var Module = fx.Provide(NewService)

// Service builds the merchant's dashboards from the order ledger. Day boundaries follow the configured
// time zone.
type Service struct {
	reports port.OrderReporter
	loc     *time.Location
	logger  *zap.Logger
}

// NewService wires a new Service instance.
func NewService(reports port.OrderReporter, cfg config.Config, logger *zap.Logger) (*Service, error) {
	loc := time.Local
	if tz := cfg.Scheduler.TimeZone; tz != "" {
		var err error
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("report time zone: %w", err)
		}
	}
	return &Service{reports: reports, loc: loc, logger: logger.Named("reports")}, nil
}

// Location is the zone report days are cut in.
func (s *Service) Location() *time.Location { return s.loc }

// Turnover is completed-order revenue per day, aligned lists joined with ",".
type Turnover struct {
	DateList     string `json:"dateList"`
	TurnoverList string `json:"turnoverList"`
}

// OrderStatistics counts all and completed orders per day.
type OrderStatistics struct {
	DateList            string  `json:"dateList"`
	OrderCountList      string  `json:"orderCountList"`
	ValidOrderCountList string  `json:"validOrderCountList"`
	TotalOrderCount     int     `json:"totalOrderCount"`
	ValidOrderCount     int     `json:"validOrderCount"`
	OrderCompletionRate float64 `json:"orderCompletionRate"`
}

// SalesTop is the best-selling item names with their quantities.
type SalesTop struct {
	NameList   string `json:"nameList"`
	NumberList string `json:"numberList"`
}

// Turnover reports revenue of completed orders for every day in [begin, end], zero for days without any.
func (s *Service) Turnover(ctx context.Context, actor entity.Actor, begin, end time.Time) (*Turnover, error) {
	ctx, span := s.start(ctx, "ReportService.Turnover", begin, end)
	defer span.End()

	days, err := s.window(actor, begin, end)
	if err != nil {
		return nil, err
	}

	sums, err := s.reports.SumTurnoverByDay(ctx, days[0], endOfDay(days[len(days)-1]))
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to sum turnover", errorbank.WithCause(err))
	}
	byDay := lo.SliceToMap(sums, func(d port.DailyTurnover) (string, decimal.Decimal) {
		return d.Day.In(s.loc).Format(dayLayout), d.Turnover
	})

	turnover := lo.Map(days, func(day time.Time, _ int) string {
		return byDay[day.Format(dayLayout)].String()
	})
	return &Turnover{DateList: joinDays(days), TurnoverList: strings.Join(turnover, ",")}, nil
}

// OrderStatistics reports per-day totals and completed counts over [begin, end] with the overall
// completion rate.
func (s *Service) OrderStatistics(ctx context.Context, actor entity.Actor, begin, end time.Time) (*OrderStatistics, error) {
	ctx, span := s.start(ctx, "ReportService.OrderStatistics", begin, end)
	defer span.End()

	days, err := s.window(actor, begin, end)
	if err != nil {
		return nil, err
	}

	completed := entity.StatusCompleted
	totals := make([]int, len(days))
	valid := make([]int, len(days))
	for i, day := range days {
		q := port.OrderCountQuery{Begin: day, End: endOfDay(day)}
		if totals[i], err = s.reports.CountByStatusAndTimeRange(ctx, q); err != nil {
			span.RecordError(err)
			return nil, errorbank.Internal("failed to count orders", errorbank.WithCause(err))
		}
		q.Status = &completed
		if valid[i], err = s.reports.CountByStatusAndTimeRange(ctx, q); err != nil {
			span.RecordError(err)
			return nil, errorbank.Internal("failed to count orders", errorbank.WithCause(err))
		}
	}

	out := &OrderStatistics{
		DateList:            joinDays(days),
		OrderCountList:      joinInts(totals),
		ValidOrderCountList: joinInts(valid),
		TotalOrderCount:     lo.Sum(totals),
		ValidOrderCount:     lo.Sum(valid),
	}
	if out.TotalOrderCount > 0 {
		out.OrderCompletionRate = float64(out.ValidOrderCount) / float64(out.TotalOrderCount)
	}
	return out, nil
}

// SalesTop10 ranks the ten best-selling items of completed orders in [begin, end].
func (s *Service) SalesTop10(ctx context.Context, actor entity.Actor, begin, end time.Time) (*SalesTop, error) {
	ctx, span := s.start(ctx, "ReportService.SalesTop10", begin, end)
	defer span.End()

	days, err := s.window(actor, begin, end)
	if err != nil {
		return nil, err
	}

	items, err := s.reports.TopSoldItems(ctx, days[0], endOfDay(days[len(days)-1]), topLimit)
	if err != nil {
		span.RecordError(err)
		return nil, errorbank.Internal("failed to rank items", errorbank.WithCause(err))
	}

	names := lo.Map(items, func(it port.SoldItem, _ int) string { return it.Name })
	numbers := lo.Map(items, func(it port.SoldItem, _ int) int { return it.Quantity })
	s.logger.Debug("sales top10", zap.Strings("names", names), zap.Ints("numbers", numbers))
	return &SalesTop{NameList: strings.Join(names, ","), NumberList: joinInts(numbers)}, nil
}

func (s *Service) start(ctx context.Context, name string, begin, end time.Time) (context.Context, trace.Span) {
	return serviceTracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("begin", begin.Format(dayLayout)),
		attribute.String("end", end.Format(dayLayout)),
	))
}

// window checks the caller and returns every calendar day from begin to end inclusive.
func (s *Service) window(actor entity.Actor, begin, end time.Time) ([]time.Time, error) {
	if actor.Role != entity.RoleStaff {
		return nil, errorbank.Forbidden("only staff may read reports")
	}
	if begin.IsZero() || end.IsZero() {
		return nil, errorbank.BadRequest("begin and end are required", errorbank.WithReason(errorbank.ReasonInvalidArgument))
	}

	first, last := s.day(begin), s.day(end)
	if last.Before(first) {
		return nil, errorbank.BadRequest("end precedes begin", errorbank.WithReason(errorbank.ReasonInvalidArgument))
	}

	var days []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if len(days) == maxDays {
			return nil, errorbank.BadRequest("report window is too long",
				errorbank.WithReason(errorbank.ReasonInvalidArgument),
				errorbank.WithDetail("max_days", maxDays),
			)
		}
		days = append(days, d)
	}
	return days, nil
}

func (s *Service) day(t time.Time) time.Time {
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}

func endOfDay(day time.Time) time.Time {
	return day.AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func joinDays(days []time.Time) string {
	return strings.Join(lo.Map(days, func(d time.Time, _ int) string { return d.Format(dayLayout) }), ",")
}

func joinInts(values []int) string {
	return strings.Join(lo.Map(values, func(v int, _ int) string { return strconv.Itoa(v) }), ",")
}
