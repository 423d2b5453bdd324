package report_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/kitchen/internal/config"
	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/repository/memory"
	reportsvc "github.com/Additional-Code/kitchen/internal/service/report"
	"github.com/Additional-Code/kitchen/internal/transport/http/middleware"
	reporttransport "github.com/Additional-Code/kitchen/internal/transport/http/report"
)

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	store := memory.NewStore()
	store.PutOrder(entity.Order{
		Number:    "R-1",
		Status:    entity.StatusCompleted,
		PayStatus: entity.PayPaid,
		Amount:    decimal.RequireFromString("30.50"),
		OrderTime: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}, entity.OrderLine{Name: "Mapo Tofu", Number: 3, Amount: decimal.NewFromInt(10)})

	svc, err := reportsvc.NewService(store.Orders(), config.Config{Scheduler: config.Scheduler{TimeZone: "UTC"}}, zap.NewNop())
	require.NoError(t, err)

	e := echo.New()
	reporttransport.Register(e, reporttransport.NewHandler(svc))
	return e
}

func get(t *testing.T, e *echo.Echo, path string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set(middleware.HeaderEmployeeID, "3")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestReports(t *testing.T) {
	e := newServer(t)

	code, out := get(t, e, "/admin/report/turnover?begin=2026-03-09&end=2026-03-10")
	require.Equal(t, http.StatusOK, code)
	data := out["data"].(map[string]any)
	assert.Equal(t, "2026-03-09,2026-03-10", data["dateList"])
	assert.Equal(t, "0,30.5", data["turnoverList"])

	code, out = get(t, e, "/admin/report/orders?begin=2026-03-10&end=2026-03-10")
	require.Equal(t, http.StatusOK, code)
	data = out["data"].(map[string]any)
	assert.EqualValues(t, 1, data["totalOrderCount"])
	assert.EqualValues(t, 1, data["orderCompletionRate"])

	code, out = get(t, e, "/admin/report/top10?begin=2026-03-10&end=2026-03-10")
	require.Equal(t, http.StatusOK, code)
	data = out["data"].(map[string]any)
	assert.Equal(t, "Mapo Tofu", data["nameList"])
	assert.Equal(t, "3", data["numberList"])
}

func TestReportWindowValidation(t *testing.T) {
	e := newServer(t)

	for name, path := range map[string]string{
		"missing begin":   "/admin/report/turnover?end=2026-03-10",
		"bad date":        "/admin/report/orders?begin=10/03/2026&end=2026-03-10",
		"reversed window": "/admin/report/top10?begin=2026-03-10&end=2026-03-01",
		"too long":        "/admin/report/turnover?begin=2024-01-01&end=2026-01-01",
	} {
		t.Run(name, func(t *testing.T) {
			code, out := get(t, e, path)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, "INVALID_ARGUMENT", out["error"].(map[string]any)["reason"])
		})
	}
}
