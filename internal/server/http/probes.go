package http

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v4"

	"github.com/Additional-Code/kitchen/internal/presentation/http/response"
	"github.com/Additional-Code/kitchen/pkg/errorbank"
)

const readyTimeout = 2 * time.Second

// Readiness reports whether the backing stores answer.
type Readiness interface {
	Ready(ctx context.Context) error
}

// RegisterProbes mounts /health, which always answers, and /ready, which answers 503 while the
// database is unreachable.
func RegisterProbes(e *echo.Echo, ready Readiness) {
	e.GET("/health", func(c echo.Context) error {
		return response.New(c).WithData(map[string]string{"status": "ok"}).Build()
	})
	e.GET("/ready", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), readyTimeout)
		defer cancel()
		if err := ready.Ready(ctx); err != nil {
			return response.New(c).WithError(errorbank.Unavailable("database not ready", errorbank.WithCause(err))).Build()
		}
		return response.New(c).WithStatus(http.StatusOK).WithData(map[string]string{"status": "ready"}).Build()
	})
}
