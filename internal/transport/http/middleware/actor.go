package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/kitchen/internal/entity"
	"github.com/Additional-Code/kitchen/internal/presentation/http/response"
	"github.com/Additional-Code/kitchen/pkg/errorbank"
)

// Identity headers set by the authenticating gateway in front of the service.
const (
	HeaderUserID     = "X-User-ID"
	HeaderEmployeeID = "X-Employee-ID"
)

const actorKey = "kitchen.actor"

// Customer requires a customer identity on every request of the group.
func Customer() echo.MiddlewareFunc {
	return identify(HeaderUserID, entity.Customer)
}

// Staff requires an employee identity on every request of the group.
func Staff() echo.MiddlewareFunc {
	return identify(HeaderEmployeeID, entity.Staff)
}

func identify(header string, build func(int64) entity.Actor) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := c.Request().Header.Get(header)
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || id <= 0 {
				return response.New(c).
					WithError(errorbank.Unauthenticated("missing or invalid caller identity",
						errorbank.WithDetail("header", header))).
					Build()
			}
			c.Set(actorKey, build(id))
			return next(c)
		}
	}
}

// Actor returns the caller identified by the group middleware.
func Actor(c echo.Context) entity.Actor {
	actor, _ := c.Get(actorKey).(entity.Actor)
	return actor
}
