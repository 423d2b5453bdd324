package response

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/kitchen/pkg/errorbank"
)

// retryAfterSeconds is advertised on retryable failures.
const retryAfterSeconds = 1

// Builder accumulates one response and writes it on Build.
type Builder struct {
	c      echo.Context
	status int
	body   Envelope
	err    error
}

// New starts a 200 response for c.
func New(c echo.Context) *Builder {
	return &Builder{c: c, status: http.StatusOK}
}

// WithStatus sets the success status. Failures always use the status of their kind.
func (b *Builder) WithStatus(status int) *Builder {
	if status > 0 {
		b.status = status
	}
	return b
}

// WithData sets the success payload.
func (b *Builder) WithData(data any) *Builder {
	b.body.Data = data
	return b
}

// WithError turns the response into a failure.
func (b *Builder) WithError(err error) *Builder {
	b.err = err
	return b
}

// WithMeta sets one metadata entry.
func (b *Builder) WithMeta(key string, value any) *Builder {
	if key == "" {
		return b
	}
	if b.body.Meta == nil {
		b.body.Meta = map[string]any{}
	}
	b.body.Meta[key] = value
	return b
}

// Build writes the envelope.
func (b *Builder) Build() error {
	if id := b.c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		b.WithMeta("request_id", id)
	}
	if b.err == nil {
		b.body.Success = true
		return b.c.JSON(b.status, b.body)
	}

	appErr := errorbank.From(b.err)
	b.body.Data = nil
	b.body.Error = &Failure{
		Kind:    string(appErr.Kind()),
		Reason:  string(appErr.Reason()),
		Message: appErr.Message(),
		Details: appErr.Details(),
	}
	if appErr.Retryable() {
		b.c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	return b.c.JSON(appErr.StatusCode(), b.body)
}
