package errorbank_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/kitchen/pkg/errorbank"
)

func TestKindMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        *errorbank.AppError
		wantStatus int
		wantCode   codes.Code
		wantReason errorbank.Reason
	}{
		{
			name:       "bad request",
			err:        errorbank.BadRequest("cart is empty", errorbank.WithReason(errorbank.ReasonCartEmpty)),
			wantStatus: http.StatusBadRequest,
			wantCode:   codes.InvalidArgument,
			wantReason: errorbank.ReasonCartEmpty,
		},
		{
			name:       "unauthenticated",
			err:        errorbank.Unauthenticated("who are you"),
			wantStatus: http.StatusUnauthorized,
			wantCode:   codes.Unauthenticated,
			wantReason: errorbank.ReasonActorNotAllowed,
		},
		{
			name:       "unknown kind behaves as internal",
			err:        errorbank.New(errorbank.Kind("teapot"), "short and stout"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   codes.Internal,
			wantReason: errorbank.ReasonInternal,
		},
		{
			name:       "forbidden defaults reason",
			err:        errorbank.Forbidden("staff only"),
			wantStatus: http.StatusForbidden,
			wantCode:   codes.PermissionDenied,
			wantReason: errorbank.ReasonActorNotAllowed,
		},
		{
			name:       "conflict defaults to stale state",
			err:        errorbank.Conflict("order changed"),
			wantStatus: http.StatusConflict,
			wantCode:   codes.Aborted,
			wantReason: errorbank.ReasonOrderStateStale,
		},
		{
			name:       "unprocessable",
			err:        errorbank.Unprocessable("bad status", errorbank.WithReason(errorbank.ReasonOrderStatusError)),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   codes.FailedPrecondition,
			wantReason: errorbank.ReasonOrderStatusError,
		},
		{
			name:       "unavailable",
			err:        errorbank.Unavailable("geocoder down"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   codes.Unavailable,
			wantReason: errorbank.ReasonCollaboratorFailed,
		},
		{
			name:       "internal",
			err:        errorbank.Internal(""),
			wantStatus: http.StatusInternalServerError,
			wantCode:   codes.Internal,
			wantReason: errorbank.ReasonInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode())
			assert.Equal(t, tt.wantCode, tt.err.GRPCCode())
			assert.Equal(t, tt.wantReason, tt.err.Reason())
		})
	}
}

func TestFromWrapsForeignErrors(t *testing.T) {
	cause := errors.New("boom")

	appErr := errorbank.From(cause)
	require.NotNil(t, appErr)
	assert.Equal(t, errorbank.KindInternal, appErr.Kind())
	assert.ErrorIs(t, appErr, cause)

	wrapped := fmt.Errorf("submit: %w", errorbank.NotFound("order not found", errorbank.WithReason(errorbank.ReasonOrderNotFound)))
	assert.True(t, errorbank.IsKind(wrapped, errorbank.KindNotFound))
	assert.True(t, errorbank.HasReason(wrapped, errorbank.ReasonOrderNotFound))
	assert.Nil(t, errorbank.From(nil))
}

func TestRetryable(t *testing.T) {
	assert.True(t, errorbank.Unavailable("x").Retryable())
	assert.True(t, errorbank.Conflict("x").Retryable())
	assert.False(t, errorbank.BadRequest("x").Retryable())
}

func TestDetails(t *testing.T) {
	err := errorbank.Unprocessable("out of range",
		errorbank.WithDetail("distance", 7200),
		errorbank.WithDetails(map[string]any{"limit": 5000}),
	)

	assert.Equal(t, map[string]any{"distance": 7200, "limit": 5000}, err.Details())
	assert.Equal(t, "out of range", err.Error())
}

func TestGRPCStatusConversion(t *testing.T) {
	err := fmt.Errorf("accept: %w", errorbank.Unprocessable("order is not awaiting acceptance",
		errorbank.WithReason(errorbank.ReasonOrderStatusError)))

	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.FailedPrecondition, st.Code())
	assert.Equal(t, "order is not awaiting acceptance", st.Message())
}

func TestErrorIncludesCause(t *testing.T) {
	err := errorbank.Unavailable("geocoder down", errorbank.WithCause(errors.New("dial tcp: timeout")))
	assert.Equal(t, "geocoder down: dial tcp: timeout", err.Error())
	assert.Equal(t, "internal", errorbank.Internal("").Message())
}
