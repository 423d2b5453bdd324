package errorbank

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// Kind is the transport-independent category of an error.
type Kind string

const (
	KindBadRequest          Kind = "bad_request"
	KindUnauthenticated     Kind = "unauthenticated"
	KindForbidden           Kind = "forbidden"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindUnprocessableEntity Kind = "unprocessable_entity"
	KindUnavailable         Kind = "unavailable"
	KindInternal            Kind = "internal"
)

type kindSpec struct {
	status    int
	code      codes.Code
	reason    Reason
	retryable bool
}

var kinds = map[Kind]kindSpec{
	KindBadRequest:          {http.StatusBadRequest, codes.InvalidArgument, ReasonInvalidArgument, false},
	KindUnauthenticated:     {http.StatusUnauthorized, codes.Unauthenticated, ReasonActorNotAllowed, false},
	KindForbidden:           {http.StatusForbidden, codes.PermissionDenied, ReasonActorNotAllowed, false},
	KindNotFound:            {http.StatusNotFound, codes.NotFound, "NOT_FOUND", false},
	KindConflict:            {http.StatusConflict, codes.Aborted, ReasonOrderStateStale, true},
	KindUnprocessableEntity: {http.StatusUnprocessableEntity, codes.FailedPrecondition, "UNPROCESSABLE", false},
	KindUnavailable:         {http.StatusServiceUnavailable, codes.Unavailable, ReasonCollaboratorFailed, true},
	KindInternal:            {http.StatusInternalServerError, codes.Internal, ReasonInternal, false},
}

// spec falls back to internal for kinds outside the table.
func (k Kind) spec() kindSpec {
	if s, ok := kinds[k]; ok {
		return s
	}
	return kinds[KindInternal]
}
