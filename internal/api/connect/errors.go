package connect

import (
	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"

	"github.com/osa030/requestbox/internal/app/queue"
	"github.com/osa030/requestbox/internal/app/settings"
	"github.com/osa030/requestbox/internal/app/venue"
	"github.com/osa030/requestbox/internal/domain/request"
)

// toConnectError maps a core error category to a Connect status code.
func toConnectError(err error) error {
	switch {
	case errors.Is(err, request.ErrValidation), errors.Is(err, settings.ErrInvalidValue):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, queue.ErrConcurrencyViolation):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, venue.ErrNotStarted):
		return connect.NewError(connect.CodeUnavailable, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
