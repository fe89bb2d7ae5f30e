package queue

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/requestbox/internal/domain/request"
)

// ErrConcurrencyViolation marks errors caused by a stale view of the queue.
// Callers should re-read the current state and decide whether to retry.
var ErrConcurrencyViolation = errors.New("concurrency violation")

// Errors
var (
	ErrDuplicateID    = errors.Mark(errors.New("duplicate request id"), ErrConcurrencyViolation)
	ErrAlreadyPlaying = errors.Mark(errors.New("a request is already playing"), ErrConcurrencyViolation)
	ErrNotPlaying     = errors.Mark(errors.New("request is not playing"), ErrConcurrencyViolation)
	ErrNotCancellable = errors.Mark(errors.New("request is not cancellable"), ErrConcurrencyViolation)
	ErrNotAdmitted    = errors.Mark(errors.New("request has not been admitted"), request.ErrValidation)
	ErrInvalidRestore = errors.New("invalid restore set")
)
