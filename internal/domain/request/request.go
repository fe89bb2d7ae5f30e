// Package request provides the Request domain entity.
package request

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// ErrValidation marks malformed caller input. Validation errors are never
// retried by the core.
var ErrValidation = errors.New("validation error")

// PaymentState represents the payment decision attached to a submission.
type PaymentState string

const (
	PaymentNotRequired PaymentState = "NOT_REQUIRED"
	PaymentConfirmed   PaymentState = "CONFIRMED"
	PaymentPending     PaymentState = "PENDING"
	PaymentDenied      PaymentState = "DENIED"
)

// Valid reports whether p is a known payment state.
func (p PaymentState) Valid() bool {
	switch p {
	case PaymentNotRequired, PaymentConfirmed, PaymentPending, PaymentDenied:
		return true
	}
	return false
}

// ParsePaymentState parses a payment state name.
func ParsePaymentState(s string) (PaymentState, error) {
	p := PaymentState(s)
	if !p.Valid() {
		return "", errors.Mark(errors.Newf("unknown payment state %q", s), ErrValidation)
	}
	return p, nil
}

// Status represents the lifecycle status of a request.
type Status string

const (
	StatusUndecided Status = ""          // Submitted, admission not decided yet
	StatusQueued    Status = "QUEUED"    // Admitted, waiting to play
	StatusPlaying   Status = "PLAYING"   // Currently on the display
	StatusPlayed    Status = "PLAYED"    // Finished playing
	StatusRejected  Status = "REJECTED"  // Never entered the queue
	StatusCancelled Status = "CANCELLED" // Removed before playing
)

// String returns the string representation of the status.
func (s Status) String() string {
	if s == StatusUndecided {
		return "UNDECIDED"
	}
	return string(s)
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusPlayed || s == StatusRejected || s == StatusCancelled
}

// CanTransitionTo reports whether s -> next is allowed.
// Nothing re-enters QUEUED once it has been left.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusUndecided:
		return next == StatusQueued || next == StatusRejected
	case StatusQueued:
		return next == StatusPlaying || next == StatusCancelled
	case StatusPlaying:
		return next == StatusPlayed
	default:
		return false
	}
}

// Request represents a song request in the venue queue.
type Request struct {
	ID           string       // UUID
	Title        string       // Song title as submitted (trimmed)
	RequesterRef string       // Opaque requester token
	SubmittedAt  time.Time    // Submission time, carries the monotonic reading
	PaymentState PaymentState // Payment decision at admission
	Status       Status       // Lifecycle status
}

// New creates an undecided request submitted at the given time.
func New(title, requesterRef string, payment PaymentState, submittedAt time.Time) *Request {
	return &Request{
		ID:           uuid.New().String(),
		Title:        title,
		RequesterRef: requesterRef,
		SubmittedAt:  submittedAt,
		PaymentState: payment,
		Status:       StatusUndecided,
	}
}

// Before reports whether r sorts before other in playback order:
// earliest SubmittedAt first, ties broken by ID.
func (r *Request) Before(other *Request) bool {
	if c := r.SubmittedAt.Compare(other.SubmittedAt); c != 0 {
		return c < 0
	}
	return r.ID < other.ID
}

// Transition moves the request to next, enforcing the status lattice.
func (r *Request) Transition(next Status) error {
	if !r.Status.CanTransitionTo(next) {
		return errors.Newf("invalid transition %s -> %s for request %s", r.Status, next, r.ID)
	}
	r.Status = next
	return nil
}
