// Package admission decides whether a submitted request may enter the queue.
package admission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/requestbox/internal/app/filter"
	"github.com/osa030/requestbox/internal/domain/request"
)

// ErrRejected marks every business-rule rejection.
var ErrRejected = errors.New("request rejected")

// Errors
var (
	ErrInvalidTitle        = errors.Mark(errors.New("title must not be empty"), request.ErrValidation)
	ErrPaymentNotConfirmed = errors.Mark(errors.New("payment not confirmed"), ErrRejected)
	ErrPaymentDenied       = errors.Mark(errors.New("payment denied"), ErrRejected)
	ErrAcceptanceClosed    = errors.Mark(errors.New("not accepting requests"), ErrRejected)
	ErrDuplicateRequest    = errors.Mark(errors.New("duplicate request"), ErrRejected)
	ErrRequesterPending    = errors.Mark(errors.New("requester has pending requests"), ErrRejected)
	ErrTitleLength         = errors.Mark(errors.New("title length out of range"), ErrRejected)
)

// reasons maps filter codes to rejection sentinels.
var reasons = map[string]error{
	filter.CodePaymentNotConfirmed: ErrPaymentNotConfirmed,
	filter.CodePaymentDenied:       ErrPaymentDenied,
	filter.CodeAcceptanceClosed:    ErrAcceptanceClosed,
	filter.CodeDuplicateRequest:    ErrDuplicateRequest,
	filter.CodeRequesterPending:    ErrRequesterPending,
	filter.CodeTitleLength:         ErrTitleLength,
}

// RejectedError reports a business-rule rejection together with the
// finalized REJECTED request.
type RejectedError struct {
	Code    string
	Request request.Request
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("request %s rejected: %s", e.Request.ID, e.Code)
}

// Unwrap exposes the reason sentinel so errors.Is matches it.
func (e *RejectedError) Unwrap() error {
	if reason, ok := reasons[e.Code]; ok {
		return reason
	}
	return ErrRejected
}

// Retryable reports whether a new submission may succeed once the
// caller's situation changes (payment resolves, queue drains).
func (e *RejectedError) Retryable() bool {
	return e.Code != filter.CodePaymentDenied
}

// Enqueuer accepts admitted requests.
type Enqueuer interface {
	Enqueue(r request.Request) (request.Request, error)
}

// Recorder receives rejected requests for the audit trail.
type Recorder interface {
	RecordRequest(r request.Request)
}

// Controller gates entry into the queue.
type Controller struct {
	chain    *filter.Chain
	queue    Enqueuer
	recorder Recorder
	now      func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the submission clock.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithRecorder sets the recorder for rejected requests.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// NewController creates a new admission controller.
func NewController(chain *filter.Chain, queue Enqueuer, opts ...Option) *Controller {
	c := &Controller{
		chain: chain,
		queue: queue,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit validates a submission, runs the filter chain and enqueues the
// request when admitted. A rejection returns *RejectedError; each submission
// is a one-shot decision and a rejected request is never revived.
func (c *Controller) Submit(ctx context.Context, title, requesterRef string, payment request.PaymentState) (*request.Request, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrInvalidTitle
	}
	if !payment.Valid() {
		return nil, errors.Mark(errors.Newf("unknown payment state %q", payment), request.ErrValidation)
	}

	r := request.New(title, requesterRef, payment, c.now())

	result := c.chain.Execute(ctx, r)
	zlog.Info().Msgf("admission: request_id=%s title=%s payment=%s result=%t code=%s",
		r.ID, r.Title, r.PaymentState, result.Accepted, result.Code)

	if !result.Accepted {
		if err := r.Transition(request.StatusRejected); err != nil {
			return nil, err
		}
		if c.recorder != nil {
			c.recorder.RecordRequest(*r)
		}
		return nil, &RejectedError{Code: result.Code, Request: *r}
	}

	queued, err := c.queue.Enqueue(*r)
	if err != nil {
		return nil, errors.Wrap(err, "enqueue admitted request")
	}
	return &queued, nil
}
