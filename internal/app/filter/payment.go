package filter

import (
	"context"

	"github.com/osa030/requestbox/internal/domain/request"
)

// PaymentFilter gates admission on the payment state, unless free mode is on.
// In free mode every request is admitted and its payment state rewritten to
// NOT_REQUIRED, whatever the caller reported.
type PaymentFilter struct {
	freeMode func() bool
}

// NewPaymentFilter creates a new PaymentFilter reading free mode from freeMode.
func NewPaymentFilter(freeMode func() bool) *PaymentFilter {
	return &PaymentFilter{freeMode: freeMode}
}

func (f *PaymentFilter) Name() string {
	return "payment_filter"
}

func (f *PaymentFilter) Description() string {
	return "Requires a confirmed payment unless free mode is enabled"
}

func (f *PaymentFilter) ReturnCodes() []string {
	return []string{CodePaymentNotConfirmed, CodePaymentDenied}
}

func (f *PaymentFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *PaymentFilter) Check(ctx context.Context, r *request.Request) Result {
	if f.freeMode() {
		r.PaymentState = request.PaymentNotRequired
		return Accept()
	}

	switch r.PaymentState {
	case request.PaymentConfirmed:
		return Accept()
	case request.PaymentDenied:
		return Reject(CodePaymentDenied)
	default:
		// PENDING, and NOT_REQUIRED outside free mode.
		return Reject(CodePaymentNotConfirmed)
	}
}
