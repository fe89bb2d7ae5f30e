package filter

import (
	"context"

	"github.com/osa030/requestbox/internal/domain/request"
)

// AcceptanceFilter checks if the venue is still accepting requests.
type AcceptanceFilter struct {
	isAccepting func() bool
}

// NewAcceptanceFilter creates a new AcceptanceFilter.
func NewAcceptanceFilter(isAccepting func() bool) *AcceptanceFilter {
	return &AcceptanceFilter{isAccepting: isAccepting}
}

func (f *AcceptanceFilter) Name() string {
	return "acceptance_filter"
}

func (f *AcceptanceFilter) Description() string {
	return "Checks if the venue is still accepting requests"
}

func (f *AcceptanceFilter) ReturnCodes() []string {
	return []string{CodeAcceptanceClosed}
}

func (f *AcceptanceFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *AcceptanceFilter) Check(ctx context.Context, r *request.Request) Result {
	if !f.isAccepting() {
		return Reject(CodeAcceptanceClosed)
	}
	return Accept()
}
