// Package filter provides the filter chain for request admission.
package filter

import (
	"context"

	"github.com/osa030/requestbox/internal/domain/request"
)

// Rejection codes.
const (
	CodePaymentNotConfirmed = "payment_not_confirmed"
	CodePaymentDenied       = "payment_denied"
	CodeAcceptanceClosed    = "acceptance_closed"
	CodeDuplicateRequest    = "duplicate_request"
	CodeRequesterPending    = "requester_pending"
	CodeTitleLength         = "title_length_exceeded"
)

// Result represents the result of a filter check.
type Result struct {
	Accepted bool
	Code     string // e.g., "payment_denied", "duplicate_request"
}

// Accept returns an accepted result.
func Accept() Result {
	return Result{Accepted: true}
}

// Reject returns a rejected result with the given code.
func Reject(code string) Result {
	return Result{Accepted: false, Code: code}
}

// Filter is the interface for admission filters.
type Filter interface {
	// Name returns the filter name (used in config).
	Name() string
	// Description returns a human-readable description.
	Description() string
	// ReturnCodes returns the codes this filter can return.
	ReturnCodes() []string
	// ValidateConfig validates and applies the filter configuration.
	ValidateConfig(settings map[string]any) error
	// Check performs the filter check on an undecided request.
	// A filter may adjust the request's payment state when it admits it.
	Check(ctx context.Context, r *request.Request) Result
}

// Source gives configurable filters read access to the live queue.
type Source interface {
	ActiveLister
	PendingCounter
}

// Factory builds a filter bound to src.
type Factory func(src Source) Filter

// registry holds registered filter factories.
var registry = make(map[string]Factory)

// Register registers a filter factory.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// GetRegistered returns all registered filter factories.
func GetRegistered() map[string]Factory {
	return registry
}
