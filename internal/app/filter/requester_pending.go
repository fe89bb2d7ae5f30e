package filter

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/requestbox/internal/domain/request"
)

// RequesterPendingConfig represents the configuration for RequesterPendingFilter.
type RequesterPendingConfig struct {
	MaxPending int `yaml:"max_pending" mapstructure:"max_pending" default:"1" validate:"gte=1"`
}

// PendingCounter counts the active requests of a requester.
type PendingCounter interface {
	PendingFor(requesterRef string) int
}

// RequesterPendingFilter limits how many requests one requester may have queued or playing.
type RequesterPendingFilter struct {
	queue  PendingCounter
	config RequesterPendingConfig
}

// NewRequesterPendingFilter creates a new requester pending filter with the default limit.
func NewRequesterPendingFilter(queue PendingCounter) *RequesterPendingFilter {
	return &RequesterPendingFilter{
		queue:  queue,
		config: RequesterPendingConfig{MaxPending: 1},
	}
}

func (f *RequesterPendingFilter) Name() string {
	return "requester_pending_filter"
}

func (f *RequesterPendingFilter) Description() string {
	return "Checks if the requester already has too many requests waiting to be played"
}

func (f *RequesterPendingFilter) ReturnCodes() []string {
	return []string{CodeRequesterPending}
}

func (f *RequesterPendingFilter) ValidateConfig(settings map[string]any) error {
	var config RequesterPendingConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &config,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(&config); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.Wrap(err, "validation failed")
	}

	f.config = config
	zlog.Info().Msgf("requester pending filter config: %+v", config)
	return nil
}

func (f *RequesterPendingFilter) Check(ctx context.Context, r *request.Request) Result {
	if f.queue.PendingFor(r.RequesterRef) >= f.config.MaxPending {
		return Reject(CodeRequesterPending)
	}
	return Accept()
}

func init() {
	Register("requester_pending_filter", func(src Source) Filter {
		return NewRequesterPendingFilter(src)
	})
}
