package filter

import (
	"context"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/requestbox/internal/domain/request"
)

// TitleLengthConfig represents the configuration for TitleLengthFilter.
type TitleLengthConfig struct {
	MinLength int `yaml:"min_length" mapstructure:"min_length" default:"1" validate:"gte=1"`
	MaxLength int `yaml:"max_length" mapstructure:"max_length" validate:"gte=0"`
}

// TitleLengthFilter checks if the title length, in characters, is within limits.
type TitleLengthFilter struct {
	config *TitleLengthConfig
}

// NewTitleLengthFilter creates a new title length filter.
func NewTitleLengthFilter() *TitleLengthFilter {
	return &TitleLengthFilter{}
}

func (f *TitleLengthFilter) Name() string {
	return "title_length_filter"
}

func (f *TitleLengthFilter) Description() string {
	return "Checks if the requested title length is within allowed limits"
}

func (f *TitleLengthFilter) ReturnCodes() []string {
	return []string{CodeTitleLength}
}

func (f *TitleLengthFilter) ValidateConfig(settings map[string]any) error {
	var config TitleLengthConfig

	// Decode map[string]any to struct using mapstructure
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

	// 0 means no upper limit
	if config.MaxLength > 0 && config.MinLength > config.MaxLength {
		return errors.New("min_length cannot be greater than max_length")
	}
	f.config = &config
	zlog.Info().Msgf("title length filter config: %+v", config)
	return nil
}

func (f *TitleLengthFilter) Check(ctx context.Context, r *request.Request) Result {
	// If config is not set, accept all titles
	if f.config == nil {
		return Accept()
	}

	n := utf8.RuneCountInString(r.Title)
	if n < f.config.MinLength {
		return Reject(CodeTitleLength)
	}
	if f.config.MaxLength > 0 && n > f.config.MaxLength {
		return Reject(CodeTitleLength)
	}
	return Accept()
}

func init() {
	Register("title_length_filter", func(src Source) Filter {
		return &TitleLengthFilter{}
	})
}
