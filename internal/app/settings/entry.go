// Package settings provides the live, hot-reloadable key/value settings store.
package settings

import (
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Well-known keys.
const (
	KeyFreeMode          = "free_mode"
	KeyIdleVideoActive   = "idle_video_active"
	KeyIdleVideoURL      = "idle_video_url"
	KeyAcceptingRequests = "accepting_requests"
)

// ErrInvalidValue is returned when a value does not satisfy its kind's parse rules.
var ErrInvalidValue = errors.New("invalid value")

// Kind represents the declared type of a setting value.
type Kind string

const (
	KindBoolean Kind = "boolean"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
)

// knownKinds pins the kind of the keys the core reads.
var knownKinds = map[string]Kind{
	KeyFreeMode:          KindBoolean,
	KeyIdleVideoActive:   KindBoolean,
	KeyIdleVideoURL:      KindString,
	KeyAcceptingRequests: KindBoolean,
}

// ParseKind parses a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindBoolean, KindString, KindNumber:
		return k, nil
	}
	return "", errors.Wrapf(ErrInvalidValue, "unknown kind %q", s)
}

// Entry represents a single setting.
type Entry struct {
	Key   string
	Value string
	Kind  Kind
}

// Bool returns the boolean value of the entry.
// ok is false when the entry is not a boolean.
func (e Entry) Bool() (value bool, ok bool) {
	if e.Kind != KindBoolean {
		return false, false
	}
	return e.Value == "true", true
}

// validateValue checks value against the parse rules of kind.
// Booleans must be exactly "true" or "false"; nothing is coerced.
func validateValue(kind Kind, value string) error {
	switch kind {
	case KindBoolean:
		if value != "true" && value != "false" {
			return errors.Wrapf(ErrInvalidValue, "boolean value must be \"true\" or \"false\", got %q", value)
		}
	case KindNumber:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return errors.Wrapf(ErrInvalidValue, "number value must be a finite number, got %q", value)
		}
	case KindString:
	default:
		return errors.Wrapf(ErrInvalidValue, "unknown kind %q", kind)
	}
	return nil
}
