package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used throughout the application.
var (
	ErrNotFound = errors.New("record not found")
)

// MalformedEventError reports a raw notification record missing required
// envelope fields. It is scoped to the single record that produced it:
// sibling records in the same batch are still processed.
type MalformedEventError struct {
	Reason string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed event: %s", e.Reason)
}

// Malformed builds a MalformedEventError with a formatted reason.
func Malformed(format string, args ...any) *MalformedEventError {
	return &MalformedEventError{Reason: fmt.Sprintf(format, args...)}
}

// IsMalformed reports whether err is (or wraps) a MalformedEventError.
func IsMalformed(err error) bool {
	var me *MalformedEventError
	return errors.As(err, &me)
}

// UnsupportedMediaError is the business-rule rejection for resource keys
// outside the allowed extension set. It must propagate as a queue-visible
// failure so the message follows the retry-then-dead-letter path and ends
// in a rejection notice.
type UnsupportedMediaError struct {
	ResourceKey string
	Extension   string
}

func (e *UnsupportedMediaError) Error() string {
	if e.Extension == "" {
		return fmt.Sprintf("unsupported media: %q has no file extension", e.ResourceKey)
	}
	return fmt.Sprintf("unsupported media: extension %q (want jpeg or png)", e.Extension)
}

// IsUnsupportedMedia reports whether err is (or wraps) an UnsupportedMediaError.
func IsUnsupportedMedia(err error) bool {
	var ue *UnsupportedMediaError
	return errors.As(err, &ue)
}
