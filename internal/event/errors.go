package event

import (
	"errors"
	"fmt"
)

// Decode failure kinds.
var (
	ErrMalformed          = errors.New("malformed payload")
	ErrMissingField       = errors.New("missing required field")
	ErrUnknownEventType   = errors.New("unknown event type")
	ErrUnsupportedVersion = errors.New("unsupported schema version")
)

// DecodeError reports why a payload could not be turned into a TradeEvent.
type DecodeError struct {
	Kind  error  // one of the Err* sentinels above
	Field string // offending field, if any
	Cause error  // underlying parser error, if any
}

func (e *DecodeError) Error() string {
	msg := "decode trade event: " + e.Kind.Error()
	if e.Field != "" {
		msg += fmt.Sprintf(" (%s)", e.Field)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the parser cause to errors.Is/As.
func (e *DecodeError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}
