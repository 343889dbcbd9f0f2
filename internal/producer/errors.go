package producer

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrValidation    = errors.New("invalid trade")
	ErrEventTooLarge = errors.New("event exceeds maximum batch size")
	ErrPublish       = errors.New("publish failed")
)

// ValidationError reports a trade rejected before any transport call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid trade: %s %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// EventTooLargeError reports an encoded event that cannot fit in a batch.
type EventTooLargeError struct {
	Size  int
	Limit int
}

func (e *EventTooLargeError) Error() string {
	return fmt.Sprintf("event of %d bytes exceeds batch limit of %d bytes", e.Size, e.Limit)
}

func (e *EventTooLargeError) Is(target error) bool {
	return target == ErrEventTooLarge
}

// PublishError wraps a transport failure.
type PublishError struct {
	EventID   uuid.UUID
	Partition int
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish event %s to partition %d: %v", e.EventID, e.Partition, e.Err)
}

func (e *PublishError) Unwrap() []error {
	return []error{ErrPublish, e.Err}
}
