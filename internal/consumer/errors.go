package consumer

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrAlreadyStarted = errors.New("consumer already started")

// PoisonEventError reports a record that could not be decoded.
type PoisonEventError struct {
	Partition int
	Offset    int64
	Err       error // *event.DecodeError
}

func (e *PoisonEventError) Error() string {
	return fmt.Sprintf("poison event at partition %d offset %d: %v", e.Partition, e.Offset, e.Err)
}

func (e *PoisonEventError) Unwrap() error { return e.Err }

// HandlerError reports a failed OnEvent call. The event is retried.
type HandlerError struct {
	Partition int
	Offset    int64
	EventID   uuid.UUID
	Attempt   int
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler failed for event %s at partition %d offset %d (attempt %d): %v",
		e.EventID, e.Partition, e.Offset, e.Attempt, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// CheckpointStoreError reports a failed checkpoint read or write.
type CheckpointStoreError struct {
	Op        string // "get" or "put"
	Group     string
	Partition int
	Position  int64 // position being written, for "put"
	Err       error
}

func (e *CheckpointStoreError) Error() string {
	if e.Op == "put" {
		return fmt.Sprintf("checkpoint put %s/%d at %d: %v", e.Group, e.Partition, e.Position, e.Err)
	}
	return fmt.Sprintf("checkpoint %s %s/%d: %v", e.Op, e.Group, e.Partition, e.Err)
}

func (e *CheckpointStoreError) Unwrap() error { return e.Err }

// StreamError reports a transport failure while reading a partition. The
// read is retried.
type StreamError struct {
	Partition int
	Err       error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream error on partition %d: %v", e.Partition, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }
