package domain

import "fmt"

// MalformedEventError marks a comment event that is missing a required
// identity field. The event is dropped; the ingestion loop continues.
type MalformedEventError struct {
	Field string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed comment event: missing %s", e.Field)
}

// DeliveryError is a transient queue-put failure. Retry policy belongs to the
// caller, not to the forwarder.
type DeliveryError struct {
	Stream string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to stream %s: %v", e.Stream, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// InferenceError aborts processing of a single queued record; redelivery is
// handled by the queue consumer mechanism.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string { return fmt.Sprintf("sentiment inference: %v", e.Err) }

func (e *InferenceError) Unwrap() error { return e.Err }

// StorageError aborts processing of a single queued record.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("durable storage: %v", e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// CacheAuthError surfaces a cache credential failure that persisted through
// one reconnect attempt.
type CacheAuthError struct {
	Err error
}

func (e *CacheAuthError) Error() string { return fmt.Sprintf("cache authentication: %v", e.Err) }

func (e *CacheAuthError) Unwrap() error { return e.Err }
