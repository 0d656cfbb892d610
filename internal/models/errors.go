package models

import "fmt"

// ProviderError is returned for every failed weather provider call:
// transport failures, non-2xx responses, bad payloads and open circuits.
type ProviderError struct {
	City       string
	StatusCode int
	Cause      error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("weather provider error for %q (status %d): %v", e.City, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("weather provider error for %q: %v", e.City, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// IsTransient reports true: the next scheduled fetch may succeed
func (e *ProviderError) IsTransient() bool {
	return true
}

// NoDataError means a computation found nothing to work on yet.
type NoDataError struct {
	Message string
}

func (e *NoDataError) Error() string {
	return e.Message
}

// IsTransient returns true as data may arrive on a later run
func (e *NoDataError) IsTransient() bool {
	return true
}

// StorageError wraps a failed datastore operation.
type StorageError struct {
	Op    string
	Cause error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// IsTransient returns true; connection and lock errors usually clear
func (e *StorageError) IsTransient() bool {
	return true
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// NotFoundError signals that a requested record does not exist.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// IsTransient returns false
func (e *NotFoundError) IsTransient() bool {
	return false
}
