package model

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports a malformed or incomplete input.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) ValidationError {
	return ValidationError{Field: field, Message: message}
}

// IsValidationError checks if an error is a validation error (including wrapped errors)
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// ScheduleConflictError rejects an admission or update that overlaps
// existing schedules on the same resource.
type ScheduleConflictError struct {
	Conflicts []ConflictDescriptor
}

func (e ScheduleConflictError) Error() string {
	msgs := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		msgs = append(msgs, c.Message)
	}
	return fmt.Sprintf("schedule conflicts detected: %s", strings.Join(msgs, "; "))
}

// IsScheduleConflictError checks if err is a ScheduleConflictError.
func IsScheduleConflictError(err error) bool {
	var ce ScheduleConflictError
	return errors.As(err, &ce)
}

// ConflictsOf returns the descriptors carried by a ScheduleConflictError.
func ConflictsOf(err error) []ConflictDescriptor {
	var ce ScheduleConflictError
	if errors.As(err, &ce) {
		return ce.Conflicts
	}
	return nil
}

// PermissionDeniedError is returned before any store access when the actor
// lacks the required permission.
type PermissionDeniedError struct {
	ActorID    string
	Permission string
}

func (e PermissionDeniedError) Error() string {
	return fmt.Sprintf("actor %q lacks permission %s", e.ActorID, e.Permission)
}

// IsPermissionDeniedError checks if err is a PermissionDeniedError.
func IsPermissionDeniedError(err error) bool {
	var pe PermissionDeniedError
	return errors.As(err, &pe)
}

// NotFoundError reports a missing referenced entity.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// NewNotFoundError constructs NotFoundError
func NewNotFoundError(entity string, id int64) NotFoundError {
	return NotFoundError{Entity: entity, ID: id}
}

// IsNotFoundError checks if err is NotFoundError
func IsNotFoundError(err error) bool {
	var ne NotFoundError
	return errors.As(err, &ne)
}

// AlreadyTerminalError rejects a mutation of an entity in a terminal state.
type AlreadyTerminalError struct {
	Entity string
	ID     int64
	State  string
}

func (e AlreadyTerminalError) Error() string {
	return fmt.Sprintf("%s %d is already %s", e.Entity, e.ID, e.State)
}

// IsAlreadyTerminalError checks if err is AlreadyTerminalError
func IsAlreadyTerminalError(err error) bool {
	var te AlreadyTerminalError
	return errors.As(err, &te)
}

// StoreError wraps an underlying persistence failure.
type StoreError struct {
	Op  string
	Err error
}

func (e StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e StoreError) Unwrap() error { return e.Err }

// IsStoreError checks if err is StoreError
func IsStoreError(err error) bool {
	var se StoreError
	return errors.As(err, &se)
}

// IsDomainError reports whether err belongs to the domain taxonomy and
// should reach the caller unchanged.
func IsDomainError(err error) bool {
	return IsValidationError(err) ||
		IsScheduleConflictError(err) ||
		IsPermissionDeniedError(err) ||
		IsNotFoundError(err) ||
		IsAlreadyTerminalError(err) ||
		IsStoreError(err)
}
