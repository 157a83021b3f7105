package model

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when no record matches a query
	ErrNotFound = errors.New("document not found")
	// ErrExists is returned when inserting a record whose id is already taken
	ErrExists = errors.New("document already exists")
	// ErrIDChanged is returned when an update tries to give a record a new id
	ErrIDChanged = errors.New("document id cannot change")
	// ErrInvalidQuery is returned when a query or sort order is malformed
	ErrInvalidQuery = errors.New("invalid query")
	// ErrSubscriptionClosed is returned when advancing an unsubscribed subscription
	ErrSubscriptionClosed = errors.New("subscription closed")
	// ErrTaskInFlight is returned when a subscription is advanced while a previous advance is pending
	ErrTaskInFlight = errors.New("subscription task already in flight")
	// ErrCanceled is returned when the operation is canceled by the client
	ErrCanceled = errors.New("operation canceled")
)

// WrapError wraps storage errors to model errors.
// It converts context.Canceled and context.DeadlineExceeded to ErrCanceled.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsCanceled(err) {
		return ErrCanceled
	}
	return err
}

// IsCanceled returns true if the error is due to context cancellation or deadline exceeded.
// It checks both direct context errors and wrapped errors (e.g., from MongoDB driver).
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrCanceled) {
		return true
	}
	// Check for wrapped context errors (e.g., from MongoDB driver)
	errStr := err.Error()
	return strings.Contains(errStr, "context canceled") || strings.Contains(errStr, "context deadline exceeded")
}
