package service

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout marks a call that hit its configured deadline. It is wrapped
	// inside the operation error so callers can tell it apart from HTTP failures.
	ErrTimeout = errors.New("request timed out")

	// ErrMissingCredentials is returned when no client id/secret is configured
	ErrMissingCredentials = errors.New("provider credentials not configured")

	// ErrInvalidConfig wraps provider configuration validation failures
	ErrInvalidConfig = errors.New("invalid provider configuration")

	// ErrConnectionRequired is returned by fulfillment actions attempted before Connect
	ErrConnectionRequired = errors.New("fulfillment platform not connected")

	// ErrRealPathUnavailable is returned when no real distributor is wired
	ErrRealPathUnavailable = errors.New("real distribution path unavailable")

	// ErrShipmentNotFound is returned for unknown shipment ids
	ErrShipmentNotFound = errors.New("shipment not found")

	// ErrInvalidTransition is returned when a status change is not allowed
	ErrInvalidTransition = errors.New("invalid shipment status transition")

	// ErrShipmentBusy is returned when a shipment is already being processed
	ErrShipmentBusy = errors.New("shipment is already processing")

	// ErrSaleNotFound is returned for unknown sale ids
	ErrSaleNotFound = errors.New("sale not found")

	// ErrInvalidSignature is returned when an inbound webhook signature does not verify
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrNotifierDisconnected is returned when WhatsApp is not connected
	ErrNotifierDisconnected = errors.New("WhatsApp client not connected")
)

// providerFailure carries the HTTP details of a failed provider call
type providerFailure struct {
	StatusCode int
	Body       string
	Err        error
}

func (f providerFailure) describe(op string) string {
	switch {
	case f.StatusCode != 0 && f.Body != "":
		return fmt.Sprintf("%s: %d - %s", op, f.StatusCode, f.Body)
	case f.StatusCode != 0:
		return fmt.Sprintf("%s: %d", op, f.StatusCode)
	case f.Err != nil:
		return fmt.Sprintf("%s: %v", op, f.Err)
	default:
		return op
	}
}

// AuthError is returned when the OAuth token exchange fails
type AuthError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	return providerFailure{e.StatusCode, e.Body, e.Err}.describe("Inter authentication failed")
}

func (e *AuthError) Unwrap() error { return e.Err }

// ChargeCreationError is returned when a charge cannot be created
type ChargeCreationError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *ChargeCreationError) Error() string {
	return providerFailure{e.StatusCode, e.Body, e.Err}.describe("failed to create Inter charge")
}

func (e *ChargeCreationError) Unwrap() error { return e.Err }

// StatusCheckError is returned when a charge status query fails
type StatusCheckError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *StatusCheckError) Error() string {
	return providerFailure{e.StatusCode, e.Body, e.Err}.describe("failed to check Inter charge status")
}

func (e *StatusCheckError) Unwrap() error { return e.Err }

// PersistenceError is returned when a store write fails
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist %s: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
