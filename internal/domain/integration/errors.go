package integration

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	// Tenant registry errors
	ErrTenantNotFound        = errors.New("integration: tenant not found")
	ErrTenantDisconnected    = errors.New("integration: tenant disconnected")
	ErrTenantNoCredential    = errors.New("integration: tenant has no access credential")
	ErrInvalidTenantDomain   = errors.New("integration: invalid tenant domain")
	ErrInvalidSyncTransition = errors.New("integration: invalid sync status transition")
	ErrTenantLeaseHeld       = errors.New("integration: tenant is already being synced")
	ErrTenantNotDue          = errors.New("integration: tenant is no longer due")

	// Entity errors
	ErrEntityNotFound     = errors.New("integration: entity not found")
	ErrInvalidUpstreamID  = errors.New("integration: invalid upstream id")
	ErrInvalidEntityType  = errors.New("integration: invalid entity type")
	ErrParentNotPersisted = errors.New("integration: parent record not persisted")

	// Webhook errors
	ErrInvalidSignature = errors.New("integration: invalid webhook signature")
	ErrMissingSignature = errors.New("integration: missing webhook signature")
	ErrTopicMismatch    = errors.New("integration: webhook topic header does not match route")
	ErrInvalidPayload   = errors.New("integration: invalid webhook payload")

	// Security gate errors
	ErrRateLimited  = errors.New("integration: rate limit exceeded")
	ErrUnauthorized = errors.New("integration: missing or invalid credential")
)

// ---------------------------------------------------------------------------
// Typed errors
// ---------------------------------------------------------------------------

// AuthError is returned when a request carries a missing or invalid credential.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %v", e.Reason, e.Err)
	}
	return "auth: " + e.Reason
}

func (e *AuthError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnauthorized
}

// NotFoundError is returned when a tenant or view cannot be resolved.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error {
	if e.Resource == "tenant" {
		return ErrTenantNotFound
	}
	return ErrEntityNotFound
}

// RateLimitError is returned when a sliding window is exhausted.
type RateLimitError struct {
	Key       string
	Remaining int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s", e.Key)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// ValidationError is returned when a payload lacks a required field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidPayload }

// UpstreamFetchError wraps a network failure or a non-2xx response from the platform.
type UpstreamFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *UpstreamFetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("upstream fetch %s: %v", e.URL, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

// UpsertError wraps a local-store write failure for a single record.
type UpsertError struct {
	Entity     EntityType
	UpstreamID string
	Err        error
}

func (e *UpsertError) Error() string {
	return fmt.Sprintf("upsert %s %s: %v", e.Entity, e.UpstreamID, e.Err)
}

func (e *UpsertError) Unwrap() error { return e.Err }

// InternalError is the catch-all for unexpected failures.
type InternalError struct {
	Op  string
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InternalError) Unwrap() error { return e.Err }
