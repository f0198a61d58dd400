// Package errors: error types shared across the sync service.
// Standard Go error style: value receivers, Unwrap for wrapped causes.
package errors

import "fmt"

// APIError: an error from an upstream API call (YouTube Data API).
type APIError struct {
	Operation  string // API operation in flight
	StatusCode int    // HTTP status code (0 for network errors)
	Err        error  // cause
}

func (e APIError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("api error operation=%s status=%d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("api error operation=%s status=%d: %v", e.Operation, e.StatusCode, e.Err)
}

func (e APIError) Unwrap() error { return e.Err }

// NewAPIError: creates an API error.
func NewAPIError(operation string, statusCode int, cause error) *APIError {
	return &APIError{
		Operation:  operation,
		StatusCode: statusCode,
		Err:        cause,
	}
}

// QuotaRefusedError: an operation or job was refused by the quota governor.
type QuotaRefusedError struct {
	Operation string // operation kind or job id
	Cost      int64  // units the caller asked for
	Remaining int64  // units left in the daily budget
	Reason    string // refusal reason (budget, slice, emergency)
}

func (e QuotaRefusedError) Error() string {
	return fmt.Sprintf("quota refused operation=%s cost=%d remaining=%d: %s",
		e.Operation, e.Cost, e.Remaining, e.Reason)
}

// NewQuotaRefusedError: creates a quota refusal error.
func NewQuotaRefusedError(operation string, cost, remaining int64, reason string) *QuotaRefusedError {
	return &QuotaRefusedError{
		Operation: operation,
		Cost:      cost,
		Remaining: remaining,
		Reason:    reason,
	}
}

// LedgerError: the usage ledger (Valkey counter) could not be read or written.
// Callers treat this as fail-closed: no ledger, no quota approval.
type LedgerError struct {
	Operation string // incr, read, reset
	Key       string
	Err       error
}

func (e LedgerError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("ledger error operation=%s key=%s", e.Operation, e.Key)
	}
	return fmt.Sprintf("ledger error operation=%s key=%s: %v", e.Operation, e.Key, e.Err)
}

func (e LedgerError) Unwrap() error { return e.Err }

// NewLedgerError: creates a ledger error.
func NewLedgerError(operation, key string, cause error) *LedgerError {
	return &LedgerError{
		Operation: operation,
		Key:       key,
		Err:       cause,
	}
}

// CacheError: an error from a cache operation.
type CacheError struct {
	Operation string // get, set, delete
	Key       string // cache key
	Err       error  // cause
}

func (e CacheError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("cache error operation=%s key=%s", e.Operation, e.Key)
	}
	return fmt.Sprintf("cache error operation=%s key=%s: %v", e.Operation, e.Key, e.Err)
}

func (e CacheError) Unwrap() error { return e.Err }

// NewCacheError: creates a cache error.
func NewCacheError(message, operation, key string, cause error) *CacheError {
	return &CacheError{
		Operation: operation,
		Key:       key,
		Err:       cause,
	}
}

// PersistenceError: a database read or write failed.
type PersistenceError struct {
	Entity    string // table or model name
	Operation string // insert, query, update
	Err       error
}

func (e PersistenceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("persistence error entity=%s operation=%s", e.Entity, e.Operation)
	}
	return fmt.Sprintf("persistence error entity=%s operation=%s: %v", e.Entity, e.Operation, e.Err)
}

func (e PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError: creates a persistence error.
func NewPersistenceError(entity, operation string, cause error) *PersistenceError {
	return &PersistenceError{
		Entity:    entity,
		Operation: operation,
		Err:       cause,
	}
}

// CircuitOpenError: the upstream circuit breaker is open.
type CircuitOpenError struct {
	RetryAfterMs int64
}

func (e CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit breaker open retry_after_ms=%d", e.RetryAfterMs)
}

// ValidationError: input validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("validation error field=%s: %s", e.Field, e.Message)
}

// NewValidationError: creates a validation error.
func NewValidationError(message, field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// ServiceError: internal service logic error.
type ServiceError struct {
	Service   string // service name
	Operation string // operation name
	Err       error  // cause
}

func (e ServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("service error service=%s operation=%s", e.Service, e.Operation)
	}
	return fmt.Sprintf("service error service=%s operation=%s: %v", e.Service, e.Operation, e.Err)
}

func (e ServiceError) Unwrap() error { return e.Err }

// NewServiceError: creates a service error.
func NewServiceError(service, operation string, cause error) *ServiceError {
	return &ServiceError{
		Service:   service,
		Operation: operation,
		Err:       cause,
	}
}
