/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package errors provides structured error handling for Strata.

Every failure surfaced by the value system, the catalog and the DDL
commands is a *StrataError carrying:
  - a numeric error code for programmatic handling
  - a category (Data, Catalog, Auth, Storage, Transaction, Resource)
  - a user-facing message, optional detail and hint
  - an optional cause for root cause analysis
  - a SQLSTATE for driver-level reporting

Error Categories:
  - DataError: arithmetic and conversion failures on values
  - CatalogError: schema object lookup and lifecycle failures
  - AuthError: rights checks
  - StorageError: persistence failures
  - TransactionError: lock and transaction state failures
  - ResourceError: allocation limits
*/
package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a unique error identifier.
type ErrorCode int

const (
	// Data errors (1000-1999)
	ErrCodeData              ErrorCode = 1000
	ErrCodeNumericOverflow   ErrorCode = 1001
	ErrCodeDivisionByZero    ErrorCode = 1002
	ErrCodeInvalidValue      ErrorCode = 1003
	ErrCodeSequenceExhausted ErrorCode = 1004

	// Catalog errors (2000-2999)
	ErrCodeCatalog             ErrorCode = 2000
	ErrCodeObjectNotFound      ErrorCode = 2001
	ErrCodeObjectAlreadyExists ErrorCode = 2002
	ErrCodeCannotDrop          ErrorCode = 2003
	ErrCodeSchemaNotFound      ErrorCode = 2004

	// Auth errors (4000-4999)
	ErrCodeAuth             ErrorCode = 4000
	ErrCodeAuthFailed       ErrorCode = 4001
	ErrCodePermissionDenied ErrorCode = 4002
	ErrCodeAdminRequired    ErrorCode = 4003

	// Storage errors (5000-5999)
	ErrCodeStorage      ErrorCode = 5000
	ErrCodeWALCorrupted ErrorCode = 5001
	ErrCodeIOError      ErrorCode = 5003

	// Transaction errors (8000-8999)
	ErrCodeTransaction ErrorCode = 8000
	ErrCodeTxNotActive ErrorCode = 8001
	ErrCodeLockTimeout ErrorCode = 8002
	ErrCodeTxClosed    ErrorCode = 8003

	// Resource errors (9000-9999)
	ErrCodeResource    ErrorCode = 9000
	ErrCodeOutOfMemory ErrorCode = 9001
	ErrCodeInternal    ErrorCode = 9999
)

// Category represents the error category.
type Category string

const (
	CategoryData        Category = "DATA"
	CategoryCatalog     Category = "CATALOG"
	CategoryAuth        Category = "AUTH"
	CategoryStorage     Category = "STORAGE"
	CategoryTransaction Category = "TRANSACTION"
	CategoryResource    Category = "RESOURCE"
)

// StrataError represents a structured error in Strata.
type StrataError struct {
	Code     ErrorCode
	Category Category
	Message  string
	Detail   string
	Hint     string
	Cause    error
}

// Error implements the error interface.
func (e *StrataError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("ERROR %d (%s): %s - %s", e.Code, e.Category, e.Message, e.Detail)
	}
	return fmt.Sprintf("ERROR %d (%s): %s", e.Code, e.Category, e.Message)
}

// Unwrap returns the underlying cause.
func (e *StrataError) Unwrap() error {
	return e.Cause
}

// Is matches another *StrataError by code, so errors.Is(err, ObjectNotFound("", ""))
// style comparisons work across instances.
func (e *StrataError) Is(target error) bool {
	t, ok := target.(*StrataError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// SQLSTATE returns the SQLSTATE code for this error.
func (e *StrataError) SQLSTATE() SQLSTATE {
	return ToSQLSTATE(e.Code)
}

// UserMessage returns a user-friendly error message.
func (e *StrataError) UserMessage() string {
	msg := fmt.Sprintf("ERROR: %s", e.Message)
	if e.Detail != "" {
		msg += fmt.Sprintf(" (%s)", e.Detail)
	}
	if e.Hint != "" {
		msg += fmt.Sprintf("\nHINT: %s", e.Hint)
	}
	return msg
}

// WithDetail adds detail to the error.
func (e *StrataError) WithDetail(detail string) *StrataError {
	e.Detail = detail
	return e
}

// WithHint adds a hint to the error.
func (e *StrataError) WithHint(hint string) *StrataError {
	e.Hint = hint
	return e
}

// WithCause adds a cause to the error.
func (e *StrataError) WithCause(cause error) *StrataError {
	e.Cause = cause
	return e
}

// ============================================================================
// Data Error Constructors
// ============================================================================

// NumericOverflow is returned when narrowing a result would lose information.
func NumericOverflow(targetType string) *StrataError {
	return &StrataError{
		Code:     ErrCodeNumericOverflow,
		Category: CategoryData,
		Message:  fmt.Sprintf("numeric value out of range for type %s", targetType),
		Hint:     "Use a wider type or disable strict_overflow",
	}
}

// DivisionByZero identifies the expression whose divisor was zero.
func DivisionByZero(expression string) *StrataError {
	return &StrataError{
		Code:     ErrCodeDivisionByZero,
		Category: CategoryData,
		Message:  "division by zero",
		Detail:   expression,
	}
}

// InvalidValue creates an error for values that cannot be parsed or converted.
func InvalidValue(field, reason string) *StrataError {
	return &StrataError{
		Code:     ErrCodeInvalidValue,
		Category: CategoryData,
		Message:  fmt.Sprintf("invalid value for '%s'", field),
		Detail:   reason,
	}
}

// SequenceExhausted is returned once a sequence reached its maximum value.
func SequenceExhausted(name string, max int64) *StrataError {
	return &StrataError{
		Code:     ErrCodeSequenceExhausted,
		Category: CategoryData,
		Message:  fmt.Sprintf("sequence %s has run out of numbers", name),
		Detail:   fmt.Sprintf("max value: %d", max),
	}
}

// ============================================================================
// Catalog Error Constructors
// ============================================================================

// ObjectNotFound creates an error for a schema object that does not resolve.
func ObjectNotFound(kind, name string) *StrataError {
	return &StrataError{
		Code:     ErrCodeObjectNotFound,
		Category: CategoryCatalog,
		Message:  fmt.Sprintf("%s not found: %s", kind, name),
		Hint:     "Use IF EXISTS to ignore missing objects",
	}
}

// ObjectAlreadyExists creates an error for a name that is already taken.
func ObjectAlreadyExists(kind, name string) *StrataError {
	return &StrataError{
		Code:     ErrCodeObjectAlreadyExists,
		Category: CategoryCatalog,
		Message:  fmt.Sprintf("%s already exists: %s", kind, name),
	}
}

// CannotDrop creates an error for objects that may not be removed.
func CannotDrop(name string) *StrataError {
	return &StrataError{
		Code:     ErrCodeCannotDrop,
		Category: CategoryCatalog,
		Message:  fmt.Sprintf("cannot drop %s", name),
	}
}

// SchemaNotFound creates an error for a missing schema.
func SchemaNotFound(name string) *StrataError {
	return &StrataError{
		Code:     ErrCodeSchemaNotFound,
		Category: CategoryCatalog,
		Message:  fmt.Sprintf("schema not found: %s", name),
	}
}

// ============================================================================
// Auth Error Constructors
// ============================================================================

// AuthenticationFailed creates an error for failed authentication.
func AuthenticationFailed() *StrataError {
	return &StrataError{
		Code:     ErrCodeAuthFailed,
		Category: CategoryAuth,
		Message:  "authentication failed",
		Hint:     "Check your username and password",
	}
}

// PermissionDenied creates an error for a failed rights check on an object.
func PermissionDenied(resource string) *StrataError {
	return &StrataError{
		Code:     ErrCodePermissionDenied,
		Category: CategoryAuth,
		Message:  "permission denied",
		Detail:   fmt.Sprintf("Access to '%s' is not allowed", resource),
		Hint:     "Contact your administrator to request access",
	}
}

// AdminRequired creates an error for operations reserved to administrators.
func AdminRequired(user string) *StrataError {
	return &StrataError{
		Code:     ErrCodeAdminRequired,
		Category: CategoryAuth,
		Message:  "admin rights required",
		Detail:   fmt.Sprintf("User: %s", user),
	}
}

// ============================================================================
// Storage Error Constructors
// ============================================================================

// NewStorageError creates a new storage error.
func NewStorageError(message string) *StrataError {
	return &StrataError{
		Code:     ErrCodeStorage,
		Category: CategoryStorage,
		Message:  message,
	}
}

// WALCorrupted creates an error for corrupted WAL.
func WALCorrupted(detail string) *StrataError {
	return &StrataError{
		Code:     ErrCodeWALCorrupted,
		Category: CategoryStorage,
		Message:  "write-ahead log corrupted",
		Detail:   detail,
		Hint:     "Restore from backup or contact support",
	}
}

// ============================================================================
// Transaction Error Constructors
// ============================================================================

// TransactionNotActive creates an error for operations requiring an active transaction.
func TransactionNotActive() *StrataError {
	return &StrataError{
		Code:     ErrCodeTxNotActive,
		Category: CategoryTransaction,
		Message:  "no active transaction",
	}
}

// LockTimeout is returned when an object lock could not be acquired in time.
func LockTimeout(object string) *StrataError {
	return &StrataError{
		Code:     ErrCodeLockTimeout,
		Category: CategoryTransaction,
		Message:  "timeout trying to lock object",
		Detail:   object,
		Hint:     "Another session holds the lock; commit or roll it back",
	}
}

// SessionClosed creates an error for use of a closed session.
func SessionClosed() *StrataError {
	return &StrataError{
		Code:     ErrCodeTxClosed,
		Category: CategoryTransaction,
		Message:  "session is closed",
	}
}

// ============================================================================
// Resource Error Constructors
// ============================================================================

// OutOfMemory wraps an allocation failure with the requested size.
func OutOfMemory(requested int64) *StrataError {
	return &StrataError{
		Code:     ErrCodeOutOfMemory,
		Category: CategoryResource,
		Message:  "out of memory",
		Detail:   fmt.Sprintf("requested: %d", requested),
	}
}

// InternalError creates an error for invariant violations inside the engine.
func InternalError(message string) *StrataError {
	return &StrataError{
		Code:     ErrCodeInternal,
		Category: CategoryResource,
		Message:  message,
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

// GetCode returns the error code of the first *StrataError in err's chain, or 0.
func GetCode(err error) ErrorCode {
	var e *StrataError
	if stderrors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// IsCatalogError checks if an error is a catalog error.
func IsCatalogError(err error) bool {
	var e *StrataError
	if stderrors.As(err, &e) {
		return e.Category == CategoryCatalog
	}
	return false
}

// IsAuthError checks if an error is an auth error.
func IsAuthError(err error) bool {
	var e *StrataError
	if stderrors.As(err, &e) {
		return e.Category == CategoryAuth
	}
	return false
}

// FormatError formats an error for user display.
func FormatError(err error) string {
	var e *StrataError
	if stderrors.As(err, &e) {
		return e.UserMessage()
	}
	return fmt.Sprintf("ERROR: %v", err)
}

// FormatErrorWithSQLSTATE formats an error with SQLSTATE for driver use.
func FormatErrorWithSQLSTATE(err error) string {
	var e *StrataError
	if stderrors.As(err, &e) {
		return fmt.Sprintf("[%s] %s", e.SQLSTATE(), e.UserMessage())
	}
	return fmt.Sprintf("[%s] ERROR: %v", SQLStateInternal, err)
}
