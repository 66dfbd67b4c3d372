// Package errors provides coded errors for bridging across the FFI boundary.
package errors

import "fmt"

// ErrorCode is a stable identifier the UI shells can branch on.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrDuplicate  ErrorCode = "DUPLICATE"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Database errors
	ErrDatabase   ErrorCode = "DATABASE_ERROR"
	ErrMigration  ErrorCode = "MIGRATION_FAILED"
	ErrConstraint ErrorCode = "CONSTRAINT_VIOLATION"

	// Local storage errors
	ErrStorageRead   ErrorCode = "STORAGE_READ_FAILED"
	ErrStorageWrite  ErrorCode = "STORAGE_WRITE_FAILED"
	ErrStorageDelete ErrorCode = "STORAGE_DELETE_FAILED"

	// Scan history / favorites errors
	ErrHistoryLoad     ErrorCode = "HISTORY_LOAD_FAILED"
	ErrHistoryPersist  ErrorCode = "HISTORY_PERSIST_FAILED"
	ErrHistoryNotFound ErrorCode = "HISTORY_ITEM_NOT_FOUND"

	// Offline cache errors
	ErrCacheWrite    ErrorCode = "CACHE_WRITE_FAILED"
	ErrCacheNotFound ErrorCode = "CACHE_ITEM_NOT_FOUND"

	// Barcode errors
	ErrBarcodeInvalid     ErrorCode = "BARCODE_INVALID"
	ErrBarcodeUnsupported ErrorCode = "BARCODE_UNSUPPORTED"

	// Authentication errors
	ErrAuthFailed         ErrorCode = "AUTH_FAILED"
	ErrAuthSessionExpired ErrorCode = "AUTH_SESSION_EXPIRED"
	ErrAuthNoSession      ErrorCode = "AUTH_NO_SESSION"

	// Backend errors
	ErrBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrBackendRequest     ErrorCode = "BACKEND_REQUEST_FAILED"
	ErrBackendRateLimit   ErrorCode = "BACKEND_RATE_LIMITED"

	// Sync errors
	ErrSyncNotConfigured ErrorCode = "SYNC_NOT_CONFIGURED"
	ErrSyncFailed        ErrorCode = "SYNC_FAILED"
	ErrSyncBusy          ErrorCode = "SYNC_IN_PROGRESS"
	ErrSyncAuthFailed    ErrorCode = "SYNC_AUTH_FAILED"
	ErrSyncTimeout       ErrorCode = "SYNC_TIMEOUT"

	// Export / backup errors
	ErrExportFailed        ErrorCode = "EXPORT_FAILED"
	ErrImportFailed        ErrorCode = "IMPORT_FAILED"
	ErrInvalidPassword     ErrorCode = "INVALID_PASSWORD"
	ErrCorruptedArchive    ErrorCode = "CORRUPTED_ARCHIVE"
	ErrCryptoFailed        ErrorCode = "CRYPTO_FAILED"
	ErrBackupFailed        ErrorCode = "BACKUP_FAILED"
	ErrBackupNotConfigured ErrorCode = "BACKUP_NOT_CONFIGURED"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error is of a specific code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// CodeOf extracts the error code, or ErrInternal for uncoded errors.
func CodeOf(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrInternal
}
