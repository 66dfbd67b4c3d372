// Package handlers provides the localhost REST API the desktop shell
// exposes to its UI: scan history, favorites, offline product lookups,
// auth, sync, and export.
package handlers

import (
	"net/http"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/errors"
)

// statusFor maps coded application errors to HTTP status codes.
func statusFor(err error) int {
	switch errors.CodeOf(err) {
	case errors.ErrInvalid, errors.ErrValidation, errors.ErrBarcodeInvalid, errors.ErrBarcodeUnsupported:
		return http.StatusBadRequest
	case errors.ErrNotFound, errors.ErrCacheNotFound, errors.ErrHistoryNotFound:
		return http.StatusNotFound
	case errors.ErrAuthFailed, errors.ErrAuthNoSession, errors.ErrAuthSessionExpired:
		return http.StatusUnauthorized
	case errors.ErrInvalidPassword:
		return http.StatusUnauthorized
	case errors.ErrBackendRateLimit:
		return http.StatusTooManyRequests
	case errors.ErrBackendUnavailable:
		return http.StatusBadGateway
	case errors.ErrSyncBusy:
		return http.StatusConflict
	case errors.ErrSyncNotConfigured, errors.ErrBackupNotConfigured:
		return http.StatusPreconditionFailed
	case errors.ErrImportFailed, errors.ErrCorruptedArchive:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
