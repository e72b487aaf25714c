package dto

import "net/http"

// Error codes carried in the "code" field of the error envelope
const (
	ErrCodeInternal       = "INTERNAL_ERROR"
	ErrCodeBadRequest     = "BAD_REQUEST"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeTopicMismatch  = "TOPIC_MISMATCH"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeInvalidToken   = "INVALID_TOKEN"
	ErrCodeTokenExpired   = "TOKEN_EXPIRED"
	ErrCodeInvalidSig     = "INVALID_SIGNATURE"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeTenantNotFound = "TENANT_NOT_FOUND"
	ErrCodeSyncInProgress = "SYNC_IN_PROGRESS"
	ErrCodeTooLarge       = "REQUEST_TOO_LARGE"
	ErrCodeRateLimited    = "RATE_LIMIT_EXCEEDED"
	ErrCodeUnavailable    = "SERVICE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:       http.StatusInternalServerError,
	ErrCodeBadRequest:     http.StatusBadRequest,
	ErrCodeValidation:     http.StatusBadRequest,
	ErrCodeTopicMismatch:  http.StatusBadRequest,
	ErrCodeUnauthorized:   http.StatusUnauthorized,
	ErrCodeInvalidToken:   http.StatusUnauthorized,
	ErrCodeTokenExpired:   http.StatusUnauthorized,
	ErrCodeInvalidSig:     http.StatusUnauthorized,
	ErrCodeNotFound:       http.StatusNotFound,
	ErrCodeTenantNotFound: http.StatusNotFound,
	ErrCodeSyncInProgress: http.StatusConflict,
	ErrCodeTooLarge:       http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:    http.StatusTooManyRequests,
	ErrCodeUnavailable:    http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status for an error code, 500 when unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
