package response

import (
	"net/http"
)

// Response represents the standard API response structure
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// ErrorInfo represents error details in the response
type ErrorInfo struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// Meta represents metadata for paginated responses
type Meta struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// --- Error Code Constants ---

// Common error codes
const (
	// Client errors (4xx)
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeUnprocessableEntity = "UNPROCESSABLE_ENTITY"
	ErrCodeTooManyRequests     = "TOO_MANY_REQUESTS"
	ErrCodeMissingToken        = "MISSING_TOKEN"
	ErrCodeInvalidToken        = "INVALID_TOKEN"

	// Server errors (5xx)
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"

	// Storefront errors
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeTokenExpired        = "TOKEN_EXPIRED"
	ErrCodeLimitExceeded       = "LIMIT_EXCEEDED"
	ErrCodeSelectionIncomplete = "SELECTION_INCOMPLETE"
	ErrCodeSubmitInFlight      = "SUBMIT_IN_FLIGHT"
	ErrCodeCheckoutFailed      = "CHECKOUT_FAILED"
	ErrCodeAttemptNotFound     = "ATTEMPT_NOT_FOUND"
	ErrCodeInvalidTransition   = "INVALID_TRANSITION"
	ErrCodeUpstreamError       = "UPSTREAM_ERROR"
)

// --- HTTP Status Code Mapping ---

// ErrorCodeToHTTPStatus maps error codes to HTTP status codes
var ErrorCodeToHTTPStatus = map[string]int{
	ErrCodeBadRequest:          http.StatusBadRequest,
	ErrCodeUnauthorized:        http.StatusUnauthorized,
	ErrCodeMissingToken:        http.StatusUnauthorized,
	ErrCodeInvalidToken:        http.StatusUnauthorized,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeUnprocessableEntity: http.StatusUnprocessableEntity,
	ErrCodeTooManyRequests:     http.StatusTooManyRequests,
	ErrCodeInternalError:       http.StatusInternalServerError,
	ErrCodeServiceUnavailable:  http.StatusServiceUnavailable,
	ErrCodeValidationFailed:    http.StatusBadRequest,
	ErrCodeTokenExpired:        http.StatusUnauthorized,
	ErrCodeLimitExceeded:       http.StatusConflict,
	ErrCodeSelectionIncomplete: http.StatusUnprocessableEntity,
	ErrCodeSubmitInFlight:      http.StatusConflict,
	ErrCodeCheckoutFailed:      http.StatusPaymentRequired,
	ErrCodeAttemptNotFound:     http.StatusNotFound,
	ErrCodeInvalidTransition:   http.StatusConflict,
	ErrCodeUpstreamError:       http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status code for an error code
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeToHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// --- Response Builders ---

// Success creates a success response with data
func Success(data interface{}) *Response {
	return &Response{
		Success: true,
		Data:    data,
	}
}

// Error creates an error response
func Error(code string, message string) *Response {
	return &Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// ErrorWithDetails creates an error response with additional details
func ErrorWithDetails(code string, message string, details map[string]string) *Response {
	return &Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// Paginated creates a paginated success response. A non-positive perPage
// reports a single page.
func Paginated(data interface{}, page, perPage int, total int64) *Response {
	totalPages := 1
	if perPage > 0 {
		totalPages = int((total + int64(perPage) - 1) / int64(perPage))
	}

	return &Response{
		Success: true,
		Data:    data,
		Meta: &Meta{
			Page:       page,
			PerPage:    perPage,
			Total:      total,
			TotalPages: totalPages,
		},
	}
}

// --- Common Error Responses ---

// BadRequest creates a bad request error response
func BadRequest(message string) *Response {
	return Error(ErrCodeBadRequest, message)
}

// Unauthorized creates an unauthorized error response
func Unauthorized(message string) *Response {
	if message == "" {
		message = "Authentication required"
	}
	return Error(ErrCodeUnauthorized, message)
}

// NotFound creates a not found error response
func NotFound(message string) *Response {
	if message == "" {
		message = "Resource not found"
	}
	return Error(ErrCodeNotFound, message)
}

// InternalError creates an internal server error response
func InternalError(message string) *Response {
	if message == "" {
		message = "An internal error occurred"
	}
	return Error(ErrCodeInternalError, message)
}

// ValidationFailed creates a validation error response with field details
func ValidationFailed(details map[string]string) *Response {
	return ErrorWithDetails(ErrCodeValidationFailed, "Validation failed", details)
}

// TokenExpired creates the response telling the client to log in again
func TokenExpired(message string) *Response {
	if message == "" {
		message = "Session expired, please log in again"
	}
	return Error(ErrCodeTokenExpired, message)
}

// LimitExceeded creates the response for a quantity over the per-ticket cap
func LimitExceeded(message string) *Response {
	if message == "" {
		message = "Ticket limit exceeded"
	}
	return Error(ErrCodeLimitExceeded, message)
}

// SubmitInFlight creates the response for a duplicate checkout submission
func SubmitInFlight(message string) *Response {
	if message == "" {
		message = "A checkout for this item is already in progress"
	}
	return Error(ErrCodeSubmitInFlight, message)
}

// CheckoutFailed creates a checkout failure response. Details carry the
// failure reason and whether the user may submit again.
func CheckoutFailed(message string, details map[string]string) *Response {
	if message == "" {
		message = "Checkout failed"
	}
	return ErrorWithDetails(ErrCodeCheckoutFailed, message, details)
}

// UpstreamError creates the response for an unreachable or failing backend
func UpstreamError(message string) *Response {
	if message == "" {
		message = "Upstream service error"
	}
	return Error(ErrCodeUpstreamError, message)
}

// TooManyRequests creates a rate limit error response
func TooManyRequests(message string) *Response {
	if message == "" {
		message = "Too many requests, please try again later"
	}
	return Error(ErrCodeTooManyRequests, message)
}
