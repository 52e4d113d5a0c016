package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/platinummonkey/sitepass/pkg/access"
)

// RetryAfterSeconds is advertised on 503 responses for lock contention
const RetryAfterSeconds = 1

// Error codes for failures outside the access taxonomy
const (
	CodeBadRequest       = "bad_request"
	CodeUnauthorized     = "unauthorized"
	CodeRateLimited      = "rate_limited"
	CodeInternal         = "internal"
	CodeTimeout          = "timeout"
	CodeMethodNotAllowed = "method_not_allowed"
)

// ErrorBody is the payload inside every error response
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorCode writes a JSON error response with an explicit code
func WriteErrorCode(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// StatusForKind maps an access error kind to its HTTP status
func StatusForKind(kind access.Kind) int {
	switch kind {
	case access.KindInvalidArgument:
		return http.StatusBadRequest
	case access.KindForbidden, access.KindNotAMember, access.KindOutOfScope, access.KindInsufficientAccessLevel:
		return http.StatusForbidden
	case access.KindNotFound:
		return http.StatusNotFound
	case access.KindInvalidTransition, access.KindDuplicateInvitation, access.KindLastAdmin, access.KindAlreadyMember:
		return http.StatusConflict
	case access.KindBusy, access.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteAccessError writes err using the access error taxonomy.
// Storage details are never echoed back for unavailable errors.
func WriteAccessError(w http.ResponseWriter, err error) {
	kind := access.KindOf(err)
	status := StatusForKind(kind)

	message := string(kind)
	var e *access.Error
	if errors.As(err, &e) && e.Msg != "" {
		message = e.Msg
	}

	switch kind {
	case access.KindBusy:
		w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
		message = "resource is busy, retry shortly"
	case access.KindUnavailable:
		message = "service unavailable"
	}
	WriteErrorCode(w, status, string(kind), message)
}

// WriteValidationError writes a validation error response (400 Bad Request)
func WriteValidationError(w http.ResponseWriter, message string) {
	WriteErrorCode(w, http.StatusBadRequest, string(access.KindInvalidArgument), message)
}

// WriteBadRequest writes a bad request error (400)
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorCode(w, http.StatusBadRequest, CodeBadRequest, message)
}

// WriteUnauthorized writes an unauthorized error (401)
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorCode(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// WriteNotFoundError writes a not found error response (404 Not Found)
func WriteNotFoundError(w http.ResponseWriter, message string) {
	WriteErrorCode(w, http.StatusNotFound, string(access.KindNotFound), message)
}

// WriteTooManyRequests writes a rate limit error (429)
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
	WriteErrorCode(w, http.StatusTooManyRequests, CodeRateLimited, message)
}

// WriteInternalError writes an internal server error response (500 Internal Server Error)
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteErrorCode(w, http.StatusInternalServerError, CodeInternal, err.Error())
}

// WriteCreated writes a successful creation response (201 Created) with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}
