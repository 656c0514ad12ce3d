package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/rostersync/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeValidationError    = "VALIDATION_ERROR"
	CodeRosterNotFound     = "ROSTER_NOT_FOUND"
	CodePlayerNotFound     = "PLAYER_NOT_FOUND"
	CodeGearChoiceNotFound = "GEAR_CHOICE_NOT_FOUND"
	CodeInternalError      = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status WriteError would use for err
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return &httpError{http.StatusBadRequest, APIError{CodeValidationError, ve.Message, ve.Field}}
	}

	switch {
	case errors.Is(err, model.ErrRosterNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodeRosterNotFound, Message: "Roster not found"}}
	case errors.Is(err, model.ErrPlayerNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodePlayerNotFound, Message: "Player not found"}}
	case errors.Is(err, model.ErrGearChoiceNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodeGearChoiceNotFound, Message: "Gear choice not found"}}
	default:
		return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
	}
}

// ToModelError maps a decoded error body back onto the model's sentinel
// errors, so clients can use errors.Is on API failures
func ToModelError(status int, body ErrorResponse) error {
	switch body.Error.Code {
	case CodeRosterNotFound:
		return model.ErrRosterNotFound
	case CodePlayerNotFound:
		return model.ErrPlayerNotFound
	case CodeGearChoiceNotFound:
		return model.ErrGearChoiceNotFound
	case CodeValidationError, CodeInvalidRequest:
		return model.NewValidationError(body.Error.Field, body.Error.Message)
	}
	if body.Error.Message != "" {
		return &httpError{status, body.Error}
	}
	return &httpError{status, APIError{Code: CodeInternalError, Message: http.StatusText(status)}}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidRequest, Message: message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Internal server error"}}
}
