// Package httputil maps domain errors onto JSON HTTP responses.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "covera/pkg/domain-errors"
)

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// statusFor maps domain error codes to HTTP statuses. Unknown codes are
// treated as internal errors.
func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeBadRequest, dErrors.CodeInvariantViolation:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeInsufficientFunds:
		return http.StatusPaymentRequired
	case dErrors.CodeForbidden:
		return http.StatusForbidden
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict, dErrors.CodeAlreadyPurchased,
		dErrors.CodeDuplicateClaim, dErrors.CodeAlreadySettled:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err as a JSON error response. Internal errors omit the
// description so infrastructure details never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := errorBody{Error: string(code)}
	if code != dErrors.CodeInternal {
		body.Description = dErrors.MessageOf(err)
	}
	WriteJSON(w, statusFor(code), body)
}

// WriteJSON renders v as JSON with the given status.
// DecodeJSON decodes the request body into T. On malformed input it writes a
// bad-request error and reports false; the caller should return immediately.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request) (*T, bool) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		WriteError(w, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	return &v, true
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
