package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	dErrors "covera/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("validation includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeValidation, "policy name is required"))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "validation" {
			t.Fatalf("expected error code validation, got %q", body["error"])
		}
		if body["error_description"] != "policy name is required" {
			t.Fatalf("expected error_description for validation errors")
		}
	})

	t.Run("status mapping", func(t *testing.T) {
		cases := map[dErrors.Code]int{
			dErrors.CodeNotFound:          http.StatusNotFound,
			dErrors.CodeForbidden:         http.StatusForbidden,
			dErrors.CodeUnauthorized:      http.StatusUnauthorized,
			dErrors.CodeAlreadyPurchased:  http.StatusConflict,
			dErrors.CodeDuplicateClaim:    http.StatusConflict,
			dErrors.CodeAlreadySettled:    http.StatusConflict,
			dErrors.CodeInsufficientFunds: http.StatusPaymentRequired,
		}
		for code, want := range cases {
			w := httptest.NewRecorder()
			WriteError(w, dErrors.New(code, "x"))
			if w.Code != want {
				t.Errorf("code %s: expected status %d, got %d", code, want, w.Code)
			}
		}
	})
}
