package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"covera/internal/auth"
	"covera/pkg/testutil"
)

func TestRouterScaffold(t *testing.T) {
	testutil.Given(t, "a router with no admin token configured", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		router := NewRouter(Deps{
			Logger: logger,
			Tokens: auth.NewTokenService("scaffold-signing-key", "covera"),
		})

		testutil.When(t, "calling GET /healthz", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			testutil.Then(t, "it should respond ok", func(t *testing.T) {
				if rec.Code != http.StatusOK {
					t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
				}
			})
		})

		testutil.When(t, "calling GET /policies without credentials", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/policies", nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			testutil.Then(t, "it should respond unauthorized", func(t *testing.T) {
				if rec.Code != http.StatusUnauthorized {
					t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
				}
			})
		})

		testutil.When(t, "calling GET /admin/audit", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/audit", nil)
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			testutil.Then(t, "it should not mount the admin surface", func(t *testing.T) {
				if rec.Code != http.StatusNotFound {
					t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
				}
			})
		})
	})
}
