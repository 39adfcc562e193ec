package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	id "covera/pkg/domain"
	"covera/pkg/requestcontext"
)

// TokenValidator defines the interface for validating bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (id.PrincipalID, error)
}

// RequireAuth validates the bearer token and injects the caller principal
// into the request context. Every domain operation needs a principal.
func RequireAuth(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			principal, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithPrincipal(ctx, principal)))
		})
	}
}

// AttachedFunds parses the payment accompanying an operation from the
// X-Attached-Funds header into the request context. Absent means zero.
func AttachedFunds(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-Attached-Funds")
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		amount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || amount < 0 {
			http.Error(w, "invalid X-Attached-Funds header", http.StatusBadRequest)
			return
		}
		ctx := requestcontext.WithAttachedFunds(r.Context(), id.Units(amount))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdminToken guards operational endpoints with a bcrypt-hashed token.
func RequireAdminToken(tokenHash string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			if tokenHash == "" || token == "" ||
				bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)) != nil {
				logger.WarnContext(r.Context(), "admin token rejected",
					"request_id", requestcontext.RequestID(r.Context()),
				)
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
