// Package server assembles the HTTP surface of the ledger: middleware
// chain, policy and claim routes, health, metrics, and the admin surface.
package server

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"covera/internal/auth"
	claimhandler "covera/internal/claim/handler"
	platformmetrics "covera/internal/platform/metrics"
	"covera/internal/platform/middleware"
	platformredis "covera/internal/platform/redis"
	policyhandler "covera/internal/policy/handler"
	policymodels "covera/internal/policy/models"
	id "covera/pkg/domain"
	dErrors "covera/pkg/domain-errors"
	auditmemory "covera/pkg/platform/audit/store/memory"
	"covera/pkg/platform/httputil"
)

const requestTimeout = 15 * time.Second

// StatsProvider reports registry volume for the admin surface.
type StatsProvider interface {
	Stats(ctx context.Context) (*policymodels.Stats, error)
}

// Deps carries everything the router needs. DB, Redis, AuditTrail, Stats,
// and AdminTokenHash are optional; their routes and checks are skipped when
// absent.
type Deps struct {
	Logger   *slog.Logger
	Policies policyhandler.Service
	Claims   claimhandler.Service
	Tokens   *auth.TokenService
	Metrics  *platformmetrics.Metrics
	Stats    StatsProvider

	DB             *sql.DB
	Redis          *platformredis.Client
	AuditTrail     *auditmemory.Store
	AdminTokenHash string
}

// NewRouter builds the full middleware chain and mounts every route.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(requestTimeout))
	if deps.Metrics != nil {
		r.Use(middleware.LatencyMiddleware(deps.Metrics))
	}

	r.Get("/healthz", healthHandler(deps.DB, deps.Redis))
	r.Method(http.MethodGet, "/metrics", platformmetrics.Handler())

	r.Group(func(api chi.Router) {
		api.Use(middleware.RequireAuth(deps.Tokens, deps.Logger))
		api.Use(middleware.AttachedFunds)
		api.Use(middleware.ContentTypeJSON)
		policyhandler.New(deps.Policies, deps.Logger).Register(api)
		claimhandler.New(deps.Claims, deps.Logger).Register(api)
	})

	if deps.AdminTokenHash != "" {
		r.Group(func(admin chi.Router) {
			admin.Use(middleware.RequireAdminToken(deps.AdminTokenHash, deps.Logger))
			if deps.AuditTrail != nil {
				admin.Get("/admin/audit", auditTrailHandler(deps.AuditTrail))
			}
			if deps.Stats != nil {
				admin.Get("/admin/stats", statsHandler(deps.Stats))
			}
			admin.Post("/admin/token", issueTokenHandler(deps.Tokens))
		})
	}
	return r
}

func healthHandler(db *sql.DB, redisClient *platformredis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "database unreachable"})
				return
			}
		}
		if redisClient != nil {
			if err := redisClient.Health(ctx); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "redis unreachable"})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func issueTokenHandler(tokens *auth.TokenService) http.HandlerFunc {
	type request struct {
		Principal string `json:"principal"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := httputil.DecodeJSON[request](w, r)
		if !ok {
			return
		}
		if req.Principal == "" {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "principal is required"))
			return
		}
		token, err := tokens.GenerateToken(id.PrincipalID(req.Principal), 24*time.Hour)
		if err != nil {
			httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token"))
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
	}
}

func statsHandler(stats StatsProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := stats.Stats(r.Context())
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, summary)
	}
}

func auditTrailHandler(trail *auditmemory.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := trail.ListRecent(r.Context(), 100)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
	}
}
