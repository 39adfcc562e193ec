package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"covera/internal/claim/models"
	id "covera/pkg/domain"
	dErrors "covera/pkg/domain-errors"
	"covera/pkg/platform/httputil"
	"covera/pkg/requestcontext"
)

// Service defines the claim operations the handler exposes.
type Service interface {
	FileClaim(ctx context.Context, policyID id.PolicyID, req *models.FileClaimRequest) (*models.Claim, error)
	SettleClaim(ctx context.Context, policyID id.PolicyID, claimID id.ClaimID) (*models.Claim, error)
	GetClaims(ctx context.Context, policyID id.PolicyID) ([]*models.Claim, error)
	GetClaim(ctx context.Context, policyID id.PolicyID, claimID id.ClaimID) (*models.Claim, error)
}

// Handler wires claim endpoints to the claim service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a claim handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts claim endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/policies/{policyID}/claims", h.HandleFile)
	r.Get("/policies/{policyID}/claims", h.HandleList)
	r.Get("/policies/{policyID}/claims/{claimID}", h.HandleGet)
	r.Post("/policies/{policyID}/claims/{claimID}/settle", h.HandleSettle)
}

// HandleFile handles POST /policies/{policyID}/claims requests.
func (h *Handler) HandleFile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	policyID, ok := policyIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[models.FileClaimRequest](w, r)
	if !ok {
		return
	}

	claim, err := h.service.FileClaim(ctx, policyID, req)
	if err != nil {
		h.logError(ctx, "claim filing failed", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "claim filed",
		"request_id", requestcontext.RequestID(ctx),
		"policy_id", policyID,
		"claim_id", claim.ID,
		"claimant", claim.Claimant,
	)
	httputil.WriteJSON(w, http.StatusCreated, claim)
}

// HandleList handles GET /policies/{policyID}/claims requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	policyID, ok := policyIDParam(w, r)
	if !ok {
		return
	}

	claims, err := h.service.GetClaims(ctx, policyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if claims == nil {
		claims = []*models.Claim{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Claims: claims})
}

// HandleGet handles GET /policies/{policyID}/claims/{claimID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	policyID, claimID, ok := claimParams(w, r)
	if !ok {
		return
	}

	claim, err := h.service.GetClaim(ctx, policyID, claimID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, claim)
}

// HandleSettle handles POST /policies/{policyID}/claims/{claimID}/settle requests.
func (h *Handler) HandleSettle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	policyID, claimID, ok := claimParams(w, r)
	if !ok {
		return
	}

	claim, err := h.service.SettleClaim(ctx, policyID, claimID)
	if err != nil {
		h.logError(ctx, "claim settlement failed", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "claim settled",
		"request_id", requestcontext.RequestID(ctx),
		"policy_id", policyID,
		"claim_id", claimID,
		"claimant", claim.Claimant,
		"amount", claim.Amount,
	)
	httputil.WriteJSON(w, http.StatusOK, claim)
}

type listResponse struct {
	Claims []*models.Claim `json:"claims"`
}

func policyIDParam(w http.ResponseWriter, r *http.Request) (id.PolicyID, bool) {
	raw := chi.URLParam(r, "policyID")
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed < 1 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid policy id"))
		return 0, false
	}
	return id.PolicyID(parsed), true
}

func claimParams(w http.ResponseWriter, r *http.Request) (id.PolicyID, id.ClaimID, bool) {
	policyID, ok := policyIDParam(w, r)
	if !ok {
		return 0, 0, false
	}
	raw := chi.URLParam(r, "claimID")
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid claim id"))
		return 0, 0, false
	}
	return policyID, id.ClaimID(parsed), true
}

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}
