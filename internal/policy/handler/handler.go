package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"covera/internal/policy/models"
	id "covera/pkg/domain"
	dErrors "covera/pkg/domain-errors"
	"covera/pkg/platform/httputil"
	"covera/pkg/requestcontext"
)

// Service defines the policy operations the handler exposes.
type Service interface {
	CreatePolicy(ctx context.Context, req *models.CreatePolicyRequest) (*models.Policy, error)
	UpdatePolicy(ctx context.Context, policyID id.PolicyID, req *models.UpdatePolicyRequest) (*models.Policy, error)
	DeletePolicy(ctx context.Context, policyID id.PolicyID) error
	PurchasePolicy(ctx context.Context, policyID id.PolicyID) error
	ListActivePolicies(ctx context.Context) ([]*models.Policy, error)
	GetPolicy(ctx context.Context, policyID id.PolicyID) (*models.Policy, error)
	ListPurchases(ctx context.Context) ([]id.PolicyID, error)
}

// Handler wires policy endpoints to the policy service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a policy handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts policy endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/policies", h.HandleCreate)
	r.Get("/policies", h.HandleList)
	r.Get("/policies/purchases", h.HandleListPurchases)
	r.Get("/policies/{policyID}", h.HandleGet)
	r.Put("/policies/{policyID}", h.HandleUpdate)
	r.Delete("/policies/{policyID}", h.HandleDelete)
	r.Post("/policies/{policyID}/purchase", h.HandlePurchase)
}

// HandleCreate handles POST /policies requests.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[models.CreatePolicyRequest](w, r)
	if !ok {
		return
	}

	policy, err := h.service.CreatePolicy(ctx, req)
	if err != nil {
		h.logError(ctx, "policy creation failed", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "policy created",
		"request_id", requestcontext.RequestID(ctx),
		"policy_id", policy.ID,
		"holder", policy.Holder,
	)
	httputil.WriteJSON(w, http.StatusCreated, policy)
}

// HandleList handles GET /policies requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	policies, err := h.service.ListActivePolicies(ctx)
	if err != nil {
		h.logError(ctx, "policy listing failed", err)
		httputil.WriteError(w, err)
		return
	}
	if policies == nil {
		policies = []*models.Policy{}
	}
	httputil.WriteJSON(w, http.StatusOK, listResponse{Policies: policies})
}

// HandleGet handles GET /policies/{policyID} requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	policyID, ok := policyIDParam(w, r)
	if !ok {
		return
	}

	policy, err := h.service.GetPolicy(ctx, policyID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, policy)
}

// HandleUpdate handles PUT /policies/{policyID} requests.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	policyID, ok := policyIDParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeJSON[models.UpdatePolicyRequest](w, r)
	if !ok {
		return
	}

	policy, err := h.service.UpdatePolicy(ctx, policyID, req)
	if err != nil {
		h.logError(ctx, "policy update failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, policy)
}

// HandleDelete handles DELETE /policies/{policyID} requests.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	policyID, ok := policyIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.DeletePolicy(ctx, policyID); err != nil {
		h.logError(ctx, "policy deletion failed", err)
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandlePurchase handles POST /policies/{policyID}/purchase requests.
func (h *Handler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	policyID, ok := policyIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.PurchasePolicy(ctx, policyID); err != nil {
		h.logError(ctx, "policy purchase failed", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "policy purchased",
		"request_id", requestcontext.RequestID(ctx),
		"policy_id", policyID,
		"principal", requestcontext.Principal(ctx),
	)
	httputil.WriteJSON(w, http.StatusOK, purchaseResponse{PolicyID: policyID, Status: "purchased"})
}

// HandleListPurchases handles GET /policies/purchases requests.
func (h *Handler) HandleListPurchases(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	held, err := h.service.ListPurchases(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if held == nil {
		held = []id.PolicyID{}
	}
	httputil.WriteJSON(w, http.StatusOK, purchasesResponse{PolicyIDs: held})
}

type listResponse struct {
	Policies []*models.Policy `json:"policies"`
}

type purchaseResponse struct {
	PolicyID id.PolicyID `json:"policy_id"`
	Status   string      `json:"status"`
}

type purchasesResponse struct {
	PolicyIDs []id.PolicyID `json:"policy_ids"`
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

func (h *Handler) logError(ctx context.Context, msg string, err error) {
	h.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
}
