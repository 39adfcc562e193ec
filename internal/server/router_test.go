package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"covera/internal/auth"
	claimmodels "covera/internal/claim/models"
	claimservice "covera/internal/claim/service"
	claimstore "covera/internal/claim/store"
	"covera/internal/policy/models"
	policyservice "covera/internal/policy/service"
	policystore "covera/internal/policy/store"
	"covera/internal/treasury"
	id "covera/pkg/domain"
	auditmemory "covera/pkg/platform/audit/store/memory"
)

const (
	adminToken = "test-admin-token"
	arbiter    = id.PrincipalID("owner")
)

// RouterSuite drives the assembled ledger through its public HTTP surface:
// real JWT auth, attached-funds headers, and both slices wired together.
type RouterSuite struct {
	suite.Suite
	router http.Handler
	tokens *auth.TokenService
	ledger *treasury.Ledger
	trail  *auditmemory.Store
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.tokens = auth.NewTokenService("test-signing-key", "covera")
	s.ledger = treasury.NewLedger()
	s.trail = auditmemory.New()

	policies := policystore.NewInMemory()
	policySvc := policyservice.New(policies, s.ledger,
		policyservice.WithLogger(logger),
		policyservice.WithAuditor(s.trail),
	)
	claimSvc, err := claimservice.New(claimstore.NewInMemory(), policies, s.ledger,
		arbiter, 10, 5,
		claimservice.WithLogger(logger),
		claimservice.WithAuditor(s.trail),
	)
	s.Require().NoError(err)

	hash, err := bcrypt.GenerateFromPassword([]byte(adminToken), bcrypt.MinCost)
	s.Require().NoError(err)

	s.router = NewRouter(Deps{
		Logger:         logger,
		Policies:       policySvc,
		Claims:         claimSvc,
		Tokens:         s.tokens,
		Stats:          policySvc,
		AuditTrail:     s.trail,
		AdminTokenHash: string(hash),
	})
}

func (s *RouterSuite) bearer(principal id.PrincipalID) string {
	token, err := s.tokens.GenerateToken(principal, time.Hour)
	s.Require().NoError(err)
	return "Bearer " + token
}

func (s *RouterSuite) do(method, target string, payload any, headers map[string]string) *httptest.ResponseRecorder {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		s.Require().NoError(err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) asCaller(principal id.PrincipalID, funds id.Units, method, target string, payload any) *httptest.ResponseRecorder {
	headers := map[string]string{"Authorization": s.bearer(principal)}
	if funds > 0 {
		headers["X-Attached-Funds"] = fmt.Sprintf("%d", funds)
	}
	return s.do(method, target, payload, headers)
}

func (s *RouterSuite) TestHealthAndMetricsAreOpen() {
	rec := s.do(http.MethodGet, "/healthz", nil, nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/metrics", nil, nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestPolicyRoutesRequireAuth() {
	rec := s.do(http.MethodGet, "/policies", nil, nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/policies", nil, map[string]string{"Authorization": "Bearer garbage"})
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *RouterSuite) TestInvalidAttachedFundsHeaderIsRejected() {
	rec := s.do(http.MethodPost, "/policies/1/purchase", nil, map[string]string{
		"Authorization":    s.bearer("bob"),
		"X-Attached-Funds": "not-a-number",
	})

	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RouterSuite) TestFullPolicyAndClaimLifecycle() {
	// Alice creates a policy: coverage 100, premium 5, scaled to sub-units.
	rec := s.asCaller("alice", 0, http.MethodPost, "/policies", models.CreatePolicyRequest{
		Name: "home", Description: "standard home coverage", Coverage: 100, Premium: 5,
	})
	s.Require().Equal(http.StatusCreated, rec.Code)

	var policy models.Policy
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&policy))
	s.Equal(id.PolicyID(1), policy.ID)
	premium := policy.Premium
	coverage := policy.CoverageAmount

	// Bob purchases at exactly the premium; a second attempt conflicts.
	rec = s.asCaller("bob", premium, http.MethodPost, "/policies/1/purchase", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	rec = s.asCaller("bob", premium, http.MethodPost, "/policies/1/purchase", nil)
	s.Require().Equal(http.StatusConflict, rec.Code)
	s.Equal(premium, s.ledger.Balance(treasury.SystemAccount))

	// Only the holder can delete.
	rec = s.asCaller("mallory", 0, http.MethodDelete, "/policies/1", nil)
	s.Require().Equal(http.StatusForbidden, rec.Code)

	// Bob files the claim with coverage plus 10% tax escrowed.
	escrow := claimmodels.RequiredEscrow(coverage, 10)
	rec = s.asCaller("bob", escrow, http.MethodPost, "/policies/1/claims",
		claimmodels.FileClaimRequest{Amount: 1000})
	s.Require().Equal(http.StatusCreated, rec.Code)

	var claim claimmodels.Claim
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&claim))
	s.Equal(id.ClaimID(0), claim.ID)

	// The arbiter settles: 950 to bob, 50 fee to the arbiter.
	rec = s.asCaller(arbiter, 0, http.MethodPost, "/policies/1/claims/0/settle", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal(id.Units(950), s.ledger.Balance("bob"))
	s.Equal(id.Units(50), s.ledger.Balance(arbiter))

	// Settling again conflicts; soft-deleting the policy afterwards keeps
	// the financial history intact.
	rec = s.asCaller(arbiter, 0, http.MethodPost, "/policies/1/claims/0/settle", nil)
	s.Require().Equal(http.StatusConflict, rec.Code)

	rec = s.asCaller("alice", 0, http.MethodDelete, "/policies/1", nil)
	s.Require().Equal(http.StatusNoContent, rec.Code)
	rec = s.asCaller("anyone", 0, http.MethodGet, "/policies/1/claims/0", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestAdminSurface() {
	rec := s.do(http.MethodGet, "/admin/audit", nil, nil)
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/admin/audit", nil, map[string]string{"X-Admin-Token": adminToken})
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, "/admin/token", map[string]string{"principal": "alice"},
		map[string]string{"X-Admin-Token": adminToken})
	s.Require().Equal(http.StatusOK, rec.Code)

	var issued struct {
		Token string `json:"token"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&issued))
	principal, err := s.tokens.ValidateToken(issued.Token)
	s.Require().NoError(err)
	s.Equal(id.PrincipalID("alice"), principal)
}

func (s *RouterSuite) TestAdminStatsCountDeletedPolicies() {
	for i := 0; i < 2; i++ {
		rec := s.asCaller("alice", 0, http.MethodPost, "/policies", models.CreatePolicyRequest{
			Name: "home", Description: "standard home coverage", Coverage: 100, Premium: 5,
		})
		s.Require().Equal(http.StatusCreated, rec.Code)
	}
	rec := s.asCaller("alice", 0, http.MethodDelete, "/policies/1", nil)
	s.Require().Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/admin/stats", nil, map[string]string{"X-Admin-Token": adminToken})
	s.Require().Equal(http.StatusOK, rec.Code)

	var stats struct {
		Total   int64 `json:"total_policies"`
		Active  int64 `json:"active_policies"`
		Deleted int64 `json:"deleted_policies"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&stats))
	s.Equal(int64(2), stats.Total)
	s.Equal(int64(1), stats.Active)
	s.Equal(int64(1), stats.Deleted)
}
