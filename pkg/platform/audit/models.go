// Package audit captures the ledger's state-changing operations as events.
// Events are transport-agnostic so stores and sinks can fan out.
package audit

import (
	"context"
	"time"

	id "covera/pkg/domain"
)

// Action names a state-changing ledger operation.
type Action string

const (
	ActionPolicyCreated   Action = "policy_created"
	ActionPolicyUpdated   Action = "policy_updated"
	ActionPolicyDeleted   Action = "policy_deleted"
	ActionPolicyPurchased Action = "policy_purchased"
	ActionClaimFiled      Action = "claim_filed"
	ActionClaimSettled    Action = "claim_settled"
)

// Event is emitted from domain logic to capture key actions.
type Event struct {
	Timestamp time.Time
	Action    Action
	// Principal is the caller that triggered the action.
	Principal id.PrincipalID
	PolicyID  id.PolicyID
	// ClaimID is only meaningful for claim actions.
	ClaimID id.ClaimID
	// Amount carries the monetary value involved, in Units: premium for
	// purchases, requested payout for claims, transferred total for settlements.
	Amount id.Units
	// RequestID is the correlation ID from the request context.
	RequestID string
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}
