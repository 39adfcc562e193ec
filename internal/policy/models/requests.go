package models

import (
	"strings"

	id "covera/pkg/domain"
)

// CreatePolicyRequest carries the terms for a new policy. Amounts are in
// whole units and scaled at creation.
type CreatePolicyRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Coverage    id.Units `json:"coverage_amount"`
	Premium     id.Units `json:"premium"`
}

func (r *CreatePolicyRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
}

// UpdatePolicyRequest carries replacement terms for an existing policy.
// All fields are required; amounts are stored as submitted.
type UpdatePolicyRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Coverage    id.Units `json:"coverage_amount"`
	Premium     id.Units `json:"premium"`
}

func (r *UpdatePolicyRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
}
