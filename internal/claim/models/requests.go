package models

import id "covera/pkg/domain"

// FileClaimRequest carries the requested payout amount for a new claim.
type FileClaimRequest struct {
	Amount id.Units `json:"amount"`
}
