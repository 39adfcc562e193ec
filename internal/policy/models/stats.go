package models

// Stats summarizes registry volume. TotalPolicies counts every policy ever
// created; soft-deleted records stay in the total and show up as the
// difference from the active count.
type Stats struct {
	TotalPolicies   int64 `json:"total_policies"`
	ActivePolicies  int64 `json:"active_policies"`
	DeletedPolicies int64 `json:"deleted_policies"`
}
