// Package domain holds the shared identifier and money types used across slices.
package domain

import "strconv"

// PrincipalID is the opaque identity of a caller. It is supplied by the
// authentication layer and never interpreted by domain logic beyond equality.
type PrincipalID string

func (p PrincipalID) String() string { return string(p) }

// IsZero reports whether the principal is unset.
func (p PrincipalID) IsZero() bool { return p == "" }

// PolicyID identifies a policy. IDs are assigned sequentially starting at 1
// and are never reused, even after soft-deletion.
type PolicyID int64

func (id PolicyID) String() string { return strconv.FormatInt(int64(id), 10) }

// IsZero reports whether the id was never assigned.
func (id PolicyID) IsZero() bool { return id == 0 }

// ClaimID identifies a claim within a single policy's claim list. IDs are the
// 0-based position in that list.
type ClaimID int

func (id ClaimID) String() string { return strconv.Itoa(int(id)) }
