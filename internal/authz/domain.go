// Package authz resolves what an authenticated actor may see and do. Role
// grants merged with per-user overrides produce the effective capability set
// under a default-deny policy; sensitive actions additionally pass through
// the role action table to decide whether an approval is required.
package authz

import "time"

// Decision is the outcome of an authorization check. Denials are ordinary
// results the caller branches on, not errors.
type Decision string

const (
	// DecisionAllowed permits the action without further steps.
	DecisionAllowed Decision = "ALLOWED"
	// DecisionNeedsApproval requires a reviewed approval request first.
	DecisionNeedsApproval Decision = "NEEDS_APPROVAL"
	// DecisionDenied refuses the action outright.
	DecisionDenied Decision = "DENIED"
)

// Actor describes the authenticated principal a decision is made for.
type Actor struct {
	ID      int64
	Email   string
	RoleID  *int64
	IsAdmin bool
}

// RoleGrant marks a navigation capability as granted to a role. Absence of a
// row means not granted.
type RoleGrant struct {
	RoleID        int64
	CapabilityKey string
	CreatedAt     time.Time
}

// RoleActionPermission records whether a role may execute an action without
// approval. Absence of a row defaults to requiring approval.
type RoleActionPermission struct {
	RoleID     int64
	ActionKey  string
	CanExecute bool
	CreatedAt  time.Time
}

// UserOverride is a per-user exception layered on top of the role: CanView
// true grants a capability the role lacks, false revokes one the role has.
type UserOverride struct {
	UserID        int64
	CapabilityKey string
	CanView       bool
	CreatedAt     time.Time
}
