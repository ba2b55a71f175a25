// Package approvals implements the action-approval workflow: a non-admin user
// requests a gated action, an administrator reviews the request, and an
// approval is usable for a bounded window during which the registered
// execution handler may have already performed the action automatically.
package approvals

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an approval request. APPROVED, REJECTED
// and EXPIRED are terminal. Status is a historical record; usability of an
// approval is gated by ExpiresAt, not by status alone.
type Status string

const (
	// StatusPending awaits an administrator decision.
	StatusPending Status = "PENDING"
	// StatusApproved was granted; usable until ExpiresAt.
	StatusApproved Status = "APPROVED"
	// StatusRejected was refused.
	StatusRejected Status = "REJECTED"
	// StatusExpired lapsed unreviewed; set only by the sweep.
	StatusExpired Status = "EXPIRED"
)

const (
	// PendingMaxAge is how long a request may stay pending before the sweep
	// expires it.
	PendingMaxAge = 24 * time.Hour
	// ApprovalValidity is how long an approval stays usable after review.
	ApprovalValidity = 4 * time.Hour
	// HistoryLimit bounds the history listing.
	HistoryLimit = 100
)

var (
	// ErrNotAuthorized indicates a non-admin attempted an admin-only operation.
	ErrNotAuthorized = errors.New("approvals: not authorized")
	// ErrNotFound indicates the request id does not exist.
	ErrNotFound = errors.New("approvals: request not found")
	// ErrInvalidTransition indicates a review of a request that is no longer
	// pending, including concurrent reviews losing the race.
	ErrInvalidTransition = errors.New("approvals: request is not pending")
	// ErrAdminBypass indicates an administrator called RequestApproval;
	// admins take the allowed path and no request is stored.
	ErrAdminBypass = errors.New("approvals: administrators do not require approval")
)

// Request is a persisted record of a user's intent to perform a gated action.
type Request struct {
	ID            uuid.UUID         `json:"id"`
	RequestedBy   int64             `json:"requested_by"`
	ActionKey     string            `json:"action_key"`
	ContextID     *string           `json:"context_id,omitempty"`
	ContextData   map[string]string `json:"context_data,omitempty"`
	Status        Status            `json:"status"`
	ReviewedBy    *int64            `json:"reviewed_by,omitempty"`
	ReviewedAt    *time.Time        `json:"reviewed_at,omitempty"`
	ExpiresAt     *time.Time        `json:"expires_at,omitempty"`
	AdminNotes    string            `json:"admin_notes,omitempty"`
	AutoExecError *string           `json:"auto_exec_error,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// Usable reports whether the request grants the action at the given instant.
func (r *Request) Usable(now time.Time) bool {
	return r.Status == StatusApproved && r.ExpiresAt != nil && r.ExpiresAt.After(now)
}
