package approvals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agrovista-erp/agrovista-erp/internal/authz"
	"github.com/agrovista-erp/agrovista-erp/internal/catalog"
	"github.com/agrovista-erp/agrovista-erp/internal/observability"
	"github.com/agrovista-erp/agrovista-erp/internal/shared"
)

// Service owns the approval request lifecycle.
type Service struct {
	repo     Repository
	registry *Registry
	catalog  *catalog.Catalog
	cache    *PendingCache
	audit    *shared.AuditLogger
	metrics  *observability.Metrics
	logger   *slog.Logger
	clock    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, registry *Registry, cat *catalog.Catalog, cache *PendingCache, audit *shared.AuditLogger, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		registry: registry,
		catalog:  cat,
		cache:    cache,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
		clock:    time.Now,
	}
}

// WithClock replaces the time source.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// RequestApproval records a user's intent to perform a gated action.
// Creation is idempotent per (user, action): while a pending request exists,
// repeated submissions return the existing row instead of stacking
// duplicates. Administrators never get a stored request; their attempt is
// audit-logged and reported via ErrAdminBypass so the caller takes the
// allowed path.
func (s *Service) RequestApproval(ctx context.Context, actor authz.Actor, actionKey string, contextID *string, contextData map[string]string) (*Request, error) {
	node, err := s.catalog.Lookup(actionKey)
	if err != nil {
		return nil, err
	}
	if node.Kind != catalog.KindAction {
		return nil, fmt.Errorf("%w: %s is not an action", catalog.ErrUnknownCapability, actionKey)
	}

	if actor.IsAdmin {
		s.record(ctx, actor.ID, "approvals.admin_bypass", actionKey, map[string]any{"context_id": contextID})
		return nil, ErrAdminBypass
	}

	if existing, err := s.repo.FindPending(ctx, actor.ID, actionKey); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("approvals: idempotency check: %w", err)
	}

	created, err := s.repo.Insert(ctx, Request{
		ID:          uuid.New(),
		RequestedBy: actor.ID,
		ActionKey:   actionKey,
		ContextID:   contextID,
		ContextData: contextData,
		Status:      StatusPending,
	})
	if err != nil {
		// Two near-simultaneous submissions can both pass the fast-path
		// check; the partial unique index decides, and the loser adopts the
		// surviving row.
		if errors.Is(err, errDuplicatePending) {
			return s.repo.FindPending(ctx, actor.ID, actionKey)
		}
		return nil, fmt.Errorf("approvals: create request: %w", err)
	}

	s.observe("request_created")
	s.record(ctx, actor.ID, "approvals.request.create", created.ID.String(), map[string]any{
		"action_key": actionKey,
		"context_id": contextID,
	})
	return created, nil
}

// ReviewRequest applies an admin decision to a pending request. Approval
// stamps the validity window and triggers best-effort auto-execution;
// execution failure never rolls the approval back, it is surfaced on the
// request for the admin instead.
func (s *Service) ReviewRequest(ctx context.Context, admin authz.Actor, id uuid.UUID, decision Status, notes string) (*Request, error) {
	if !admin.IsAdmin {
		return nil, ErrNotAuthorized
	}
	if decision != StatusApproved && decision != StatusRejected {
		return nil, fmt.Errorf("approvals: invalid decision %q", decision)
	}

	now := s.clock()
	var expiresAt *time.Time
	if decision == StatusApproved {
		expiry := now.Add(ApprovalValidity)
		expiresAt = &expiry
	}

	reviewed, err := s.repo.ReviewPending(ctx, id, decision, admin.ID, now, expiresAt, notes)
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			if _, getErr := s.repo.Get(ctx, id); errors.Is(getErr, ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("approvals: review request: %w", err)
	}

	s.observe("reviewed_" + string(decision))
	s.record(ctx, admin.ID, "approvals.request.review", reviewed.ID.String(), map[string]any{
		"decision":   string(decision),
		"action_key": reviewed.ActionKey,
	})

	if decision == StatusApproved {
		s.autoExecute(ctx, reviewed)
	}
	return reviewed, nil
}

func (s *Service) autoExecute(ctx context.Context, req *Request) {
	exec, ok := s.registry.Lookup(req.ActionKey)
	if !ok {
		return
	}
	if err := exec(ctx, req.ContextID, req.ContextData); err != nil {
		s.logger.Error("auto execution failed",
			slog.String("request_id", req.ID.String()),
			slog.String("action_key", req.ActionKey),
			slog.Any("error", err))
		s.observe("auto_exec_failed")
		message := err.Error()
		req.AutoExecError = &message
		if storeErr := s.repo.SetAutoExecError(ctx, req.ID, message); storeErr != nil {
			s.logger.Error("record auto execution failure", slog.Any("error", storeErr))
		}
		return
	}
	s.observe("auto_exec_ok")
}

// CheckApproval reports whether the actor currently holds a usable approval
// for the action. A context-scoped approval does not grant blanket use for a
// different resource, so the contextID narrows the search when provided.
func (s *Service) CheckApproval(ctx context.Context, actor authz.Actor, actionKey string, contextID *string) (authz.Decision, error) {
	if actor.IsAdmin {
		return authz.DecisionAllowed, nil
	}
	_, err := s.repo.FindUsable(ctx, actor.ID, actionKey, contextID, s.clock())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return authz.DecisionNeedsApproval, nil
		}
		return authz.DecisionNeedsApproval, fmt.Errorf("approvals: check approval: %w", err)
	}
	return authz.DecisionAllowed, nil
}

// ExpireStale transitions pending requests older than PendingMaxAge to
// EXPIRED. Requests never expire through direct user action.
func (s *Service) ExpireStale(ctx context.Context) (int64, error) {
	expired, err := s.repo.ExpireOlderThan(ctx, s.clock().Add(-PendingMaxAge))
	if err != nil {
		return 0, fmt.Errorf("approvals: expire sweep: %w", err)
	}
	if expired > 0 {
		s.logger.Info("expired stale approval requests", slog.Int64("count", expired))
		for i := int64(0); i < expired; i++ {
			s.observe("expired")
		}
	}
	return expired, nil
}

// ListPending returns the current pending queue, newest first. The sweep runs
// first so stale items never appear actionable. Store failures degrade to the
// last known snapshot; they are advisory refreshes, not mutations.
func (s *Service) ListPending(ctx context.Context) ([]Request, error) {
	if _, err := s.ExpireStale(ctx); err != nil {
		s.logger.Warn("expire sweep before listing", slog.Any("error", err))
	}

	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		s.logger.Warn("list pending, serving snapshot", slog.Any("error", err))
		snapshot, cacheErr := s.cache.Get(ctx)
		if cacheErr != nil {
			s.logger.Warn("pending snapshot read", slog.Any("error", cacheErr))
			return nil, fmt.Errorf("approvals: list pending: %w: %v", shared.ErrStoreUnavailable, err)
		}
		if snapshot == nil {
			return nil, fmt.Errorf("approvals: list pending: %w: %v", shared.ErrStoreUnavailable, err)
		}
		return snapshot, nil
	}

	if err := s.cache.Put(ctx, pending); err != nil {
		s.logger.Warn("pending snapshot write", slog.Any("error", err))
	}
	return pending, nil
}

// ListHistory returns reviewed and expired requests, newest first, bounded.
func (s *Service) ListHistory(ctx context.Context) ([]Request, error) {
	history, err := s.repo.ListHistory(ctx, HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("approvals: list history: %w", err)
	}
	return history, nil
}

// RefreshPending is the poller entry point: sweep, reload, snapshot.
func (s *Service) RefreshPending(ctx context.Context) error {
	if _, err := s.ExpireStale(ctx); err != nil {
		s.logger.Warn("poll expire sweep", slog.Any("error", err))
	}
	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return err
	}
	return s.cache.Put(ctx, pending)
}

func (s *Service) observe(event string) {
	if s.metrics != nil {
		s.metrics.ObserveApproval(event)
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "approval_request", EntityID: entityID, Meta: meta}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}
