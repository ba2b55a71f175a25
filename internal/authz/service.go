package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/agrovista-erp/agrovista-erp/internal/catalog"
	"github.com/agrovista-erp/agrovista-erp/internal/observability"
	"github.com/agrovista-erp/agrovista-erp/internal/shared"
)

// ActorSource resolves a user id into an Actor. Implemented by the users
// module; kept as an interface so the authorization core never depends on
// user administration.
type ActorSource interface {
	Actor(ctx context.Context, userID int64) (Actor, error)
}

// Service answers authorization questions and owns the admin write paths for
// the grant tables.
type Service struct {
	repo    Repository
	catalog *catalog.Catalog
	actors  ActorSource
	cache   *EffectiveCache
	audit   *shared.AuditLogger
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, cat *catalog.Catalog, actors ActorSource, cache *EffectiveCache, audit *shared.AuditLogger, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{repo: repo, catalog: cat, actors: actors, cache: cache, audit: audit, metrics: metrics, logger: logger}
}

// Catalog exposes the immutable capability catalog.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// EffectiveSet resolves the actor's effective capability set. Admins see the
// entire catalog. Results are cached per user until the next permission edit.
func (s *Service) EffectiveSet(ctx context.Context, actor Actor) (map[string]struct{}, error) {
	if actor.IsAdmin {
		effective := make(map[string]struct{}, s.catalog.Len())
		for _, key := range s.catalog.Keys(catalog.KindNavigation) {
			effective[key] = struct{}{}
		}
		for _, key := range s.catalog.Keys(catalog.KindAction) {
			effective[key] = struct{}{}
		}
		return effective, nil
	}

	if cached, err := s.cache.Get(ctx, actor.ID); err != nil {
		s.logger.Warn("effective set cache read", slog.Any("error", err))
	} else if cached != nil {
		return cached, nil
	}

	var roleKeys []string
	if actor.RoleID != nil {
		keys, err := s.repo.RoleGrantKeys(ctx, *actor.RoleID)
		if err != nil {
			return nil, fmt.Errorf("authz: load role grants: %w", err)
		}
		roleKeys = keys
	}
	overrides, err := s.repo.Overrides(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("authz: load overrides: %w", err)
	}

	effective := ResolveEffective(roleKeys, overrides)
	if err := s.cache.Put(ctx, actor.ID, effective); err != nil {
		s.logger.Warn("effective set cache write", slog.Any("error", err))
	}
	return effective, nil
}

// CanView reports whether the actor's effective set contains the capability.
func (s *Service) CanView(ctx context.Context, actor Actor, capabilityKey string) (bool, error) {
	if !s.catalog.Known(capabilityKey) {
		return false, catalogUnknown(capabilityKey)
	}
	effective, err := s.EffectiveSet(ctx, actor)
	if err != nil {
		return false, err
	}
	_, ok := effective[capabilityKey]
	return ok, nil
}

// Authorize decides whether the actor may execute the action right now.
// Admins bypass the approval workflow; an actor without a role is denied; a
// missing or false role action row means an approval is required. Callers
// must validate the action key against the catalog before calling.
func (s *Service) Authorize(ctx context.Context, actor Actor, actionKey string) (Decision, error) {
	decision, err := s.authorize(ctx, actor, actionKey)
	if err == nil {
		s.metrics.ObserveDecision(string(decision))
	}
	return decision, err
}

func (s *Service) authorize(ctx context.Context, actor Actor, actionKey string) (Decision, error) {
	if actor.IsAdmin {
		return DecisionAllowed, nil
	}
	if actor.RoleID == nil {
		return DecisionDenied, nil
	}
	perm, err := s.repo.ActionPermission(ctx, *actor.RoleID, actionKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return DecisionNeedsApproval, nil
		}
		return DecisionDenied, fmt.Errorf("authz: load action permission: %w", err)
	}
	if perm.CanExecute {
		return DecisionAllowed, nil
	}
	return DecisionNeedsApproval, nil
}

// Navigation returns the catalog tree filtered down to the actor's effective
// set, ready for the UI shell to render.
func (s *Service) Navigation(ctx context.Context, actor Actor) ([]catalog.TreeNode, error) {
	effective, err := s.EffectiveSet(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.catalog.BuildTree(effective), nil
}

// SetRoleGrants replaces a role's navigation grants. Every key must be a
// known navigation capability.
func (s *Service) SetRoleGrants(ctx context.Context, admin Actor, roleID int64, capabilityKeys []string) error {
	for _, key := range capabilityKeys {
		node, err := s.catalog.Lookup(key)
		if err != nil {
			return err
		}
		if node.Kind != catalog.KindNavigation {
			return fmt.Errorf("authz: %s is not a navigation capability", key)
		}
	}
	if err := s.repo.SetRoleGrants(ctx, roleID, capabilityKeys); err != nil {
		return fmt.Errorf("authz: set role grants: %w", err)
	}
	s.invalidate(ctx)
	s.record(ctx, admin, "authz.role_grants.set", "role", strconv.FormatInt(roleID, 10), map[string]any{"capabilities": capabilityKeys})
	return nil
}

// SetActionPermission grants or revokes approval-free execution of an action
// for a role.
func (s *Service) SetActionPermission(ctx context.Context, admin Actor, roleID int64, actionKey string, canExecute bool) error {
	node, err := s.catalog.Lookup(actionKey)
	if err != nil {
		return err
	}
	if node.Kind != catalog.KindAction {
		return fmt.Errorf("authz: %s is not an action capability", actionKey)
	}
	if err := s.repo.UpsertActionPermission(ctx, RoleActionPermission{RoleID: roleID, ActionKey: actionKey, CanExecute: canExecute}); err != nil {
		return fmt.Errorf("authz: set action permission: %w", err)
	}
	s.invalidate(ctx)
	s.record(ctx, admin, "authz.action_permission.set", "role", strconv.FormatInt(roleID, 10), map[string]any{
		"action_key":  actionKey,
		"can_execute": canExecute,
	})
	return nil
}

// SetUserOverride records a per-user exception. An override that matches what
// the target's role already provides is redundant and is pruned instead of
// stored, keeping the override table an honest exception list.
func (s *Service) SetUserOverride(ctx context.Context, admin Actor, userID int64, capabilityKey string, canView bool) error {
	if _, err := s.catalog.Lookup(capabilityKey); err != nil {
		return err
	}

	target, err := s.actors.Actor(ctx, userID)
	if err != nil {
		return fmt.Errorf("authz: load override target: %w", err)
	}

	roleHasKey := false
	if target.RoleID != nil {
		keys, err := s.repo.RoleGrantKeys(ctx, *target.RoleID)
		if err != nil {
			return fmt.Errorf("authz: load role grants: %w", err)
		}
		for _, key := range keys {
			if key == capabilityKey {
				roleHasKey = true
				break
			}
		}
	}

	if canView == roleHasKey {
		if _, err := s.repo.DeleteOverride(ctx, userID, capabilityKey); err != nil {
			return fmt.Errorf("authz: prune redundant override: %w", err)
		}
	} else {
		if err := s.repo.UpsertOverride(ctx, UserOverride{UserID: userID, CapabilityKey: capabilityKey, CanView: canView}); err != nil {
			return fmt.Errorf("authz: set override: %w", err)
		}
	}

	s.invalidate(ctx)
	s.record(ctx, admin, "authz.override.set", "user", strconv.FormatInt(userID, 10), map[string]any{
		"capability_key": capabilityKey,
		"can_view":       canView,
		"pruned":         canView == roleHasKey,
	})
	return nil
}

// ClearUserOverride removes an exception entirely.
func (s *Service) ClearUserOverride(ctx context.Context, admin Actor, userID int64, capabilityKey string) error {
	removed, err := s.repo.DeleteOverride(ctx, userID, capabilityKey)
	if err != nil {
		return fmt.Errorf("authz: clear override: %w", err)
	}
	if removed {
		s.invalidate(ctx)
		s.record(ctx, admin, "authz.override.clear", "user", strconv.FormatInt(userID, 10), map[string]any{"capability_key": capabilityKey})
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("effective set cache invalidate", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, admin Actor, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: admin.ID, Action: action, Entity: entity, EntityID: entityID, Meta: meta}); err != nil {
		s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
	}
}

func catalogUnknown(key string) error {
	return fmt.Errorf("%w: %s", catalog.ErrUnknownCapability, key)
}
