package roles

import (
	"context"
	"log/slog"

	"github.com/agrovista-erp/agrovista-erp/internal/authz"
)

// Service coordinates role administration.
type Service struct {
	repo      *Repository
	authzRepo authz.Repository
	logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(repo *Repository, authzRepo authz.Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, authzRepo: authzRepo, logger: logger}
}

// List returns all roles.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.List(ctx)
}

// Get fetches one role.
func (s *Service) Get(ctx context.Context, id int64) (*Role, error) {
	return s.repo.Get(ctx, id)
}

// Create adds a role.
func (s *Service) Create(ctx context.Context, name, description string) (*Role, error) {
	return s.repo.Create(ctx, name, description)
}

// Update changes a role's name or description.
func (s *Service) Update(ctx context.Context, id int64, name, description string) (*Role, error) {
	return s.repo.Update(ctx, id, name, description)
}

// Delete removes a role. Users keep a NULL role via the FK's ON DELETE SET NULL.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Grants returns the role's granted capability keys.
func (s *Service) Grants(ctx context.Context, roleID int64) ([]string, error) {
	return s.authzRepo.RoleGrantKeys(ctx, roleID)
}

// ActionPermissions returns the role's explicit action rows.
func (s *Service) ActionPermissions(ctx context.Context, roleID int64) ([]authz.RoleActionPermission, error) {
	return s.authzRepo.ActionPermissions(ctx, roleID)
}
