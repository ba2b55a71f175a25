package users

import (
	"context"

	"github.com/agrovista-erp/agrovista-erp/internal/authz"
	"github.com/agrovista-erp/agrovista-erp/internal/shared"
)

// Service handles user administration and actor resolution.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns one page of users together with pagination metadata.
func (s *Service) List(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	p := shared.NewPagination(page, perPage, total)
	list, err := s.repo.List(ctx, p.PerPage, (p.Page-1)*p.PerPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return list, p, nil
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

// SetRole assigns or clears a user's role. A user without a role has no
// capabilities unless overrides grant them.
func (s *Service) SetRole(ctx context.Context, userID int64, roleID *int64) error {
	return s.repo.SetRole(ctx, userID, roleID)
}

// SetActive toggles an account.
func (s *Service) SetActive(ctx context.Context, userID int64, active bool) error {
	return s.repo.SetActive(ctx, userID, active)
}

// Actor resolves a user id into an authorization actor. Deactivated accounts
// never resolve: the session dies with the account, not with the cookie TTL.
func (s *Service) Actor(ctx context.Context, userID int64) (authz.Actor, error) {
	user, err := s.repo.Get(ctx, userID)
	if err != nil {
		return authz.Actor{}, err
	}
	if !user.IsActive {
		return authz.Actor{}, shared.ErrAccountDisabled
	}
	return authz.Actor{ID: user.ID, Email: user.Email, RoleID: user.RoleID, IsAdmin: user.IsAdmin}, nil
}

var _ authz.ActorSource = (*Service)(nil)
