package authz

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agrovista-erp/agrovista-erp/internal/platform/db"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("authz: not found")

// Repository provides read access to the grant tables and the write paths
// used by the administration handlers. The resolver and authorizer only ever
// read; mutations happen through the defined operations below.
type Repository interface {
	RoleGrantKeys(ctx context.Context, roleID int64) ([]string, error)
	ActionPermission(ctx context.Context, roleID int64, actionKey string) (*RoleActionPermission, error)
	ActionPermissions(ctx context.Context, roleID int64) ([]RoleActionPermission, error)
	Overrides(ctx context.Context, userID int64) ([]UserOverride, error)

	SetRoleGrants(ctx context.Context, roleID int64, capabilityKeys []string) error
	UpsertActionPermission(ctx context.Context, perm RoleActionPermission) error
	DeleteActionPermission(ctx context.Context, roleID int64, actionKey string) error
	UpsertOverride(ctx context.Context, override UserOverride) error
	DeleteOverride(ctx context.Context, userID int64, capabilityKey string) (bool, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) RoleGrantKeys(ctx context.Context, roleID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT capability_key FROM role_grants WHERE role_id=$1 ORDER BY capability_key`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *repository) ActionPermission(ctx context.Context, roleID int64, actionKey string) (*RoleActionPermission, error) {
	var perm RoleActionPermission
	err := r.pool.QueryRow(ctx, `SELECT role_id, action_key, can_execute, created_at
FROM role_action_permissions WHERE role_id=$1 AND action_key=$2`, roleID, actionKey).
		Scan(&perm.RoleID, &perm.ActionKey, &perm.CanExecute, &perm.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &perm, nil
}

func (r *repository) ActionPermissions(ctx context.Context, roleID int64) ([]RoleActionPermission, error) {
	rows, err := r.pool.Query(ctx, `SELECT role_id, action_key, can_execute, created_at
FROM role_action_permissions WHERE role_id=$1 ORDER BY action_key`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []RoleActionPermission
	for rows.Next() {
		var perm RoleActionPermission
		if err := rows.Scan(&perm.RoleID, &perm.ActionKey, &perm.CanExecute, &perm.CreatedAt); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

func (r *repository) Overrides(ctx context.Context, userID int64) ([]UserOverride, error) {
	rows, err := r.pool.Query(ctx, `SELECT user_id, capability_key, can_view, created_at
FROM user_overrides WHERE user_id=$1 ORDER BY capability_key`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var overrides []UserOverride
	for rows.Next() {
		var override UserOverride
		if err := rows.Scan(&override.UserID, &override.CapabilityKey, &override.CanView, &override.CreatedAt); err != nil {
			return nil, err
		}
		overrides = append(overrides, override)
	}
	return overrides, rows.Err()
}

func (r *repository) SetRoleGrants(ctx context.Context, roleID int64, capabilityKeys []string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_grants WHERE role_id=$1`, roleID); err != nil {
			return err
		}
		for _, key := range capabilityKeys {
			if _, err := tx.Exec(ctx, `INSERT INTO role_grants (role_id, capability_key) VALUES ($1, $2)`, roleID, key); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repository) UpsertActionPermission(ctx context.Context, perm RoleActionPermission) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO role_action_permissions (role_id, action_key, can_execute)
VALUES ($1, $2, $3)
ON CONFLICT (role_id, action_key) DO UPDATE SET can_execute = EXCLUDED.can_execute`,
		perm.RoleID, perm.ActionKey, perm.CanExecute)
	return err
}

func (r *repository) DeleteActionPermission(ctx context.Context, roleID int64, actionKey string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM role_action_permissions WHERE role_id=$1 AND action_key=$2`, roleID, actionKey)
	return err
}

func (r *repository) UpsertOverride(ctx context.Context, override UserOverride) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO user_overrides (user_id, capability_key, can_view)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, capability_key) DO UPDATE SET can_view = EXCLUDED.can_view`,
		override.UserID, override.CapabilityKey, override.CanView)
	return err
}

func (r *repository) DeleteOverride(ctx context.Context, userID int64, capabilityKey string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM user_overrides WHERE user_id=$1 AND capability_key=$2`, userID, capabilityKey)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
