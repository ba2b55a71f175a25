package approvals

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// errDuplicatePending surfaces the partial unique index on
// (requested_by, action_key) WHERE status='PENDING'. The index is the
// authoritative duplicate guard; the service-level idempotency check is only
// the fast path.
var errDuplicatePending = errors.New("approvals: pending request already exists")

// Repository persists approval requests.
type Repository interface {
	Insert(ctx context.Context, req Request) (*Request, error)
	Get(ctx context.Context, id uuid.UUID) (*Request, error)
	FindPending(ctx context.Context, userID int64, actionKey string) (*Request, error)
	FindUsable(ctx context.Context, userID int64, actionKey string, contextID *string, now time.Time) (*Request, error)
	ReviewPending(ctx context.Context, id uuid.UUID, decision Status, reviewerID int64, reviewedAt time.Time, expiresAt *time.Time, notes string) (*Request, error)
	SetAutoExecError(ctx context.Context, id uuid.UUID, message string) error
	ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	ListPending(ctx context.Context) ([]Request, error)
	ListHistory(ctx context.Context, limit int) ([]Request, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const requestColumns = `id, requested_by, action_key, context_id, context_data, status, reviewed_by, reviewed_at, expires_at, admin_notes, auto_exec_error, created_at`

func (r *repository) Insert(ctx context.Context, req Request) (*Request, error) {
	contextData, err := json.Marshal(req.ContextData)
	if err != nil {
		return nil, err
	}
	row := r.pool.QueryRow(ctx, `INSERT INTO approval_requests
(id, requested_by, action_key, context_id, context_data, status, admin_notes, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE(NULLIF($8, '0001-01-01 00:00:00+00'::timestamptz), NOW()))
RETURNING `+requestColumns,
		req.ID, req.RequestedBy, req.ActionKey, req.ContextID, contextData, string(req.Status), req.AdminNotes, req.CreatedAt)
	inserted, err := scanRequest(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, errDuplicatePending
		}
		return nil, err
	}
	return inserted, nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM approval_requests WHERE id=$1`, id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

func (r *repository) FindPending(ctx context.Context, userID int64, actionKey string) (*Request, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM approval_requests
WHERE requested_by=$1 AND action_key=$2 AND status='PENDING'
ORDER BY created_at DESC LIMIT 1`, userID, actionKey)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

func (r *repository) FindUsable(ctx context.Context, userID int64, actionKey string, contextID *string, now time.Time) (*Request, error) {
	query := `SELECT ` + requestColumns + ` FROM approval_requests
WHERE requested_by=$1 AND action_key=$2 AND status='APPROVED' AND expires_at > $3`
	args := []any{userID, actionKey, now}
	if contextID != nil {
		query += ` AND context_id=$4`
		args = append(args, *contextID)
	}
	query += ` ORDER BY expires_at DESC LIMIT 1`
	row := r.pool.QueryRow(ctx, query, args...)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

// ReviewPending performs the decision as a single conditional update keyed on
// the pending status, so a concurrent reviewer losing the race matches zero
// rows instead of silently rewriting the record.
func (r *repository) ReviewPending(ctx context.Context, id uuid.UUID, decision Status, reviewerID int64, reviewedAt time.Time, expiresAt *time.Time, notes string) (*Request, error) {
	row := r.pool.QueryRow(ctx, `UPDATE approval_requests
SET status=$2, reviewed_by=$3, reviewed_at=$4, expires_at=$5, admin_notes=$6
WHERE id=$1 AND status='PENDING'
RETURNING `+requestColumns,
		id, string(decision), reviewerID, reviewedAt, expiresAt, notes)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidTransition
		}
		return nil, err
	}
	return req, nil
}

func (r *repository) SetAutoExecError(ctx context.Context, id uuid.UUID, message string) error {
	_, err := r.pool.Exec(ctx, `UPDATE approval_requests SET auto_exec_error=$2 WHERE id=$1`, id, message)
	return err
}

func (r *repository) ExpireOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE approval_requests SET status='EXPIRED'
WHERE status='PENDING' AND created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *repository) ListPending(ctx context.Context) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM approval_requests
WHERE status='PENDING' ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (r *repository) ListHistory(ctx context.Context, limit int) ([]Request, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+requestColumns+` FROM approval_requests
WHERE status <> 'PENDING' ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

func scanRequest(row pgx.Row) (*Request, error) {
	var req Request
	var status string
	var contextData []byte
	if err := row.Scan(&req.ID, &req.RequestedBy, &req.ActionKey, &req.ContextID, &contextData,
		&status, &req.ReviewedBy, &req.ReviewedAt, &req.ExpiresAt, &req.AdminNotes,
		&req.AutoExecError, &req.CreatedAt); err != nil {
		return nil, err
	}
	req.Status = Status(status)
	if len(contextData) > 0 {
		if err := json.Unmarshal(contextData, &req.ContextData); err != nil {
			return nil, err
		}
	}
	return &req, nil
}

func collectRequests(rows pgx.Rows) ([]Request, error) {
	var requests []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}
