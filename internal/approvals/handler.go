package approvals

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/agrovista-erp/agrovista-erp/internal/authz"
	"github.com/agrovista-erp/agrovista-erp/internal/catalog"
	"github.com/agrovista-erp/agrovista-erp/internal/platform/httpx"
)

// Handler exposes the approval workflow over HTTP.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	authzSvc *authz.Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, authzSvc *authz.Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		authzSvc: authzSvc,
		validate: validator.New(),
	}
}

// Create submits an approval request for the current actor, after first
// running the action through the authorizer: already-allowed actions never
// create queue rows.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	var dto CreateRequestDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if !h.authzSvc.Catalog().Known(dto.ActionKey) {
		httpx.Problem(w, http.StatusBadRequest, "Unknown Capability", dto.ActionKey)
		return
	}

	decision, err := h.authzSvc.Authorize(r.Context(), actor, dto.ActionKey)
	if err != nil {
		h.logger.Error("authorize before request", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	switch decision {
	case authz.DecisionAllowed:
		httpx.JSON(w, http.StatusOK, map[string]any{"decision": decision})
		return
	case authz.DecisionDenied:
		httpx.JSON(w, http.StatusOK, map[string]any{"decision": decision})
		return
	}

	req, err := h.service.RequestApproval(r.Context(), actor, dto.ActionKey, dto.ContextID, dto.ContextData)
	if err != nil {
		if errors.Is(err, ErrAdminBypass) {
			httpx.JSON(w, http.StatusOK, map[string]any{"decision": authz.DecisionAllowed})
			return
		}
		h.logger.Error("create approval request", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"decision": authz.DecisionNeedsApproval,
		"request":  req,
	})
}

// Check reports whether the current actor holds a usable approval.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	actionKey := r.URL.Query().Get("action_key")
	if actionKey == "" || !h.authzSvc.Catalog().Known(actionKey) {
		httpx.Problem(w, http.StatusBadRequest, "Unknown Capability", actionKey)
		return
	}
	var contextID *string
	if v := r.URL.Query().Get("context_id"); v != "" {
		contextID = &v
	}
	decision, err := h.service.CheckApproval(r.Context(), actor, actionKey, contextID)
	if err != nil {
		h.logger.Error("check approval", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"decision": decision})
}

// Authorize runs the plain action authorizer without touching the queue.
func (h *Handler) Authorize(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	actionKey := r.URL.Query().Get("action_key")
	if actionKey == "" {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if node, err := h.authzSvc.Catalog().Lookup(actionKey); err != nil || node.Kind != catalog.KindAction {
		httpx.Problem(w, http.StatusBadRequest, "Unknown Capability", actionKey)
		return
	}
	decision, err := h.authzSvc.Authorize(r.Context(), actor, actionKey)
	if err != nil {
		h.logger.Error("authorize action", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"decision": decision})
}

// ListPending returns the reviewable queue.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.service.ListPending(r.Context())
	if err != nil {
		h.logger.Error("list pending", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"requests": pending})
}

// ListHistory returns reviewed and expired requests.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.ListHistory(r.Context())
	if err != nil {
		h.logger.Error("list history", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"requests": history})
}

// Review applies a decision to a pending request.
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	var dto ReviewRequestDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}

	reviewed, err := h.service.ReviewRequest(r.Context(), actor, id, Status(dto.Decision), dto.Notes)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotAuthorized):
			httpx.RespondError(w, httpx.ErrForbidden)
		case errors.Is(err, ErrNotFound):
			httpx.RespondError(w, httpx.ErrNotFound)
		case errors.Is(err, ErrInvalidTransition):
			httpx.Problem(w, http.StatusConflict, "Already Reviewed", "request is no longer pending")
		default:
			h.logger.Error("review request", slog.String("id", id.String()), slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"request": reviewed})
}
