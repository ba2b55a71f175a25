package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/agrovista-erp/agrovista-erp/internal/authz"
	"github.com/agrovista-erp/agrovista-erp/internal/catalog"
	"github.com/agrovista-erp/agrovista-erp/internal/platform/httpx"
	"github.com/agrovista-erp/agrovista-erp/internal/shared"
)

// Handler exposes role administration endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	authzSvc *authz.Service
	validate *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, authzSvc *authz.Service) *Handler {
	return &Handler{logger: logger, service: service, authzSvc: authzSvc, validate: validator.New()}
}

// List returns all roles.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": list})
}

// Show returns one role with its grants and action rows.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	role, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	grants, err := h.service.Grants(r.Context(), id)
	if err != nil {
		h.logger.Error("role grants", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	perms, err := h.service.ActionPermissions(r.Context(), id)
	if err != nil {
		h.logger.Error("role action permissions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"role":               role,
		"grants":             grants,
		"action_permissions": perms,
	})
}

// Create adds a role.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var dto CreateRoleDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	role, err := h.service.Create(r.Context(), dto.Name, dto.Description)
	if err != nil {
		h.logger.Error("create role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"role": role})
}

// Update changes a role.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var dto UpdateRoleDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	role, err := h.service.Update(r.Context(), id, dto.Name, dto.Description)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("update role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role": role})
}

// Delete removes a role.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("delete role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// SetGrants replaces the role's navigation grant set.
func (h *Handler) SetGrants(w http.ResponseWriter, r *http.Request) {
	admin, okActor := authz.ActorFromContext(r.Context())
	if !okActor {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var dto SetGrantsDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.authzSvc.SetRoleGrants(r.Context(), admin, id, dto.CapabilityKeys); err != nil {
		if errors.Is(err, catalog.ErrUnknownCapability) {
			httpx.Problem(w, http.StatusBadRequest, "Unknown Capability", err.Error())
			return
		}
		h.logger.Error("set role grants", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// SetActionPermission writes one explicit action row.
func (h *Handler) SetActionPermission(w http.ResponseWriter, r *http.Request) {
	admin, okActor := authz.ActorFromContext(r.Context())
	if !okActor {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var dto SetActionPermissionDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.authzSvc.SetActionPermission(r.Context(), admin, id, dto.ActionKey, dto.CanExecute); err != nil {
		if errors.Is(err, catalog.ErrUnknownCapability) {
			httpx.Problem(w, http.StatusBadRequest, "Unknown Capability", dto.ActionKey)
			return
		}
		h.logger.Error("set role action permission", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return 0, false
	}
	return id, true
}
