package users

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

// Handler exposes user administration endpoints.
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

// List returns a page of users.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	list, pagination, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": list, "pagination": pagination})
}

// Show returns one user together with their override exceptions.
func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("get user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": user})
}

// SetRole assigns or clears the user's role.
func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var dto SetRoleDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.SetRole(r.Context(), id, dto.RoleID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("set user role", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// SetActive toggles the account.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var dto SetActiveDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.service.SetActive(r.Context(), id, dto.IsActive); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.RespondError(w, httpx.ErrNotFound)
			return
		}
		h.logger.Error("set user active", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// SetOverride records a per-user capability exception.
func (h *Handler) SetOverride(w http.ResponseWriter, r *http.Request) {
	admin, okActor := authz.ActorFromContext(r.Context())
	if !okActor {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var dto SetOverrideDTO
	if err := httpx.DecodeJSON(r, &dto); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.authzSvc.SetUserOverride(r.Context(), admin, id, dto.CapabilityKey, dto.CanView); err != nil {
		if errors.Is(err, catalog.ErrUnknownCapability) {
			httpx.Problem(w, http.StatusBadRequest, "Unknown Capability", dto.CapabilityKey)
			return
		}
		h.logger.Error("set user override", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// ClearOverride removes an exception.
func (h *Handler) ClearOverride(w http.ResponseWriter, r *http.Request) {
	admin, okActor := authz.ActorFromContext(r.Context())
	if !okActor {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "capability")
	if key == "" {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if err := h.authzSvc.ClearUserOverride(r.Context(), admin, id, key); err != nil {
		h.logger.Error("clear user override", slog.Any("error", err))
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
