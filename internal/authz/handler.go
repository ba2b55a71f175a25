package authz

import (
	"log/slog"
	"net/http"
	"sort"

	"github.com/agrovista-erp/agrovista-erp/internal/platform/httpx"
)

// Handler exposes the effective permission surface consumed by the UI shell.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// Effective returns the sorted effective capability set for the current actor.
func (h *Handler) Effective(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	effective, err := h.service.EffectiveSet(r.Context(), actor)
	if err != nil {
		h.logger.Error("effective set", slog.Int64("user_id", actor.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	keys := make([]string, 0, len(effective))
	for key := range effective {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	httpx.JSON(w, http.StatusOK, map[string]any{"capabilities": keys})
}

// Navigation returns the catalog tree filtered to the current actor.
func (h *Handler) Navigation(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	tree, err := h.service.Navigation(r.Context(), actor)
	if err != nil {
		h.logger.Error("navigation tree", slog.Int64("user_id", actor.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"navigation": tree})
}
