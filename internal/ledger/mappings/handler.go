package mappings

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-fin/meridian/internal/ledger/shared"
	"github.com/meridian-fin/meridian/internal/platform/httpx"
)

// UpsertMappingRequest installs or replaces a (module, category) mapping.
type UpsertMappingRequest struct {
	Module    string `json:"module" validate:"required,max=60"`
	Category  string `json:"category" validate:"required,max=60"`
	AccountID int64  `json:"account_id" validate:"required,gt=0"`
}

// MappingResponse is the JSON projection of a mapping.
type MappingResponse struct {
	Module    string `json:"module"`
	Category  string `json:"category"`
	AccountID int64  `json:"account_id"`
}

// Handler serves account mapping administration endpoints.
type Handler struct {
	logger   *slog.Logger
	repo     Repository
	validate *validator.Validate
}

// NewHandler constructs the mappings HTTP handler.
func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{logger: logger, repo: repo, validate: validator.New()}
}

// MountRoutes attaches mapping routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/mappings/{module}/{category}", h.Get)
	r.Put("/mappings", h.Upsert)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	mapping, err := h.repo.Get(r.Context(), chi.URLParam(r, "module"), chi.URLParam(r, "category"))
	if err != nil {
		if errors.Is(err, shared.ErrMappingNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get mapping", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, MappingResponse{
		Module:    mapping.Module,
		Category:  mapping.Category,
		AccountID: mapping.AccountID,
	})
}

func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req UpsertMappingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.repo.Upsert(r.Context(), AccountMapping{
		Module:    req.Module,
		Category:  req.Category,
		AccountID: req.AccountID,
	}); err != nil {
		h.logger.Error("upsert mapping", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, MappingResponse{
		Module:    req.Module,
		Category:  req.Category,
		AccountID: req.AccountID,
	})
}
