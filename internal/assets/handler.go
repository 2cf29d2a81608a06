package assets

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-fin/meridian/internal/platform/httpx"
)

// RegisterAssetRequest is the JSON payload for registering an asset.
type RegisterAssetRequest struct {
	Name            string     `json:"name" validate:"required,max=120"`
	Category        string     `json:"category" validate:"required,max=60"`
	AcquisitionCost float64    `json:"acquisition_cost" validate:"required,gt=0"`
	ResidualValue   float64    `json:"residual_value" validate:"gte=0"`
	LifeMonths      int        `json:"life_months" validate:"required,gt=0"`
	AcquiredAt      *time.Time `json:"acquired_at,omitempty"`
}

// DepreciationRunRequest triggers a depreciation run for one period.
type DepreciationRunRequest struct {
	Period  string `json:"period" validate:"required,len=7"`
	ActorID int64  `json:"actor_id" validate:"required,gt=0"`
}

// AssetResponse is the JSON projection of a fixed asset.
type AssetResponse struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Category        string    `json:"category"`
	AcquisitionCost float64   `json:"acquisition_cost"`
	ResidualValue   float64   `json:"residual_value"`
	BookValue       float64   `json:"book_value"`
	LifeMonths      int       `json:"life_months"`
	AcquiredAt      time.Time `json:"acquired_at"`
	IsActive        bool      `json:"is_active"`
}

// ListAssetsResponse wraps a page of assets.
type ListAssetsResponse struct {
	Assets     []AssetResponse `json:"assets"`
	Page       int             `json:"page"`
	PerPage    int             `json:"per_page"`
	Total      int             `json:"total"`
	TotalPages int             `json:"total_pages"`
}

func toAssetResponse(a FixedAsset) AssetResponse {
	return AssetResponse{
		ID:              a.ID,
		Name:            a.Name,
		Category:        a.Category,
		AcquisitionCost: a.AcquisitionCost,
		ResidualValue:   a.ResidualValue,
		BookValue:       a.BookValue,
		LifeMonths:      a.LifeMonths,
		AcquiredAt:      a.AcquiredAt,
		IsActive:        a.IsActive,
	}
}

// Handler serves fixed asset endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the assets HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches asset routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/assets", h.List)
	r.Post("/assets", h.Register)
	r.Get("/assets/{id}", h.Get)
	r.Post("/assets/depreciation-runs", h.RunDepreciation)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	assets, pagination, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list assets", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := ListAssetsResponse{
		Assets:     make([]AssetResponse, 0, len(assets)),
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		Total:      pagination.Total,
		TotalPages: pagination.TotalPages,
	}
	for _, a := range assets {
		resp.Assets = append(resp.Assets, toAssetResponse(a))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterAssetRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := CreateInput{
		Name:            req.Name,
		Category:        req.Category,
		AcquisitionCost: req.AcquisitionCost,
		ResidualValue:   req.ResidualValue,
		LifeMonths:      req.LifeMonths,
	}
	if req.AcquiredAt != nil {
		in.AcquiredAt = *req.AcquiredAt
	}
	asset, err := h.service.Register(r.Context(), in)
	if err != nil {
		h.logger.Error("register asset", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toAssetResponse(asset))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "asset id must be numeric")
		return
	}
	asset, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get asset", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toAssetResponse(asset))
}

func (h *Handler) RunDepreciation(w http.ResponseWriter, r *http.Request) {
	var req DepreciationRunRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := h.service.RunDepreciation(r.Context(), req.Period, req.ActorID)
	if err != nil {
		h.logger.Error("depreciation run", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
