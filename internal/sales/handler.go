package sales

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

// RecordSaleRequest is the JSON payload for a new sale.
type RecordSaleRequest struct {
	Customer    string     `json:"customer" validate:"required,max=120"`
	Description string     `json:"description,omitempty" validate:"max=255"`
	Amount      float64    `json:"amount" validate:"required,gt=0"`
	SoldAt      *time.Time `json:"sold_at,omitempty"`
	CreatedBy   int64      `json:"created_by" validate:"required,gt=0"`
}

// PostSaleRequest carries the acting user.
type PostSaleRequest struct {
	ActorID int64 `json:"actor_id" validate:"required,gt=0"`
}

// SaleResponse is the JSON projection of a sale.
type SaleResponse struct {
	ID          int64      `json:"id"`
	Customer    string     `json:"customer"`
	Description string     `json:"description,omitempty"`
	Amount      float64    `json:"amount"`
	Status      string     `json:"status"`
	SoldAt      time.Time  `json:"sold_at"`
	CreatedBy   int64      `json:"created_by"`
	PostedBy    *int64     `json:"posted_by,omitempty"`
	PostedAt    *time.Time `json:"posted_at,omitempty"`
	EntryID     *int64     `json:"entry_id,omitempty"`
}

// ListSalesResponse wraps a page of sales.
type ListSalesResponse struct {
	Sales      []SaleResponse `json:"sales"`
	Page       int            `json:"page"`
	PerPage    int            `json:"per_page"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
}

func toSaleResponse(s Sale) SaleResponse {
	return SaleResponse{
		ID:          s.ID,
		Customer:    s.Customer,
		Description: s.Description,
		Amount:      s.Amount,
		Status:      string(s.Status),
		SoldAt:      s.SoldAt,
		CreatedBy:   s.CreatedBy,
		PostedBy:    s.PostedBy,
		PostedAt:    s.PostedAt,
		EntryID:     s.EntryID,
	}
}

// Handler serves sales endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the sales HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sales", h.List)
	r.Post("/sales", h.Record)
	r.Get("/sales/{id}", h.Get)
	r.Post("/sales/{id}/post", h.Post)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	sales, pagination, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list sales", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := ListSalesResponse{
		Sales:      make([]SaleResponse, 0, len(sales)),
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		Total:      pagination.Total,
		TotalPages: pagination.TotalPages,
	}
	for _, s := range sales {
		resp.Sales = append(resp.Sales, toSaleResponse(s))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	in := CreateInput{
		Customer:    req.Customer,
		Description: req.Description,
		Amount:      req.Amount,
		CreatedBy:   req.CreatedBy,
	}
	if req.SoldAt != nil {
		in.SoldAt = *req.SoldAt
	}
	sale, err := h.service.Record(r.Context(), in)
	if err != nil {
		h.logger.Error("record sale", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toSaleResponse(sale))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.saleID(w, r)
	if !ok {
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get sale", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toSaleResponse(sale))
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	id, ok := h.saleID(w, r)
	if !ok {
		return
	}
	var req PostSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sale, err := h.service.Post(r.Context(), id, req.ActorID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		case errors.Is(err, ErrAlreadyPosted):
			httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
		default:
			h.logger.Error("post sale", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, toSaleResponse(sale))
}

func (h *Handler) saleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "sale id must be numeric")
		return 0, false
	}
	return id, true
}
