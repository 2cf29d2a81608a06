package payroll

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

// CreateRunRequest is the JSON payload for a new payroll run.
type CreateRunRequest struct {
	Period      string  `json:"period" validate:"required,len=7"`
	Description string  `json:"description,omitempty" validate:"max=255"`
	Net         float64 `json:"net" validate:"required,gt=0"`
	Withholding float64 `json:"withholding" validate:"gte=0"`
	CreatedBy   int64   `json:"created_by" validate:"required,gt=0"`
}

// ApproveRunRequest carries the approving user.
type ApproveRunRequest struct {
	ApproverID int64 `json:"approver_id" validate:"required,gt=0"`
}

// RunResponse is the JSON projection of a payroll run.
type RunResponse struct {
	ID          int64      `json:"id"`
	Period      string     `json:"period"`
	Description string     `json:"description"`
	Gross       float64    `json:"gross"`
	Net         float64    `json:"net"`
	Withholding float64    `json:"withholding"`
	Status      string     `json:"status"`
	CreatedBy   int64      `json:"created_by"`
	ApprovedBy  *int64     `json:"approved_by,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	EntryID     *int64     `json:"entry_id,omitempty"`
}

// ListRunsResponse wraps a page of payroll runs.
type ListRunsResponse struct {
	Runs       []RunResponse `json:"runs"`
	Page       int           `json:"page"`
	PerPage    int           `json:"per_page"`
	Total      int           `json:"total"`
	TotalPages int           `json:"total_pages"`
}

func toRunResponse(r Run) RunResponse {
	return RunResponse{
		ID:          r.ID,
		Period:      r.Period,
		Description: r.Description,
		Gross:       r.Gross,
		Net:         r.Net,
		Withholding: r.Withholding,
		Status:      string(r.Status),
		CreatedBy:   r.CreatedBy,
		ApprovedBy:  r.ApprovedBy,
		ApprovedAt:  r.ApprovedAt,
		EntryID:     r.EntryID,
	}
}

// Handler serves payroll endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the payroll HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes attaches payroll routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/payroll/runs", h.List)
	r.Post("/payroll/runs", h.Create)
	r.Get("/payroll/runs/{id}", h.Get)
	r.Post("/payroll/runs/{id}/approve", h.Approve)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	runs, pagination, err := h.service.List(r.Context(), page, perPage)
	if err != nil {
		h.logger.Error("list payroll runs", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := ListRunsResponse{
		Runs:       make([]RunResponse, 0, len(runs)),
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		Total:      pagination.Total,
		TotalPages: pagination.TotalPages,
	}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, toRunResponse(run))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	run, err := h.service.Create(r.Context(), CreateInput{
		Period:      req.Period,
		Description: req.Description,
		Net:         req.Net,
		Withholding: req.Withholding,
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicatePeriod) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
			return
		}
		h.logger.Error("create payroll run", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRunResponse(run))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}
	run, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get payroll run", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRunResponse(run))
}

func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.runID(w, r)
	if !ok {
		return
	}
	var req ApproveRunRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Payload", "request body must be valid JSON")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	run, err := h.service.Approve(r.Context(), id, req.ApproverID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		case errors.Is(err, ErrAlreadyApproved):
			httpx.Problem(w, http.StatusConflict, "Invalid State", err.Error())
		default:
			h.logger.Error("approve payroll run", slog.Any("error", err))
			httpx.RespondError(w, err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, toRunResponse(run))
}

func (h *Handler) runID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "run id must be numeric")
		return 0, false
	}
	return id, true
}
