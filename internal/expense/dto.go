package expense

import "time"

// CreateExpenseRequest is the JSON payload for a new claim.
type CreateExpenseRequest struct {
	Description string     `json:"description" validate:"required,max=255"`
	Category    string     `json:"category" validate:"required,max=60"`
	Amount      float64    `json:"amount" validate:"required,gt=0"`
	IncurredAt  *time.Time `json:"incurred_at,omitempty"`
	CreatedBy   int64      `json:"created_by" validate:"required,gt=0"`
}

// ReviewRequest carries the acting reviewer.
type ReviewRequest struct {
	ReviewerID int64 `json:"reviewer_id" validate:"required,gt=0"`
}

// ExpenseResponse is the JSON projection of an expense.
type ExpenseResponse struct {
	ID          int64      `json:"id"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Amount      float64    `json:"amount"`
	Status      string     `json:"status"`
	IncurredAt  time.Time  `json:"incurred_at"`
	CreatedBy   int64      `json:"created_by"`
	ReviewedBy  *int64     `json:"reviewed_by,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	EntryID     *int64     `json:"entry_id,omitempty"`
}

// ListExpensesResponse wraps a page of expenses.
type ListExpensesResponse struct {
	Expenses   []ExpenseResponse `json:"expenses"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	Total      int               `json:"total"`
	TotalPages int               `json:"total_pages"`
}

func toExpenseResponse(e Expense) ExpenseResponse {
	return ExpenseResponse{
		ID:          e.ID,
		Description: e.Description,
		Category:    e.Category,
		Amount:      e.Amount,
		Status:      string(e.Status),
		IncurredAt:  e.IncurredAt,
		CreatedBy:   e.CreatedBy,
		ReviewedBy:  e.ReviewedBy,
		ReviewedAt:  e.ReviewedAt,
		EntryID:     e.EntryID,
	}
}
