package accounts

// CreateAccountRequest is the JSON payload for explicit account creation.
type CreateAccountRequest struct {
	Code     string `json:"code" validate:"required,max=20"`
	Name     string `json:"name" validate:"required,max=120"`
	Type     string `json:"type" validate:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	ParentID *int64 `json:"parent_id,omitempty" validate:"omitempty,gt=0"`
	Currency string `json:"currency,omitempty" validate:"omitempty,len=3"`
}

// AccountResponse is the JSON projection of an account.
type AccountResponse struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	ParentID *int64 `json:"parent_id,omitempty"`
	Currency string `json:"currency"`
	IsActive bool   `json:"is_active"`
	IsSystem bool   `json:"is_system"`
}

// ListAccountsResponse wraps a page of accounts.
type ListAccountsResponse struct {
	Accounts   []AccountResponse `json:"accounts"`
	Page       int               `json:"page"`
	PerPage    int               `json:"per_page"`
	Total      int               `json:"total"`
	TotalPages int               `json:"total_pages"`
}

func toAccountResponse(a Account) AccountResponse {
	return AccountResponse{
		ID:       a.ID,
		Code:     a.Code,
		Name:     a.Name,
		Type:     string(a.Type),
		ParentID: a.ParentID,
		Currency: a.Currency,
		IsActive: a.IsActive,
		IsSystem: a.IsSystem,
	}
}
