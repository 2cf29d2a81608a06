package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	internalshared "github.com/meridian-fin/meridian/internal/shared"
)

// ListResult groups a page of accounts with pagination metadata.
type ListResult struct {
	Accounts   []Account
	Pagination internalshared.Pagination
}

// Service exposes chart of accounts operations.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
}

// NewService constructs the accounts service.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Get fetches an account by id.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByCode fetches an account by its unique code.
func (s *Service) GetByCode(ctx context.Context, code string) (Account, error) {
	return s.repo.GetByCode(ctx, code)
}

// GetOrCreate returns the account with the given code, creating a system
// account when no account carries that code yet.
func (s *Service) GetOrCreate(ctx context.Context, code, name string, accountType AccountType) (Account, error) {
	if code == "" {
		return Account{}, errors.New("ledger: account code required")
	}
	if !accountType.Valid() {
		return Account{}, fmt.Errorf("ledger: invalid account type %q", accountType)
	}
	account, err := s.repo.GetOrCreate(ctx, code, name, accountType)
	if err != nil {
		return Account{}, err
	}
	s.invalidate(ctx)
	return account, nil
}

// Create registers a new account explicitly. Duplicate codes are rejected.
func (s *Service) Create(ctx context.Context, in CreateInput) (Account, error) {
	if in.Code == "" || in.Name == "" {
		return Account{}, errors.New("ledger: account code and name required")
	}
	if !in.Type.Valid() {
		return Account{}, fmt.Errorf("ledger: invalid account type %q", in.Type)
	}
	account, err := s.repo.Create(ctx, in)
	if err != nil {
		return Account{}, err
	}
	s.invalidate(ctx)
	return account, nil
}

// List returns a page of accounts ordered by code.
func (s *Service) List(ctx context.Context, page, perPage int) (ListResult, error) {
	if s.cache == nil {
		return s.listUncached(ctx, page, perPage)
	}
	key, err := s.cache.BuildKey(ctx, page, perPage)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("accounts cache unavailable", slog.Any("error", err))
		}
		return s.listUncached(ctx, page, perPage)
	}
	var result ListResult
	err = s.cache.FetchJSON(ctx, key, &result, func(ctx context.Context) (any, error) {
		return s.listUncached(ctx, page, perPage)
	})
	if err != nil {
		return s.listUncached(ctx, page, perPage)
	}
	return result, nil
}

// Deactivate soft-deletes an account; referenced accounts are never removed.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) listUncached(ctx context.Context, page, perPage int) (ListResult, error) {
	accounts, total, err := s.repo.List(ctx, page, perPage)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{
		Accounts:   accounts,
		Pagination: internalshared.NewPagination(page, perPage, total),
	}, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil && s.logger != nil {
		s.logger.Warn("accounts cache bump failed", slog.Any("error", err))
	}
}
