// Package resolver translates business (module, category) pairs into ledger
// accounts without hardcoding account codes in calling modules.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/meridian-fin/meridian/internal/ledger/accounts"
	"github.com/meridian-fin/meridian/internal/ledger/mappings"
	"github.com/meridian-fin/meridian/internal/ledger/shared"
)

// MappingSource provides mapping lookups.
type MappingSource interface {
	Get(ctx context.Context, module, category string) (mappings.AccountMapping, error)
}

// AccountSource provides account lookups and idempotent creation.
type AccountSource interface {
	GetByID(ctx context.Context, id int64) (accounts.Account, error)
	GetOrCreate(ctx context.Context, code, name string, accountType accounts.AccountType) (accounts.Account, error)
}

// Default describes the fallback account used when no mapping is configured.
type Default struct {
	Code string
	Name string
	Type accounts.AccountType
}

// Service resolves accounts for integration postings.
type Service struct {
	mappings MappingSource
	accounts AccountSource
}

// New constructs a resolver over the given sources. Adapters construct one
// per transaction so resolution and posting share the same visibility.
func New(m MappingSource, a AccountSource) *Service {
	return &Service{mappings: m, accounts: a}
}

// Resolve returns the mapped account for (module, category), falling back to
// get-or-create with the caller-supplied default. A posting never fails
// merely because an administrator has not configured a mapping.
func (s *Service) Resolve(ctx context.Context, module, category string, def Default) (accounts.Account, error) {
	if module == "" || category == "" {
		return accounts.Account{}, errors.New("ledger: module and category required")
	}
	if def.Code == "" || !def.Type.Valid() {
		return accounts.Account{}, fmt.Errorf("ledger: resolve %s/%s requires a valid default account", module, category)
	}
	mapping, err := s.mappings.Get(ctx, module, category)
	if err == nil {
		return s.accounts.GetByID(ctx, mapping.AccountID)
	}
	if !errors.Is(err, shared.ErrMappingNotFound) {
		return accounts.Account{}, err
	}
	return s.accounts.GetOrCreate(ctx, def.Code, def.Name, def.Type)
}
