package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-fin/meridian/internal/ledger/accounts"
	"github.com/meridian-fin/meridian/internal/ledger/mappings"
	"github.com/meridian-fin/meridian/internal/ledger/shared"
)

type stubMappings struct {
	byKey map[string]mappings.AccountMapping
}

func (s stubMappings) Get(ctx context.Context, module, category string) (mappings.AccountMapping, error) {
	m, ok := s.byKey[module+"/"+category]
	if !ok {
		return mappings.AccountMapping{}, shared.ErrMappingNotFound
	}
	return m, nil
}

type stubAccounts struct {
	byID    map[int64]accounts.Account
	byCode  map[string]accounts.Account
	created []string
	nextID  int64
}

func (s *stubAccounts) GetByID(ctx context.Context, id int64) (accounts.Account, error) {
	a, ok := s.byID[id]
	if !ok {
		return accounts.Account{}, shared.ErrAccountNotFound
	}
	return a, nil
}

func (s *stubAccounts) GetOrCreate(ctx context.Context, code, name string, accountType accounts.AccountType) (accounts.Account, error) {
	if a, ok := s.byCode[code]; ok {
		return a, nil
	}
	s.nextID++
	a := accounts.Account{ID: s.nextID, Code: code, Name: name, Type: accountType, IsActive: true, IsSystem: true}
	if s.byCode == nil {
		s.byCode = make(map[string]accounts.Account)
	}
	s.byCode[code] = a
	s.created = append(s.created, code)
	return a, nil
}

func TestResolvePrefersConfiguredMapping(t *testing.T) {
	travel := accounts.Account{ID: 7, Code: "6010", Name: "Travel", Type: accounts.AccountTypeExpense}
	m := stubMappings{byKey: map[string]mappings.AccountMapping{
		"expense/travel": {Module: "expense", Category: "travel", AccountID: 7},
	}}
	a := &stubAccounts{byID: map[int64]accounts.Account{7: travel}}

	got, err := New(m, a).Resolve(context.Background(), "expense", "travel", Default{
		Code: "6000", Name: "General Expense", Type: accounts.AccountTypeExpense,
	})
	require.NoError(t, err)
	require.Equal(t, travel, got)
	require.Empty(t, a.created)
}

func TestResolveFallsBackToDefault(t *testing.T) {
	m := stubMappings{byKey: map[string]mappings.AccountMapping{}}
	a := &stubAccounts{}

	got, err := New(m, a).Resolve(context.Background(), "expense", "travel", Default{
		Code: "6000", Name: "General Expense", Type: accounts.AccountTypeExpense,
	})
	require.NoError(t, err)
	require.Equal(t, "6000", got.Code)
	require.True(t, got.IsSystem)
	require.Equal(t, []string{"6000"}, a.created)

	// A second resolution reuses the previously created account.
	again, err := New(m, a).Resolve(context.Background(), "expense", "meals", Default{
		Code: "6000", Name: "General Expense", Type: accounts.AccountTypeExpense,
	})
	require.NoError(t, err)
	require.Equal(t, got.ID, again.ID)
	require.Len(t, a.created, 1)
}

func TestResolveRejectsMissingDefault(t *testing.T) {
	m := stubMappings{byKey: map[string]mappings.AccountMapping{}}
	a := &stubAccounts{}

	_, err := New(m, a).Resolve(context.Background(), "expense", "travel", Default{})
	require.Error(t, err)
	require.Empty(t, a.created)
}
