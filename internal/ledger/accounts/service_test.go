package accounts

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-fin/meridian/internal/ledger/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	byCode map[string]Account
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byCode: make(map[string]Account)}
}

func (r *memoryRepo) GetByID(ctx context.Context, id int64) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byCode {
		if a.ID == id {
			return a, nil
		}
	}
	return Account{}, shared.ErrAccountNotFound
}

func (r *memoryRepo) GetByCode(ctx context.Context, code string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byCode[code]
	if !ok {
		return Account{}, shared.ErrAccountNotFound
	}
	return a, nil
}

func (r *memoryRepo) GetOrCreate(ctx context.Context, code, name string, accountType AccountType) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byCode[code]; ok {
		return a, nil
	}
	r.nextID++
	a := Account{
		ID:       r.nextID,
		Code:     code,
		Name:     name,
		Type:     accountType,
		Currency: defaultCurrency,
		IsActive: true,
		IsSystem: true,
	}
	r.byCode[code] = a
	return a, nil
}

func (r *memoryRepo) Create(ctx context.Context, in CreateInput) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byCode[in.Code]; ok {
		return Account{}, shared.ErrDuplicateCode
	}
	r.nextID++
	a := Account{
		ID:       r.nextID,
		Code:     in.Code,
		Name:     in.Name,
		Type:     in.Type,
		ParentID: in.ParentID,
		Currency: in.Currency,
		IsActive: true,
	}
	if a.Currency == "" {
		a.Currency = defaultCurrency
	}
	r.byCode[in.Code] = a
	return a, nil
}

func (r *memoryRepo) List(ctx context.Context, page, perPage int) ([]Account, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Account, 0, len(r.byCode))
	for _, a := range r.byCode {
		out = append(out, a)
	}
	return out, len(out), nil
}

func (r *memoryRepo) SetActive(ctx context.Context, id int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for code, a := range r.byCode {
		if a.ID == id {
			a.IsActive = active
			r.byCode[code] = a
			return nil
		}
	}
	return shared.ErrAccountNotFound
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	service := NewService(newMemoryRepo(), nil, nil)

	first, err := service.GetOrCreate(context.Background(), "6000", "General Expense", AccountTypeExpense)
	require.NoError(t, err)
	require.True(t, first.IsSystem)
	require.True(t, first.IsActive)

	second, err := service.GetOrCreate(context.Background(), "6000", "Something Else", AccountTypeAsset)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "General Expense", second.Name)
	require.Equal(t, AccountTypeExpense, second.Type)
}

func TestGetOrCreateConcurrentSingleAccount(t *testing.T) {
	repo := newMemoryRepo()
	service := NewService(repo, nil, nil)

	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			_, err := service.GetOrCreate(context.Background(), "6000", "General Expense", AccountTypeExpense)
			return err
		})
	}
	require.NoError(t, g.Wait())

	_, total, err := repo.List(context.Background(), 1, 100)
	require.NoError(t, err)
	require.Equal(t, 1, total)
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	service := NewService(newMemoryRepo(), nil, nil)

	_, err := service.Create(context.Background(), CreateInput{Code: "1010", Name: "Cash", Type: AccountTypeAsset})
	require.NoError(t, err)

	_, err = service.Create(context.Background(), CreateInput{Code: "1010", Name: "Cash Again", Type: AccountTypeAsset})
	require.ErrorIs(t, err, shared.ErrDuplicateCode)
}

func TestCreateRejectsInvalidType(t *testing.T) {
	service := NewService(newMemoryRepo(), nil, nil)

	_, err := service.Create(context.Background(), CreateInput{Code: "9999", Name: "Bogus", Type: AccountType("WEIRD")})
	require.Error(t, err)
}

func TestListUsesCacheUntilBumped(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemoryRepo()
	service := NewService(repo, NewCache(client, time.Minute), nil)

	_, err := service.Create(context.Background(), CreateInput{Code: "1010", Name: "Cash", Type: AccountTypeAsset})
	require.NoError(t, err)

	first, err := service.List(context.Background(), 1, 20)
	require.NoError(t, err)
	require.Equal(t, 1, first.Pagination.Total)

	// Creation bumps the version, so the next listing sees the new account.
	_, err = service.Create(context.Background(), CreateInput{Code: "4000", Name: "Revenue", Type: AccountTypeRevenue})
	require.NoError(t, err)

	second, err := service.List(context.Background(), 1, 20)
	require.NoError(t, err)
	require.Equal(t, 2, second.Pagination.Total)
}
