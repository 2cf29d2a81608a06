package expense

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-fin/meridian/internal/ledger/accounts"
	"github.com/meridian-fin/meridian/internal/ledger/journals"
	"github.com/meridian-fin/meridian/internal/ledger/mappings"
	ledgershared "github.com/meridian-fin/meridian/internal/ledger/shared"
)

// memoryStore backs the expense repository and the ledger surfaces reached
// through TxRepository, so approve-and-post runs against one state.
type memoryStore struct {
	expenses map[int64]Expense
	nextExp  int64

	entries   map[int64]journals.JournalEntry
	lines     map[int64][]journals.JournalEntryLine
	counters  map[string]int64
	links     map[string]int64
	nextEntry int64

	accounts    map[string]accounts.Account
	nextAccount int64

	mappings map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		expenses: map[int64]Expense{},
		entries:  map[int64]journals.JournalEntry{},
		lines:    map[int64][]journals.JournalEntryLine{},
		counters: map[string]int64{},
		links:    map[string]int64{},
		accounts: map[string]accounts.Account{},
		mappings: map[string]int64{},
	}
}

func (m *memoryStore) Create(ctx context.Context, in CreateInput) (Expense, error) {
	m.nextExp++
	e := Expense{
		ID:          m.nextExp,
		Description: in.Description,
		Category:    in.Category,
		Amount:      in.Amount,
		Status:      StatusPending,
		IncurredAt:  in.IncurredAt,
		CreatedBy:   in.CreatedBy,
	}
	m.expenses[e.ID] = e
	return e, nil
}

func (m *memoryStore) Get(ctx context.Context, id int64) (Expense, error) {
	e, ok := m.expenses[id]
	if !ok {
		return Expense{}, ErrNotFound
	}
	return e, nil
}

func (m *memoryStore) List(ctx context.Context, status *Status, page, perPage int) ([]Expense, int, error) {
	var out []Expense
	for _, e := range m.expenses {
		if status != nil && e.Status != *status {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := m.clone()
	if err := fn(ctx, &memoryTx{store: m}); err != nil {
		*m = *snapshot
		return err
	}
	return nil
}

func (m *memoryStore) clone() *memoryStore {
	c := newMemoryStore()
	c.nextExp, c.nextEntry, c.nextAccount = m.nextExp, m.nextEntry, m.nextAccount
	for k, v := range m.expenses {
		c.expenses[k] = v
	}
	for k, v := range m.entries {
		c.entries[k] = v
	}
	for k, v := range m.lines {
		c.lines[k] = append([]journals.JournalEntryLine(nil), v...)
	}
	for k, v := range m.counters {
		c.counters[k] = v
	}
	for k, v := range m.links {
		c.links[k] = v
	}
	for k, v := range m.accounts {
		c.accounts[k] = v
	}
	for k, v := range m.mappings {
		c.mappings[k] = v
	}
	return c
}

type memoryTx struct {
	store *memoryStore
}

func (t *memoryTx) GetForUpdate(ctx context.Context, id int64) (Expense, error) {
	return t.store.Get(ctx, id)
}

func (t *memoryTx) MarkReviewed(ctx context.Context, id int64, status Status, reviewedBy int64, at time.Time, entryID *int64) error {
	e, ok := t.store.expenses[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = status
	e.ReviewedBy = &reviewedBy
	e.ReviewedAt = &at
	e.EntryID = entryID
	t.store.expenses[id] = e
	return nil
}

func (t *memoryTx) Ledger() journals.TxRepository   { return &ledgerTx{store: t.store} }
func (t *memoryTx) Accounts() accounts.Repository   { return &accountsStub{store: t.store} }
func (t *memoryTx) Mappings() mappings.Repository   { return &mappingsStub{store: t.store} }

type ledgerTx struct {
	store *memoryStore
}

func (t *ledgerTx) NextSequence(ctx context.Context, prefix string, day time.Time) (int64, error) {
	key := prefix + "|" + day.Format("20060102")
	t.store.counters[key]++
	return t.store.counters[key], nil
}

func (t *ledgerTx) InsertEntry(ctx context.Context, rec journals.EntryRecord) (journals.JournalEntry, error) {
	t.store.nextEntry++
	e := journals.JournalEntry{
		ID:            t.store.nextEntry,
		EntryNumber:   rec.EntryNumber,
		EntryDate:     rec.EntryDate,
		Description:   rec.Description,
		ReferenceType: rec.ReferenceType,
		ReferenceID:   rec.ReferenceID,
		Status:        rec.Status,
		PostedAt:      rec.PostedAt,
		PostedBy:      rec.PostedBy,
		CreatedBy:     rec.CreatedBy,
	}
	t.store.entries[e.ID] = e
	return e, nil
}

func (t *ledgerTx) InsertLines(ctx context.Context, entryID int64, lines []journals.LineInput) error {
	for _, line := range lines {
		t.store.lines[entryID] = append(t.store.lines[entryID], journals.JournalEntryLine{
			EntryID:     entryID,
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	return nil
}

func (t *ledgerTx) ReplaceLines(ctx context.Context, entryID int64, lines []journals.LineInput) error {
	t.store.lines[entryID] = nil
	return t.InsertLines(ctx, entryID, lines)
}

func (t *ledgerTx) LinkSource(ctx context.Context, referenceType journals.ReferenceType, referenceID uuid.UUID, entryID int64) error {
	key := string(referenceType) + "|" + referenceID.String()
	if _, exists := t.store.links[key]; exists {
		return ledgershared.ErrSourceAlreadyLinked
	}
	t.store.links[key] = entryID
	return nil
}

func (t *ledgerTx) GetEntryForUpdate(ctx context.Context, entryID int64) (journals.JournalEntry, error) {
	e, ok := t.store.entries[entryID]
	if !ok {
		return journals.JournalEntry{}, ledgershared.ErrEntryNotFound
	}
	return e, nil
}

func (t *ledgerTx) GetLines(ctx context.Context, entryID int64) ([]journals.JournalEntryLine, error) {
	return t.store.lines[entryID], nil
}

func (t *ledgerTx) MarkPosted(ctx context.Context, entryID, postedBy int64, at time.Time) error {
	return nil
}

func (t *ledgerTx) MarkReversed(ctx context.Context, entryID, reversedBy int64, at time.Time, reversalEntryID int64) error {
	return nil
}

type accountsStub struct {
	store *memoryStore
}

func (s *accountsStub) GetByID(ctx context.Context, id int64) (accounts.Account, error) {
	for _, a := range s.store.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return accounts.Account{}, ledgershared.ErrAccountNotFound
}

func (s *accountsStub) GetByCode(ctx context.Context, code string) (accounts.Account, error) {
	a, ok := s.store.accounts[code]
	if !ok {
		return accounts.Account{}, ledgershared.ErrAccountNotFound
	}
	return a, nil
}

func (s *accountsStub) GetOrCreate(ctx context.Context, code, name string, accountType accounts.AccountType) (accounts.Account, error) {
	if a, ok := s.store.accounts[code]; ok {
		return a, nil
	}
	s.store.nextAccount++
	a := accounts.Account{ID: s.store.nextAccount, Code: code, Name: name, Type: accountType, IsActive: true, IsSystem: true}
	s.store.accounts[code] = a
	return a, nil
}

func (s *accountsStub) Create(ctx context.Context, in accounts.CreateInput) (accounts.Account, error) {
	return s.GetOrCreate(ctx, in.Code, in.Name, in.Type)
}

func (s *accountsStub) List(ctx context.Context, page, perPage int) ([]accounts.Account, int, error) {
	return nil, 0, nil
}

func (s *accountsStub) SetActive(ctx context.Context, id int64, active bool) error {
	return nil
}

type mappingsStub struct {
	store *memoryStore
}

func (s *mappingsStub) Get(ctx context.Context, module, category string) (mappings.AccountMapping, error) {
	id, ok := s.store.mappings[module+"|"+category]
	if !ok {
		return mappings.AccountMapping{}, ledgershared.ErrMappingNotFound
	}
	return mappings.AccountMapping{Module: module, Category: category, AccountID: id}, nil
}

func (s *mappingsStub) Upsert(ctx context.Context, mapping mappings.AccountMapping) error {
	s.store.mappings[mapping.Module+"|"+mapping.Category] = mapping.AccountID
	return nil
}

func newTestService(store *memoryStore) *Service {
	svc := NewService(store, journals.NewService(nil, nil, nil), slog.Default())
	fixed := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return fixed })
	return svc
}

func TestApprovePostsBalancedEntry(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)

	exp, err := svc.Create(context.Background(), CreateInput{
		Description: "office chairs",
		Category:    "office supplies",
		Amount:      150.00,
		CreatedBy:   4,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, exp.Status)
	require.Empty(t, store.entries, "pending expenses must not reach the ledger")

	approved, err := svc.Approve(context.Background(), exp.ID, 9)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.NotNil(t, approved.EntryID)

	entry := store.entries[*approved.EntryID]
	require.Equal(t, journals.StatusPosted, entry.Status)
	require.Equal(t, journals.ReferenceExpense, entry.ReferenceType)
	require.Equal(t, "AUTO-20260401-0001", entry.EntryNumber)

	lines := store.lines[entry.ID]
	require.Len(t, lines, 2)
	require.Equal(t, 150.00, lines[0].Debit)
	require.Equal(t, 150.00, lines[1].Credit)

	// with no mapping configured both sides fall back to auto-created accounts
	debitAccount := store.accounts["6000"]
	creditAccount := store.accounts["1010"]
	require.Equal(t, debitAccount.ID, lines[0].AccountID)
	require.Equal(t, creditAccount.ID, lines[1].AccountID)
	require.True(t, debitAccount.IsSystem)
	require.Equal(t, accounts.AccountTypeExpense, debitAccount.Type)
	require.Equal(t, accounts.AccountTypeAsset, creditAccount.Type)
}

func TestApproveUsesConfiguredMapping(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)

	travel := accounts.Account{ID: 77, Code: "6050", Name: "Travel", Type: accounts.AccountTypeExpense, IsActive: true}
	store.accounts[travel.Code] = travel
	store.nextAccount = 100
	store.mappings["expense|travel"] = travel.ID

	exp, err := svc.Create(context.Background(), CreateInput{
		Description: "flight to Berlin",
		Category:    "travel",
		Amount:      420.00,
		CreatedBy:   4,
	})
	require.NoError(t, err)

	approved, err := svc.Approve(context.Background(), exp.ID, 9)
	require.NoError(t, err)

	lines := store.lines[*approved.EntryID]
	require.Equal(t, travel.ID, lines[0].AccountID)
	_, created := store.accounts["6000"]
	require.False(t, created, "mapped categories must not auto-create the fallback account")
}

func TestApproveIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)

	exp, err := svc.Create(context.Background(), CreateInput{
		Description: "subscription",
		Category:    "software",
		Amount:      30.00,
		CreatedBy:   4,
	})
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), exp.ID, 9)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), exp.ID, 9)
	require.ErrorIs(t, err, ErrAlreadyReviewed)
	require.Len(t, store.entries, 1)
}

func TestApproveRollsBackWhenPostingFails(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)

	exp, err := svc.Create(context.Background(), CreateInput{
		Description: "duplicate source",
		Category:    "misc",
		Amount:      10.00,
		CreatedBy:   4,
	})
	require.NoError(t, err)

	// simulate an earlier posting that already claimed this expense's source id
	key := fmt.Sprintf("%s|%s", journals.ReferenceExpense, sourceID(exp.ID))
	store.links[key] = 999

	_, err = svc.Approve(context.Background(), exp.ID, 9)
	require.ErrorIs(t, err, ledgershared.ErrSourceAlreadyLinked)

	current, err := svc.Get(context.Background(), exp.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, current.Status, "failed posting must leave the expense pending")
	require.Empty(t, store.entries)
}

func TestRejectSkipsLedger(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store)

	exp, err := svc.Create(context.Background(), CreateInput{
		Description: "personal purchase",
		Category:    "misc",
		Amount:      55.00,
		CreatedBy:   4,
	})
	require.NoError(t, err)

	rejected, err := svc.Reject(context.Background(), exp.ID, 9)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Nil(t, rejected.EntryID)
	require.Empty(t, store.entries)

	_, err = svc.Approve(context.Background(), exp.ID, 9)
	require.ErrorIs(t, err, ErrAlreadyReviewed)
}
