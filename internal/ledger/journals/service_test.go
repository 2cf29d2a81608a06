package journals

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-fin/meridian/internal/ledger/shared"
	"github.com/meridian-fin/meridian/internal/observability"
)

type memoryRepo struct {
	mu       sync.Mutex
	entries  map[int64]JournalEntry
	lines    map[int64][]JournalEntryLine
	counters map[string]int64
	links    map[string]int64
	nextID   int64
	nextLine int64

	commitErr error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		entries:  map[int64]JournalEntry{},
		lines:    map[int64][]JournalEntryLine{},
		counters: map[string]int64{},
		links:    map[string]int64{},
	}
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]JournalEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []JournalEntry
	for _, e := range m.entries {
		if filter.Status != nil && e.Status != *filter.Status {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(ctx context.Context, entryID int64) (JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[entryID]
	if !ok {
		return JournalEntry{}, shared.ErrEntryNotFound
	}
	e.Lines = append([]JournalEntryLine(nil), m.lines[entryID]...)
	return e, nil
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	snapshot := m.clone()
	m.mu.Unlock()
	if err := fn(ctx, &memoryTx{repo: m}); err != nil {
		m.mu.Lock()
		m.restore(snapshot)
		m.mu.Unlock()
		return err
	}
	if m.commitErr != nil {
		m.mu.Lock()
		m.restore(snapshot)
		m.mu.Unlock()
		return m.commitErr
	}
	return nil
}

func (m *memoryRepo) clone() *memoryRepo {
	c := newMemoryRepo()
	c.nextID, c.nextLine = m.nextID, m.nextLine
	for k, v := range m.entries {
		c.entries[k] = v
	}
	for k, v := range m.lines {
		c.lines[k] = append([]JournalEntryLine(nil), v...)
	}
	for k, v := range m.counters {
		c.counters[k] = v
	}
	for k, v := range m.links {
		c.links[k] = v
	}
	return c
}

func (m *memoryRepo) restore(s *memoryRepo) {
	m.entries, m.lines, m.counters, m.links = s.entries, s.lines, s.counters, s.links
	m.nextID, m.nextLine = s.nextID, s.nextLine
}

type memoryTx struct {
	repo *memoryRepo
}

func (t *memoryTx) NextSequence(ctx context.Context, prefix string, day time.Time) (int64, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	key := prefix + "|" + day.Format("20060102")
	t.repo.counters[key]++
	return t.repo.counters[key], nil
}

func (t *memoryTx) InsertEntry(ctx context.Context, rec EntryRecord) (JournalEntry, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for _, e := range t.repo.entries {
		if e.EntryNumber == rec.EntryNumber {
			return JournalEntry{}, shared.ErrDuplicateNumber
		}
	}
	t.repo.nextID++
	entry := JournalEntry{
		ID:            t.repo.nextID,
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
	t.repo.entries[entry.ID] = entry
	return entry, nil
}

func (t *memoryTx) InsertLines(ctx context.Context, entryID int64, lines []LineInput) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	for _, line := range lines {
		t.repo.nextLine++
		t.repo.lines[entryID] = append(t.repo.lines[entryID], JournalEntryLine{
			ID:          t.repo.nextLine,
			EntryID:     entryID,
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	return nil
}

func (t *memoryTx) ReplaceLines(ctx context.Context, entryID int64, lines []LineInput) error {
	t.repo.mu.Lock()
	t.repo.lines[entryID] = nil
	t.repo.mu.Unlock()
	return t.InsertLines(ctx, entryID, lines)
}

func (t *memoryTx) LinkSource(ctx context.Context, referenceType ReferenceType, referenceID uuid.UUID, entryID int64) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	key := string(referenceType) + "|" + referenceID.String()
	if _, exists := t.repo.links[key]; exists {
		return shared.ErrSourceAlreadyLinked
	}
	t.repo.links[key] = entryID
	return nil
}

func (t *memoryTx) GetEntryForUpdate(ctx context.Context, entryID int64) (JournalEntry, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	e, ok := t.repo.entries[entryID]
	if !ok {
		return JournalEntry{}, shared.ErrEntryNotFound
	}
	return e, nil
}

func (t *memoryTx) GetLines(ctx context.Context, entryID int64) ([]JournalEntryLine, error) {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	return append([]JournalEntryLine(nil), t.repo.lines[entryID]...), nil
}

func (t *memoryTx) MarkPosted(ctx context.Context, entryID, postedBy int64, at time.Time) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	e, ok := t.repo.entries[entryID]
	if !ok {
		return shared.ErrEntryNotFound
	}
	e.Status = StatusPosted
	e.PostedAt = &at
	e.PostedBy = &postedBy
	t.repo.entries[entryID] = e
	return nil
}

func (t *memoryTx) MarkReversed(ctx context.Context, entryID, reversedBy int64, at time.Time, reversalEntryID int64) error {
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	e, ok := t.repo.entries[entryID]
	if !ok {
		return shared.ErrEntryNotFound
	}
	e.Status = StatusReversed
	e.ReversedAt = &at
	e.ReversedBy = &reversedBy
	e.ReversalEntryID = &reversalEntryID
	t.repo.entries[entryID] = e
	return nil
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil, nil)
	fixed := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return fixed })
	return svc
}

func balancedLines() []LineInput {
	return []LineInput{
		{AccountID: 1, Debit: 150.00, Description: "office chairs"},
		{AccountID: 2, Credit: 150.00},
	}
}

func TestCreateAssignsSequentialNumbers(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	first, err := svc.Create(context.Background(), CreateInput{
		Description:   "first",
		ReferenceType: ReferenceManual,
		Status:        StatusDraft,
		CreatedBy:     7,
		Lines:         balancedLines(),
	})
	require.NoError(t, err)
	require.Equal(t, "JE-20260315-0001", first.EntryNumber)
	require.Equal(t, StatusDraft, first.Status)
	require.Nil(t, first.PostedAt)

	second, err := svc.Create(context.Background(), CreateInput{
		Description:   "second",
		ReferenceType: ReferenceManual,
		Status:        StatusDraft,
		CreatedBy:     7,
		Lines:         balancedLines(),
	})
	require.NoError(t, err)
	require.Equal(t, "JE-20260315-0002", second.EntryNumber)
}

func TestCreatePostedStampsPostingFields(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	entry, err := svc.Create(context.Background(), CreateInput{
		Description:   "auto posting",
		ReferenceType: ReferenceExpense,
		ReferenceID:   uuid.NewSHA1(uuid.NameSpaceOID, []byte("EXPENSE:42")),
		Status:        StatusPosted,
		CreatedBy:     3,
		Lines:         balancedLines(),
	})
	require.NoError(t, err)
	require.Equal(t, "AUTO-20260315-0001", entry.EntryNumber)
	require.Equal(t, StatusPosted, entry.Status)
	require.NotNil(t, entry.PostedAt)
	require.NotNil(t, entry.PostedBy)
	require.Equal(t, int64(3), *entry.PostedBy)
}

func scrapeMetrics(t *testing.T, metrics *observability.Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestCreateCountsPostedMetricOnlyAfterCommit(t *testing.T) {
	repo := newMemoryRepo()
	metrics := observability.NewMetrics()
	svc := NewService(repo, nil, metrics)
	fixed := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return fixed })

	repo.commitErr = errors.New("connection reset")
	_, err := svc.Create(context.Background(), CreateInput{
		Description:   "doomed posting",
		ReferenceType: ReferenceExpense,
		ReferenceID:   uuid.NewSHA1(uuid.NameSpaceOID, []byte("EXPENSE:7")),
		Status:        StatusPosted,
		CreatedBy:     3,
		Lines:         balancedLines(),
	})
	require.Error(t, err)
	require.NotContains(t, scrapeMetrics(t, metrics), `meridian_journal_entries_posted_total{reference_type="EXPENSE"}`)

	repo.commitErr = nil
	_, err = svc.Create(context.Background(), CreateInput{
		Description:   "committed posting",
		ReferenceType: ReferenceExpense,
		ReferenceID:   uuid.NewSHA1(uuid.NameSpaceOID, []byte("EXPENSE:8")),
		Status:        StatusPosted,
		CreatedBy:     3,
		Lines:         balancedLines(),
	})
	require.NoError(t, err)
	require.Contains(t, scrapeMetrics(t, metrics), `meridian_journal_entries_posted_total{reference_type="EXPENSE"} 1`)
}

func TestCreateRejectsUnbalanced(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		Description:   "unbalanced",
		ReferenceType: ReferenceManual,
		Status:        StatusDraft,
		CreatedBy:     1,
		Lines: []LineInput{
			{AccountID: 1, Debit: 100.00},
			{AccountID: 2, Credit: 99.00},
		},
	})
	require.ErrorIs(t, err, shared.ErrUnbalanced)
	require.Empty(t, repo.entries)
	require.Empty(t, repo.counters)
}

func TestCreateToleratesRoundingWithinACent(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		Description:   "rounding",
		ReferenceType: ReferenceManual,
		Status:        StatusDraft,
		CreatedBy:     1,
		Lines: []LineInput{
			{AccountID: 1, Debit: 33.335},
			{AccountID: 2, Credit: 33.33},
		},
	})
	require.NoError(t, err)
}

func TestCreateRejectsMalformedLines(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	cases := []struct {
		name  string
		lines []LineInput
		want  error
	}{
		{"empty", nil, shared.ErrEmptyLines},
		{"both sides", []LineInput{
			{AccountID: 1, Debit: 50, Credit: 50},
			{AccountID: 2, Credit: 0},
		}, shared.ErrInvalidLine},
		{"neither side", []LineInput{
			{AccountID: 1},
			{AccountID: 2},
		}, shared.ErrInvalidLine},
		{"negative", []LineInput{
			{AccountID: 1, Debit: -10},
			{AccountID: 2, Credit: -10},
		}, shared.ErrInvalidLine},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), CreateInput{
				Description:   "bad lines",
				ReferenceType: ReferenceManual,
				Status:        StatusDraft,
				CreatedBy:     1,
				Lines:         tc.lines,
			})
			require.ErrorIs(t, err, tc.want)
		})
	}
	require.Empty(t, repo.entries)
}

func TestPostTransitionsDraftOnce(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	draft, err := svc.Create(context.Background(), CreateInput{
		Description:   "to post",
		ReferenceType: ReferenceManual,
		Status:        StatusDraft,
		CreatedBy:     1,
		Lines:         balancedLines(),
	})
	require.NoError(t, err)

	posted, err := svc.Post(context.Background(), draft.ID, 9)
	require.NoError(t, err)
	require.Equal(t, StatusPosted, posted.Status)
	require.NotNil(t, posted.PostedBy)
	require.Equal(t, int64(9), *posted.PostedBy)

	_, err = svc.Post(context.Background(), draft.ID, 9)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestPostRevalidatesEditedDraft(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	draft, err := svc.Create(context.Background(), CreateInput{
		Description:   "tampered",
		ReferenceType: ReferenceManual,
		Status:        StatusDraft,
		CreatedBy:     1,
		Lines:         balancedLines(),
	})
	require.NoError(t, err)

	repo.mu.Lock()
	repo.lines[draft.ID][0].Debit = 999.00
	repo.mu.Unlock()

	_, err = svc.Post(context.Background(), draft.ID, 1)
	require.ErrorIs(t, err, shared.ErrUnbalanced)

	entry, err := svc.Get(context.Background(), draft.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, entry.Status)
}

func TestReverseMirrorsLinesAndLinksOriginal(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	original, err := svc.Create(context.Background(), CreateInput{
		Description:   "sale",
		ReferenceType: ReferenceSale,
		ReferenceID:   uuid.NewSHA1(uuid.NameSpaceOID, []byte("SALE:11")),
		Status:        StatusPosted,
		CreatedBy:     2,
		Lines: []LineInput{
			{AccountID: 10, Debit: 500.00, Description: "cash"},
			{AccountID: 40, Credit: 500.00, Description: "revenue"},
		},
	})
	require.NoError(t, err)

	reversal, err := svc.Reverse(context.Background(), original.ID, 5)
	require.NoError(t, err)
	require.Equal(t, ReferenceAdjustment, reversal.ReferenceType)
	require.Equal(t, StatusPosted, reversal.Status)
	require.Contains(t, reversal.Description, original.EntryNumber)
	require.Len(t, reversal.Lines, 2)
	require.Equal(t, 500.00, reversal.Lines[0].Credit)
	require.Equal(t, 0.0, reversal.Lines[0].Debit)
	require.Equal(t, 500.00, reversal.Lines[1].Debit)

	updated, err := svc.Get(context.Background(), original.ID)
	require.NoError(t, err)
	require.Equal(t, StatusReversed, updated.Status)
	require.NotNil(t, updated.ReversalEntryID)
	require.Equal(t, reversal.ID, *updated.ReversalEntryID)
	require.Len(t, updated.Lines, 2, "reversal must not touch original lines")

	_, err = svc.Reverse(context.Background(), original.ID, 5)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestReverseRejectsDraft(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	draft, err := svc.Create(context.Background(), CreateInput{
		Description:   "draft",
		ReferenceType: ReferenceManual,
		Status:        StatusDraft,
		CreatedBy:     1,
		Lines:         balancedLines(),
	})
	require.NoError(t, err)

	_, err = svc.Reverse(context.Background(), draft.ID, 1)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestCreateRejectsDuplicateSourceLink(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	refID := uuid.NewSHA1(uuid.NameSpaceOID, []byte("EXPENSE:7"))
	_, err := svc.Create(context.Background(), CreateInput{
		Description:   "first posting",
		ReferenceType: ReferenceExpense,
		ReferenceID:   refID,
		Status:        StatusPosted,
		CreatedBy:     1,
		Lines:         balancedLines(),
	})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), CreateInput{
		Description:   "double posting",
		ReferenceType: ReferenceExpense,
		ReferenceID:   refID,
		Status:        StatusPosted,
		CreatedBy:     1,
		Lines:         balancedLines(),
	})
	require.ErrorIs(t, err, shared.ErrSourceAlreadyLinked)
	require.Len(t, repo.entries, 1, "rejected posting must roll back")
}

func TestUpdateDraftReplacesLines(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	draft, err := svc.Create(context.Background(), CreateInput{
		Description:   "editable",
		ReferenceType: ReferenceManual,
		Status:        StatusDraft,
		CreatedBy:     1,
		Lines:         balancedLines(),
	})
	require.NoError(t, err)

	updated, err := svc.UpdateDraft(context.Background(), draft.ID, []LineInput{
		{AccountID: 3, Debit: 75.00},
		{AccountID: 4, Credit: 75.00},
	}, 1)
	require.NoError(t, err)
	require.Len(t, updated.Lines, 2)
	require.Equal(t, int64(3), updated.Lines[0].AccountID)

	_, err = svc.Post(context.Background(), draft.ID, 1)
	require.NoError(t, err)

	_, err = svc.UpdateDraft(context.Background(), draft.ID, balancedLines(), 1)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestEntryNumberFormat(t *testing.T) {
	day := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "DEP-20260102-0042", FormatEntryNumber(PrefixDepreciation, day, 42))
	require.Equal(t, fmt.Sprintf("%s-20260102-1000", PrefixManual), FormatEntryNumber(PrefixManual, day, 1000))
}
