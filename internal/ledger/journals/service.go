package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-fin/meridian/internal/ledger/shared"
	"github.com/meridian-fin/meridian/internal/observability"
	internalshared "github.com/meridian-fin/meridian/internal/shared"
)

// AuditPort records ledger events for compliance.
type AuditPort interface {
	Record(ctx context.Context, log internalshared.AuditLog) error
}

// Service is the posting engine: the only component that creates or mutates
// journal entries.
type Service struct {
	repo    Repository
	audit   AuditPort
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService constructs the posting engine.
func NewService(repo Repository, audit AuditPort, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// List returns entries ordered by entry date descending.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]JournalEntry, internalshared.Pagination, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, internalshared.Pagination{}, err
	}
	return entries, internalshared.NewPagination(filter.Page, filter.PerPage, total), nil
}

// Get fetches one entry with its lines.
func (s *Service) Get(ctx context.Context, entryID int64) (JournalEntry, error) {
	return s.repo.Get(ctx, entryID)
}

// Create validates and persists a new journal entry in its own transaction.
func (s *Service) Create(ctx context.Context, input CreateInput) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = s.CreateInTx(ctx, tx, input)
		return err
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.RecordPosted(entry)
	s.recordAudit(ctx, input.CreatedBy, "journal.create", entry, map[string]any{
		"entry_number":   entry.EntryNumber,
		"reference_type": string(entry.ReferenceType),
		"status":         string(entry.Status),
	})
	return entry, nil
}

// CreateInTx runs the posting engine inside a caller-owned transaction.
// Integration adapters use it so the triggering record's update and the
// ledger rows commit as one unit.
func (s *Service) CreateInTx(ctx context.Context, tx TxRepository, input CreateInput) (JournalEntry, error) {
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	now := s.now()
	entryDate := input.EntryDate
	if entryDate.IsZero() {
		entryDate = now
	}
	prefix := input.Prefix
	if prefix == "" {
		prefix = defaultPrefix(input.ReferenceType)
	}
	seq, err := tx.NextSequence(ctx, prefix, entryDate)
	if err != nil {
		return JournalEntry{}, err
	}
	rec := EntryRecord{
		EntryNumber:   FormatEntryNumber(prefix, entryDate, seq),
		EntryDate:     entryDate,
		Description:   input.Description,
		ReferenceType: input.ReferenceType,
		ReferenceID:   input.ReferenceID,
		Status:        input.Status,
		CreatedBy:     input.CreatedBy,
	}
	if input.Status == StatusPosted {
		rec.PostedAt = &now
		rec.PostedBy = &input.CreatedBy
	}
	entry, err := tx.InsertEntry(ctx, rec)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := tx.InsertLines(ctx, entry.ID, input.Lines); err != nil {
		return JournalEntry{}, err
	}
	if input.ReferenceID != uuid.Nil {
		if err := tx.LinkSource(ctx, input.ReferenceType, input.ReferenceID, entry.ID); err != nil {
			return JournalEntry{}, err
		}
	}
	entry.Lines = toEntryLines(entry.ID, input.Lines, now)
	return entry, nil
}

// RecordPosted bumps the posted-entries counter for an entry created through
// CreateInTx. Callers invoke it only after their transaction commits, so a
// failed commit never inflates the metric.
func (s *Service) RecordPosted(entry JournalEntry) {
	if entry.Status == StatusPosted {
		s.metrics.RecordEntryPosted(string(entry.ReferenceType))
	}
}

// Post transitions a DRAFT entry to POSTED. Lines are re-validated: a draft
// may have been edited since creation.
func (s *Service) Post(ctx context.Context, entryID, postedBy int64) (JournalEntry, error) {
	if entryID == 0 {
		return JournalEntry{}, errors.New("ledger: entry id required")
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return fmt.Errorf("%w: cannot post %s entry", shared.ErrInvalidStatus, current.Status)
		}
		lines, err := tx.GetLines(ctx, entryID)
		if err != nil {
			return err
		}
		if err := ValidateLines(toLineInputs(lines)); err != nil {
			return err
		}
		now := s.now()
		if err := tx.MarkPosted(ctx, entryID, postedBy, now); err != nil {
			return err
		}
		entry = current
		entry.Status = StatusPosted
		entry.PostedAt = &now
		entry.PostedBy = &postedBy
		entry.Lines = lines
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.metrics.RecordEntryPosted(string(entry.ReferenceType))
	s.recordAudit(ctx, postedBy, "journal.post", entry, map[string]any{
		"entry_number": entry.EntryNumber,
	})
	return entry, nil
}

// Reverse creates a mirrored ADJUSTMENT entry for a POSTED entry and marks
// the original REVERSED. The original's lines are never mutated; reversal is
// additive and preserves full history. Reversing a non-POSTED entry,
// including an already reversed one, is rejected.
func (s *Service) Reverse(ctx context.Context, entryID, reversedBy int64) (JournalEntry, error) {
	if entryID == 0 {
		return JournalEntry{}, errors.New("ledger: entry id required")
	}
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if original.Status != StatusPosted {
			return fmt.Errorf("%w: cannot reverse %s entry", shared.ErrInvalidStatus, original.Status)
		}
		lines, err := tx.GetLines(ctx, entryID)
		if err != nil {
			return err
		}
		reversal, err = s.CreateInTx(ctx, tx, CreateInput{
			Description:   fmt.Sprintf("Reversal of %s", original.EntryNumber),
			ReferenceType: ReferenceAdjustment,
			Prefix:        PrefixAuto,
			EntryDate:     s.now(),
			Status:        StatusPosted,
			CreatedBy:     reversedBy,
			Lines:         mirrorLines(lines),
		})
		if err != nil {
			return err
		}
		return tx.MarkReversed(ctx, entryID, reversedBy, s.now(), reversal.ID)
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.RecordPosted(reversal)
	s.metrics.RecordEntryReversed()
	s.recordAudit(ctx, reversedBy, "journal.reverse", reversal, map[string]any{
		"original_entry_id": entryID,
		"reversal_number":   reversal.EntryNumber,
	})
	return reversal, nil
}

// UpdateDraft replaces the line set of a DRAFT entry. Lines are owned by the
// entry and replaced wholesale; posted entries are immutable.
func (s *Service) UpdateDraft(ctx context.Context, entryID int64, lines []LineInput, actorID int64) (JournalEntry, error) {
	if entryID == 0 {
		return JournalEntry{}, errors.New("ledger: entry id required")
	}
	if err := ValidateLines(lines); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if current.Status != StatusDraft {
			return fmt.Errorf("%w: cannot edit %s entry", shared.ErrInvalidStatus, current.Status)
		}
		if err := tx.ReplaceLines(ctx, entryID, lines); err != nil {
			return err
		}
		entry = current
		entry.Lines = toEntryLines(entryID, lines, s.now())
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, actorID, "journal.update_draft", entry, map[string]any{
		"entry_number": entry.EntryNumber,
		"line_count":   len(lines),
	})
	return entry, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entry JournalEntry, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalshared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta:     meta,
		At:       s.now(),
	})
}

func mirrorLines(lines []JournalEntryLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID:   line.AccountID,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: line.Description,
		})
	}
	return out
}

func toLineInputs(lines []JournalEntryLine) []LineInput {
	out := make([]LineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, LineInput{
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	return out
}

func toEntryLines(entryID int64, lines []LineInput, ts time.Time) []JournalEntryLine {
	out := make([]JournalEntryLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, JournalEntryLine{
			EntryID:     entryID,
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
			CreatedAt:   ts,
		})
	}
	return out
}
