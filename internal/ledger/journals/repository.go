package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-fin/meridian/internal/ledger/shared"
	"github.com/meridian-fin/meridian/internal/platform/db"
	internalshared "github.com/meridian-fin/meridian/internal/shared"
)

// Repository encapsulates DB operations for journal entries.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]JournalEntry, int, error)
	Get(ctx context.Context, entryID int64) (JournalEntry, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// EntryRecord carries the header fields persisted for a new entry.
type EntryRecord struct {
	EntryNumber   string
	EntryDate     time.Time
	Description   string
	ReferenceType ReferenceType
	ReferenceID   uuid.UUID
	Status        EntryStatus
	PostedAt      *time.Time
	PostedBy      *int64
	CreatedBy     int64
}

// TxRepository exposes the operations available within a posting transaction.
// Adapters obtain one bound to their own transaction via NewTx so a business
// update and its ledger posting commit or roll back together.
type TxRepository interface {
	// NextSequence atomically increments and returns the per-(prefix, day)
	// counter used for entry numbering.
	NextSequence(ctx context.Context, prefix string, day time.Time) (int64, error)
	InsertEntry(ctx context.Context, rec EntryRecord) (JournalEntry, error)
	InsertLines(ctx context.Context, entryID int64, lines []LineInput) error
	ReplaceLines(ctx context.Context, entryID int64, lines []LineInput) error
	LinkSource(ctx context.Context, referenceType ReferenceType, referenceID uuid.UUID, entryID int64) error
	GetEntryForUpdate(ctx context.Context, entryID int64) (JournalEntry, error)
	GetLines(ctx context.Context, entryID int64) ([]JournalEntryLine, error)
	MarkPosted(ctx context.Context, entryID, postedBy int64, at time.Time) error
	MarkReversed(ctx context.Context, entryID, reversedBy int64, at time.Time, reversalEntryID int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository builds a pool-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

// NewTx wraps an open transaction in the posting repository surface.
func NewTx(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

const entryColumns = `id, entry_number, entry_date, description, reference_type, reference_id, status,
posted_at, posted_by, reversed_at, reversed_by, reversal_entry_id, created_by, created_at, updated_at`

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	var refID *uuid.UUID
	err := row.Scan(&e.ID, &e.EntryNumber, &e.EntryDate, &e.Description, &e.ReferenceType, &refID, &e.Status,
		&e.PostedAt, &e.PostedBy, &e.ReversedAt, &e.ReversedBy, &e.ReversalEntryID, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrEntryNotFound
		}
		return JournalEntry{}, err
	}
	if refID != nil {
		e.ReferenceID = *refID
	}
	return e, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]JournalEntry, int, error) {
	where := ``
	args := []any{}
	if filter.Status != nil {
		where = ` WHERE status=$1`
		args = append(args, *filter.Status)
	}
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	p := internalshared.NewPagination(filter.Page, filter.PerPage, total)
	query := `SELECT ` + entryColumns + ` FROM journal_entries` + where +
		fmt.Sprintf(` ORDER BY entry_date DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, p.PerPage, p.Offset())
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	return entries, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, entryID int64) (JournalEntry, error) {
	entry, err := scanEntry(r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, entryID))
	if err != nil {
		return JournalEntry{}, err
	}
	rows, err := r.db.Query(ctx, `SELECT id, entry_id, account_id, debit, credit, description, created_at
FROM journal_lines WHERE entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line JournalEntryLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Debit, &line.Credit, &line.Description, &line.CreatedAt); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) NextSequence(ctx context.Context, prefix string, day time.Time) (int64, error) {
	var seq int64
	err := r.tx.QueryRow(ctx, `INSERT INTO entry_counters (prefix, day, value) VALUES ($1,$2,1)
ON CONFLICT (prefix, day) DO UPDATE SET value = entry_counters.value + 1
RETURNING value`, prefix, day.Format("2006-01-02")).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (r *txRepository) InsertEntry(ctx context.Context, rec EntryRecord) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries
(entry_number, entry_date, description, reference_type, reference_id, status, posted_at, posted_by, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING `+entryColumns,
		rec.EntryNumber, rec.EntryDate, rec.Description, rec.ReferenceType, nullUUID(rec.ReferenceID),
		rec.Status, rec.PostedAt, rec.PostedBy, rec.CreatedBy)
	entry, err := scanEntry(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return JournalEntry{}, shared.ErrDuplicateNumber
		}
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertLines(ctx context.Context, entryID int64, lines []LineInput) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (entry_id, account_id, debit, credit, description)
VALUES ($1,$2,$3,$4,$5)`, entryID, line.AccountID, toNumeric(line.Debit), toNumeric(line.Credit), line.Description); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) ReplaceLines(ctx context.Context, entryID int64, lines []LineInput) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE entry_id=$1`, entryID); err != nil {
		return err
	}
	return r.InsertLines(ctx, entryID, lines)
}

func (r *txRepository) LinkSource(ctx context.Context, referenceType ReferenceType, referenceID uuid.UUID, entryID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (reference_type, reference_id, entry_id) VALUES ($1,$2,$3)`,
		referenceType, referenceID, entryID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrSourceAlreadyLinked
		}
		return err
	}
	return nil
}

func (r *txRepository) GetEntryForUpdate(ctx context.Context, entryID int64) (JournalEntry, error) {
	return scanEntry(r.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, entryID))
}

func (r *txRepository) GetLines(ctx context.Context, entryID int64) ([]JournalEntryLine, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, entry_id, account_id, debit, credit, description, created_at
FROM journal_lines WHERE entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalEntryLine
	for rows.Next() {
		var line JournalEntryLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Debit, &line.Credit, &line.Description, &line.CreatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (r *txRepository) MarkPosted(ctx context.Context, entryID, postedBy int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, posted_at=$3, posted_by=$4, updated_at=NOW()
WHERE id=$1`, entryID, StatusPosted, at, postedBy)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrEntryNotFound
	}
	return nil
}

func (r *txRepository) MarkReversed(ctx context.Context, entryID, reversedBy int64, at time.Time, reversalEntryID int64) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, reversed_at=$3, reversed_by=$4, reversal_entry_id=$5, updated_at=NOW()
WHERE id=$1`, entryID, StatusReversed, at, reversedBy, reversalEntryID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrEntryNotFound
	}
	return nil
}

// Helpers
func nullUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

func toNumeric(v float64) any {
	return fmt.Sprintf("%.2f", v)
}
