package shared

import "errors"

var (
	// ErrUnbalanced indicates total debits != total credits.
	ErrUnbalanced = errors.New("ledger: journal lines must balance")
	// ErrEmptyLines indicates an entry without lines.
	ErrEmptyLines = errors.New("ledger: journal requires at least one line")
	// ErrInvalidLine indicates a line violating the single-sided rule.
	ErrInvalidLine = errors.New("ledger: line must carry exactly one of debit or credit")
	// ErrEntryNotFound indicates a missing journal entry.
	ErrEntryNotFound = errors.New("ledger: journal entry not found")
	// ErrAccountNotFound indicates a missing account.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrDuplicateCode indicates an account code collision.
	ErrDuplicateCode = errors.New("ledger: account code already exists")
	// ErrDuplicateNumber indicates an entry number collision.
	ErrDuplicateNumber = errors.New("ledger: entry number already exists")
	// ErrInvalidStatus indicates an invalid lifecycle transition.
	ErrInvalidStatus = errors.New("ledger: invalid status transition")
	// ErrMappingNotFound indicates a missing account mapping.
	ErrMappingNotFound = errors.New("ledger: account mapping not found")
	// ErrSourceAlreadyLinked indicates the originating event was posted before.
	ErrSourceAlreadyLinked = errors.New("ledger: source already linked to an entry")
)
