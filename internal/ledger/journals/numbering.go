package journals

import (
	"fmt"
	"time"
)

// Entry number prefixes. The prefix is cosmetic; uniqueness of the full
// number is enforced by a constraint on journal_entries.entry_number.
const (
	PrefixManual       = "JE"
	PrefixAuto         = "AUTO"
	PrefixDepreciation = "DEP"
)

// FormatEntryNumber renders <PREFIX>-<YYYYMMDD>-<4-digit sequence>.
func FormatEntryNumber(prefix string, day time.Time, seq int64) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, day.Format("20060102"), seq)
}

// defaultPrefix picks the prefix for entries whose caller did not set one.
func defaultPrefix(ref ReferenceType) string {
	if ref == ReferenceManual {
		return PrefixManual
	}
	return PrefixAuto
}
