package audit

import (
	"context"
	"fmt"
	"io"
	"time"

	"openhours/internal/models"
)

// Store persists audit entries.
type Store interface {
	// InsertAuditEntry appends an entry.
	InsertAuditEntry(ctx context.Context, e models.AuditEntry) error

	// ListAuditEntries returns entries created in [from, to).
	ListAuditEntries(ctx context.Context, from, to time.Time) ([]models.AuditEntry, error)

	// DeleteAuditEntriesBefore removes entries older than cutoff.
	DeleteAuditEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ExcelWriter writes data to Excel format.
type ExcelWriter interface {
	// AddSheet adds a new sheet with the given name.
	AddSheet(name string) error

	// WriteHeader writes column headers to current sheet.
	WriteHeader(columns []string) error

	// WriteRow writes a data row to current sheet.
	WriteRow(row []interface{}) error

	// Save writes the Excel file to the writer.
	Save(w io.Writer) error

	// SaveToFile writes the Excel file to disk.
	SaveToFile(path string) error
}

// GenerateFilename creates a filename like "audit_2025-01-01_2025-02-01.xlsx".
func GenerateFilename(from, to time.Time) string {
	return fmt.Sprintf("audit_%s_%s.xlsx", from.Format("2006-01-02"), to.Format("2006-01-02"))
}
