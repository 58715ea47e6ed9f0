package audit

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"openhours/internal/models"
)

var columns = []string{"Time", "Event", "Open", "Source", "Override expires", "ID"}

// Exporter writes audit entries to a workbook, one sheet per business, and
// prunes old entries.
type Exporter struct {
	store  Store
	writer func() ExcelWriter // factory for creating new Excel writers
	logger *zerolog.Logger
}

func NewExporter(store Store, writerFactory func() ExcelWriter, logger *zerolog.Logger) *Exporter {
	if writerFactory == nil {
		writerFactory = NewExcelizeWriter
	}
	l := logger.With().Str("component", "audit_export").Logger()
	return &Exporter{store: store, writer: writerFactory, logger: &l}
}

// Export writes entries created in [from, to) to w and returns how many were
// written. Times are rendered in loc.
func (e *Exporter) Export(ctx context.Context, from, to time.Time, loc *time.Location, w io.Writer) (int, error) {
	excel, n, err := e.build(ctx, from, to, loc)
	if err != nil {
		return 0, err
	}
	if err := excel.Save(w); err != nil {
		return 0, fmt.Errorf("save excel: %w", err)
	}
	return n, nil
}

// ExportToFile is Export writing straight to path.
func (e *Exporter) ExportToFile(ctx context.Context, from, to time.Time, loc *time.Location, path string) (int, error) {
	excel, n, err := e.build(ctx, from, to, loc)
	if err != nil {
		return 0, err
	}
	if err := excel.SaveToFile(path); err != nil {
		return 0, fmt.Errorf("save excel to %s: %w", path, err)
	}
	e.logger.Info().Str("path", path).Int("entries", n).Msg("audit exported")
	return n, nil
}

func (e *Exporter) build(ctx context.Context, from, to time.Time, loc *time.Location) (ExcelWriter, int, error) {
	if !from.Before(to) {
		return nil, 0, fmt.Errorf("empty export range %s..%s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	if loc == nil {
		loc = time.UTC
	}

	entries, err := e.store.ListAuditEntries(ctx, from, to)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}

	excel := e.writer()
	if excel == nil {
		return nil, 0, fmt.Errorf("failed to create excel writer")
	}

	if len(entries) == 0 {
		if err := excel.AddSheet("audit"); err != nil {
			return nil, 0, err
		}
		if err := excel.WriteHeader(columns); err != nil {
			return nil, 0, err
		}
		return excel, 0, nil
	}

	for _, group := range groupByBusiness(entries) {
		if err := excel.AddSheet(group[0].BusinessID); err != nil {
			return nil, 0, err
		}
		if err := excel.WriteHeader(columns); err != nil {
			return nil, 0, err
		}
		for _, en := range group {
			expires := ""
			if en.ExpiresAt != nil {
				expires = en.ExpiresAt.In(loc).Format("2006-01-02 15:04")
			}
			row := []interface{}{
				en.CreatedAt.In(loc).Format("2006-01-02 15:04:05"),
				en.EventType,
				en.IsOpen,
				en.Source,
				expires,
				en.ID,
			}
			if err := excel.WriteRow(row); err != nil {
				return nil, 0, fmt.Errorf("write row: %w", err)
			}
		}
		e.logger.Debug().Str("business_id", group[0].BusinessID).Int("rows", len(group)).Msg("exported business")
	}
	return excel, len(entries), nil
}

// groupByBusiness splits entries, already ordered by business, into runs.
func groupByBusiness(entries []models.AuditEntry) [][]models.AuditEntry {
	var groups [][]models.AuditEntry
	for i, en := range entries {
		if i == 0 || en.BusinessID != entries[i-1].BusinessID {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], en)
	}
	return groups
}

// Cleanup deletes entries older than retentionDays.
func (e *Exporter) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	deleted, err := e.store.DeleteAuditEntriesBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old audit entries: %w", err)
	}

	e.logger.Info().
		Int64("deleted_count", deleted).
		Int("retention_days", retentionDays).
		Msg("Cleaned up old audit entries")
	return deleted, nil
}
