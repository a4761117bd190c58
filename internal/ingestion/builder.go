package ingestion

import (
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/martech/internal/domain"

	"github.com/google/uuid"
)

// RowResult is the outcome of building one row: either Record is set, or
// Reason explains why the row was skipped.
type RowResult struct {
	Row      int
	Record   *domain.UsageRecord
	Reason   string
	Warnings []string
}

// Skipped reports whether the row produced no record.
func (r RowResult) Skipped() bool {
	return r.Record == nil
}

// BuildRecords maps every row of a validated table to a record owned by
// batchID. Rows whose dates or impressions cannot be coerced are skipped and
// never stop the remaining rows.
func BuildRecords(table Table, batchID uuid.UUID, createdAt time.Time) []RowResult {
	results := make([]RowResult, 0, len(table.Rows))
	for _, row := range table.Rows {
		results = append(results, buildRow(row, batchID, createdAt))
	}
	return results
}

func buildRow(row Row, batchID uuid.UUID, createdAt time.Time) RowResult {
	result := RowResult{Row: row.Number}

	start, err := CoerceDate(row.Get("Start"))
	if err != nil {
		result.Reason = fmt.Sprintf("invalid Start: %v", err)
		return result
	}
	end, err := CoerceDate(row.Get("End"))
	if err != nil {
		result.Reason = fmt.Sprintf("invalid End: %v", err)
		return result
	}
	impressions, err := CoerceImpressions(row.Get("Impr"))
	if err != nil {
		result.Reason = fmt.Sprintf("invalid Impr: %v", err)
		return result
	}

	if start.Ambiguous {
		result.Warnings = append(result.Warnings, ambiguityWarning("Start", row.Get("Start"), start.Time))
	}
	if end.Ambiguous {
		result.Warnings = append(result.Warnings, ambiguityWarning("End", row.Get("End"), end.Time))
	}

	result.Record = &domain.UsageRecord{
		ID:          uuid.New(),
		BatchID:     batchID,
		Advertiser:  row.Get("Advertiser").String(),
		Brand:       row.Get("Brand").String(),
		StartDate:   start.Time,
		EndDate:     end.Time,
		Format:      row.Get("Format").String(),
		Platform:    row.Get("Platform").String(),
		Impressions: impressions,
		CreatedAt:   createdAt,
	}
	return result
}

func ambiguityWarning(column string, cell Cell, resolved time.Time) string {
	return fmt.Sprintf("%s %q read day-first as %s", column, strings.TrimSpace(cell.String()), resolved.Format("2 January 2006"))
}
