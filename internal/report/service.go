package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/martech/internal/domain"
	"github.com/rpattn/martech/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Results"

// ErrWorkbook marks a failure to build the results workbook, as opposed to
// a failure to read the totals.
var ErrWorkbook = errors.New("failed to build results workbook")

// Service answers read-only aggregate queries over usage records.
type Service struct {
	records repository.UsageRecordRepository
	log     logrus.FieldLogger
}

func NewService(records repository.UsageRecordRepository, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{records: records, log: log.WithField("component", "report")}
}

// ImpressionsByYear sums impressions per calendar year of the start date,
// oldest year first.
func (s *Service) ImpressionsByYear(ctx context.Context) ([]domain.YearlyImpressions, error) {
	totals, err := s.records.ImpressionsByYear(ctx)
	if err != nil {
		return nil, fmt.Errorf("query yearly impressions: %w", err)
	}
	return totals, nil
}

// ImpressionsByYearXLSX returns the yearly totals as a workbook.
func (s *Service) ImpressionsByYearXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()
	totals, err := s.ImpressionsByYear(ctx)
	if err != nil {
		return nil, err
	}

	data, err := renderYearlyWorkbook(sheetName, totals)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"years":      len(totals),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Info("results workbook generated")
	return data, nil
}

// renderYearlyWorkbook lays totals out on one sheet: a header, a row per
// year and a grand total. Every failure wraps ErrWorkbook.
func renderYearlyWorkbook(sheet string, totals []domain.YearlyImpressions) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	fail := func(step string, err error) ([]byte, error) {
		return nil, fmt.Errorf("%w: %s: %w", ErrWorkbook, step, err)
	}

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fail("name sheet", err)
	}

	rows := make([][]any, 0, len(totals)+2)
	rows = append(rows, []any{"Year", "Total Impressions"})
	var grand float64
	for _, total := range totals {
		rows = append(rows, []any{total.Year, total.TotalImpressions})
		grand += total.TotalImpressions
	}
	rows = append(rows, []any{"Total", grand})

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fail("address row", err)
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fail(fmt.Sprintf("write row %d", i+1), err)
		}
	}

	numberStyle, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		return fail("create number style", err)
	}
	if err := f.SetCellStyle(sheet, "B2", fmt.Sprintf("B%d", len(rows)), numberStyle); err != nil {
		return fail("style totals", err)
	}
	if err := f.SetColWidth(sheet, "A", "A", 10); err != nil {
		return fail("size year column", err)
	}
	if err := f.SetColWidth(sheet, "B", "B", 22); err != nil {
		return fail("size totals column", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fail("write", err)
	}
	return buf.Bytes(), nil
}
