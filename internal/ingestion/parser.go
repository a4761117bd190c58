package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrEmptyFile is returned when no header row can be found.
	ErrEmptyFile = errors.New("no rows found in file")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
	zipSignature  = []byte("PK\x03\x04")

	// isoLayouts cover cells stored with the ISO 8601 "d" cell type.
	isoLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02"}
)

// Parse reads a CSV or Excel workbook into a Table. Content that starts with
// a zip signature is read as a workbook whatever the extension says;
// otherwise the extension decides. For workbooks only the first sheet is read.
func Parse(fileName string, r io.Reader) (Table, error) {
	br := bufio.NewReader(r)
	format := detectFormat(fileName, br)
	var (
		grid [][]Cell
		err  error
	)
	switch format {
	case ".csv":
		grid, err = parseCSV(br)
	case ".xlsx", ".xlsm":
		grid, err = parseExcel(br)
	default:
		if format == "" {
			format = "(none)"
		}
		return Table{}, &ParseError{Format: format, Err: ErrUnsupportedFormat}
	}
	if err != nil {
		return Table{}, &ParseError{Format: format, Err: err}
	}

	table, err := normalizeTable(grid)
	if err != nil {
		return Table{}, &ParseError{Format: format, Err: err}
	}
	return table, nil
}

// detectFormat returns the extension to parse the upload as. Unsupported
// uploads keep their own extension for the error message.
func detectFormat(fileName string, br *bufio.Reader) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if head, err := br.Peek(len(zipSignature)); err == nil && bytes.Equal(head, zipSignature) {
		if ext == ".xlsm" {
			return ext
		}
		return ".xlsx"
	}
	return ext
}

func parseCSV(r io.Reader) ([][]Cell, error) {
	reader := bufio.NewReader(r)
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	grid := make([][]Cell, len(records))
	for i, record := range records {
		row := make([]Cell, len(record))
		for j, value := range record {
			row[j] = csvCell(value)
		}
		grid[i] = row
	}
	return grid, nil
}

// csvCell types a CSV field. CSV carries no cell types, so every non-blank
// field stays text and is only read as a number where a column needs one.
func csvCell(value string) Cell {
	if strings.TrimSpace(value) == "" {
		return NullCell()
	}
	return TextCell(value)
}

func parseExcel(r io.Reader) ([][]Cell, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from workbook: %w", err)
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	styles := newDateStyleCache(f)
	grid := make([][]Cell, len(rows))
	for i, row := range rows {
		cells := make([]Cell, len(row))
		for j, raw := range row {
			cell, err := excelCell(f, sheet, j+1, i+1, raw, styles, date1904)
			if err != nil {
				return nil, err
			}
			cells[j] = cell
		}
		grid[i] = cells
	}
	return grid, nil
}

func excelCell(f *excelize.File, sheet string, col, row int, raw string, styles *dateStyleCache, date1904 bool) (Cell, error) {
	if strings.TrimSpace(raw) == "" {
		return NullCell(), nil
	}
	ref, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return Cell{}, err
	}

	cellType, err := f.GetCellType(sheet, ref)
	if err != nil {
		return Cell{}, fmt.Errorf("failed to read cell %s: %w", ref, err)
	}
	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeError:
		return TextCell(raw), nil
	case excelize.CellTypeBool:
		return TextCell(strings.ToUpper(strconv.FormatBool(raw == "1"))), nil
	case excelize.CellTypeDate:
		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
				return DateCell(t), nil
			}
		}
		return TextCell(raw), nil
	}

	n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return TextCell(raw), nil
	}

	isDate, err := styles.isDate(sheet, ref)
	if err != nil {
		return Cell{}, err
	}
	if isDate {
		t, err := excelize.ExcelDateToTime(n, date1904)
		if err == nil {
			return DateCell(t), nil
		}
	}
	return rawNumberCell(n, raw), nil
}

// dateStyleCache remembers which style ids carry a date number format.
type dateStyleCache struct {
	f     *excelize.File
	known map[int]bool
}

func newDateStyleCache(f *excelize.File) *dateStyleCache {
	return &dateStyleCache{f: f, known: make(map[int]bool)}
}

func (c *dateStyleCache) isDate(sheet, ref string) (bool, error) {
	id, err := c.f.GetCellStyle(sheet, ref)
	if err != nil {
		return false, fmt.Errorf("failed to read style of cell %s: %w", ref, err)
	}
	if isDate, ok := c.known[id]; ok {
		return isDate, nil
	}
	isDate := false
	if id != 0 {
		style, err := c.f.GetStyle(id)
		if err != nil {
			return false, fmt.Errorf("failed to read style %d: %w", id, err)
		}
		isDate = isDateStyle(style)
	}
	c.known[id] = isDate
	return isDate, nil
}

func isDateStyle(style *excelize.Style) bool {
	if style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateFormatCode(*style.CustomNumFmt)
	}
	switch {
	case style.NumFmt >= 14 && style.NumFmt <= 22:
		return true
	case style.NumFmt >= 45 && style.NumFmt <= 47:
		return true
	}
	return false
}

// isDateFormatCode reports whether a custom number format renders a calendar
// date. Quoted literals and bracketed sections such as colours are ignored.
func isDateFormatCode(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for _, r := range strings.ToLower(code) {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		default:
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	return strings.ContainsAny(cleaned, "dy")
}

// normalizeTable takes the first non-empty row as the header and keeps the
// non-empty rows below it.
func normalizeTable(grid [][]Cell) (Table, error) {
	headerIndex := -1
	for idx, row := range grid {
		if !rowIsEmpty(row) {
			headerIndex = idx
			break
		}
	}
	if headerIndex < 0 {
		return Table{}, ErrEmptyFile
	}

	columns := sanitizeHeaders(grid[headerIndex])
	rows := make([]Row, 0, len(grid)-headerIndex-1)
	for idx := headerIndex + 1; idx < len(grid); idx++ {
		raw := grid[idx]
		if rowIsEmpty(raw) {
			continue
		}
		cells := make(map[string]Cell, len(columns))
		for col, name := range columns {
			if col < len(raw) {
				cells[name] = raw[col]
			} else {
				cells[name] = NullCell()
			}
		}
		rows = append(rows, Row{Number: idx + 1, Cells: cells})
	}

	return Table{Columns: columns, Rows: rows}, nil
}

func rowIsEmpty(row []Cell) bool {
	for _, cell := range row {
		if !cell.IsEmpty() {
			return false
		}
	}
	return true
}

// sanitizeHeaders trims header names. Blank headers are named after their
// position and repeated names get a numeric suffix.
func sanitizeHeaders(raw []Cell) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, cell := range raw {
		name := strings.TrimSpace(cell.String())
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}
