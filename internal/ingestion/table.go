package ingestion

import (
	"strconv"
	"strings"
	"time"
)

// CellKind identifies which value a Cell carries.
type CellKind int

const (
	CellNull CellKind = iota
	CellText
	CellNumber
	CellDate
)

func (k CellKind) String() string {
	switch k {
	case CellText:
		return "text"
	case CellNumber:
		return "number"
	case CellDate:
		return "date"
	default:
		return "null"
	}
}

// Cell is a single spreadsheet value. The parser decides the kind once;
// everything downstream switches on Kind instead of inspecting raw strings.
// Raw keeps the source text of numeric cells so it can be stored unchanged.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Time   time.Time
	Raw    string
}

func NullCell() Cell { return Cell{Kind: CellNull} }
func TextCell(value string) Cell { return Cell{Kind: CellText, Text: value} }
func NumberCell(value float64) Cell { return Cell{Kind: CellNumber, Number: value} }
func DateCell(value time.Time) Cell { return Cell{Kind: CellDate, Time: value} }

// rawNumberCell is a numeric cell that remembers how the file spelled it.
func rawNumberCell(value float64, raw string) Cell {
	return Cell{Kind: CellNumber, Number: value, Raw: raw}
}

// IsEmpty reports whether the cell is null or holds only whitespace.
func (c Cell) IsEmpty() bool {
	switch c.Kind {
	case CellNull:
		return true
	case CellText:
		return strings.TrimSpace(c.Text) == ""
	default:
		return false
	}
}

// String renders the cell the way it appeared in the source file.
func (c Cell) String() string {
	switch c.Kind {
	case CellText:
		return c.Text
	case CellNumber:
		if c.Raw != "" {
			return c.Raw
		}
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellDate:
		if c.Time.Hour() == 0 && c.Time.Minute() == 0 && c.Time.Second() == 0 {
			return c.Time.Format("2006-01-02")
		}
		return c.Time.Format("2006-01-02 15:04:05")
	default:
		return ""
	}
}

// Row is one data row keyed by column name. Number is the 1-based line of
// the row in the source file.
type Row struct {
	Number int
	Cells  map[string]Cell
}

// Get returns the named cell, or a null cell when the column is absent.
func (r Row) Get(column string) Cell {
	if cell, ok := r.Cells[column]; ok {
		return cell
	}
	return NullCell()
}

// Table is a parsed sheet: the header row followed by its non-empty data rows.
type Table struct {
	Columns []string
	Rows    []Row
}

// HasColumn reports whether the header row contains name.
func (t Table) HasColumn(name string) bool {
	for _, column := range t.Columns {
		if column == name {
			return true
		}
	}
	return false
}
