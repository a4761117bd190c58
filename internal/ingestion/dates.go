package ingestion

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// dayFirstLayouts are tried in order. Numeric layouts read the day
	// before the month, so "03/04/2024" is the 3rd of April.
	dayFirstLayouts = []string{
		"2/1/2006",
		"2/1/2006 15:04",
		"2/1/2006 15:04:05",
		"2-1-2006",
		"2-1-2006 15:04:05",
		"2.1.2006",
		"2/1/06",
		"2-1-06",
	}

	// unambiguousLayouts carry a four-digit leading year or a month name.
	unambiguousLayouts = []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		time.RFC3339,
		time.RFC3339Nano,
		"2006/01/02",
		"2 January 2006",
		"2 Jan 2006",
		"2-Jan-2006",
		"2-Jan-06",
		"January 2 2006",
		"January 2, 2006",
		"Jan 2 2006",
		"Jan 2, 2006",
		"Monday, 2 January 2006",
	}

	leadingDayMonth = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-]`)

	errNotADate = errors.New("value is not a date")
)

// DateValue is a coerced date. Ambiguous is set when a numeric day-first
// value would also have been a valid month-first date.
type DateValue struct {
	Time      time.Time
	Ambiguous bool
}

// CoerceDate resolves a Start or End cell. Date cells pass through; text is
// parsed day-first. Any other kind is rejected.
func CoerceDate(cell Cell) (DateValue, error) {
	switch cell.Kind {
	case CellDate:
		return DateValue{Time: cell.Time}, nil
	case CellText:
		return parseDayFirst(cell.Text)
	case CellNumber:
		return DateValue{}, fmt.Errorf("%w: %s", errNotADate, cell.String())
	default:
		return DateValue{}, fmt.Errorf("%w: empty cell", errNotADate)
	}
}

func parseDayFirst(raw string) (DateValue, error) {
	value := strings.Join(strings.Fields(raw), " ")
	if value == "" {
		return DateValue{}, fmt.Errorf("%w: empty cell", errNotADate)
	}

	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return DateValue{Time: t, Ambiguous: ambiguousDayMonth(value)}, nil
		}
	}
	for _, layout := range unambiguousLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return DateValue{Time: t}, nil
		}
	}
	return DateValue{}, fmt.Errorf("%w: %q", errNotADate, raw)
}

func ambiguousDayMonth(value string) bool {
	m := leadingDayMonth.FindStringSubmatch(value)
	if m == nil {
		return false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	return day != month && day <= 12 && month <= 12
}

// CoerceImpressions resolves an Impr cell to a non-negative count. Text may
// use thousands separators.
func CoerceImpressions(cell Cell) (float64, error) {
	var n float64
	switch cell.Kind {
	case CellNumber:
		n = cell.Number
	case CellText:
		cleaned := strings.NewReplacer(",", "", " ", "", "\u00a0", "", "_", "").Replace(strings.TrimSpace(cell.Text))
		parsed, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return 0, fmt.Errorf("impressions %q is not a number", cell.Text)
		}
		n = parsed
	default:
		return 0, fmt.Errorf("impressions must be a number, got %s", cell.Kind)
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("impressions %s is not a finite number", cell.String())
	}
	if n < 0 {
		return 0, fmt.Errorf("impressions %s is negative", cell.String())
	}
	return n, nil
}
