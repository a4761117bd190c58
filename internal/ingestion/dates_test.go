package ingestion

import (
	"testing"
	"time"
)

func TestCoerceDateDayFirst(t *testing.T) {
	cases := []struct {
		raw       string
		want      time.Time
		ambiguous bool
	}{
		{raw: "03/04/2024", want: time.Date(2024, time.April, 3, 0, 0, 0, 0, time.UTC), ambiguous: true},
		{raw: "3/4/2024", want: time.Date(2024, time.April, 3, 0, 0, 0, 0, time.UTC), ambiguous: true},
		{raw: "13/04/2024", want: time.Date(2024, time.April, 13, 0, 0, 0, 0, time.UTC)},
		{raw: "04/04/2024", want: time.Date(2024, time.April, 4, 0, 0, 0, 0, time.UTC)},
		{raw: "03-04-2024", want: time.Date(2024, time.April, 3, 0, 0, 0, 0, time.UTC), ambiguous: true},
		{raw: "25.12.2023", want: time.Date(2023, time.December, 25, 0, 0, 0, 0, time.UTC)},
		{raw: "03/04/24", want: time.Date(2024, time.April, 3, 0, 0, 0, 0, time.UTC), ambiguous: true},
		{raw: "03/04/2024 14:30", want: time.Date(2024, time.April, 3, 14, 30, 0, 0, time.UTC), ambiguous: true},
		{raw: "2024-04-03", want: time.Date(2024, time.April, 3, 0, 0, 0, 0, time.UTC)},
		{raw: "2024-04-03T10:15:00Z", want: time.Date(2024, time.April, 3, 10, 15, 0, 0, time.UTC)},
		{raw: "3 April 2024", want: time.Date(2024, time.April, 3, 0, 0, 0, 0, time.UTC)},
		{raw: "  3   Apr 2024 ", want: time.Date(2024, time.April, 3, 0, 0, 0, 0, time.UTC)},
		{raw: "April 3, 2024", want: time.Date(2024, time.April, 3, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := CoerceDate(TextCell(tc.raw))
		if err != nil {
			t.Fatalf("CoerceDate(%q) returned error: %v", tc.raw, err)
		}
		if !got.Time.Equal(tc.want) {
			t.Fatalf("CoerceDate(%q) = %s, want %s", tc.raw, got.Time, tc.want)
		}
		if got.Ambiguous != tc.ambiguous {
			t.Fatalf("CoerceDate(%q) ambiguous = %v, want %v", tc.raw, got.Ambiguous, tc.ambiguous)
		}
	}
}

func TestCoerceDateRejects(t *testing.T) {
	for _, cell := range []Cell{
		TextCell("not-a-date"),
		TextCell("31/02/2024"),
		TextCell("2024/13/01"),
		TextCell(""),
		NumberCell(45385),
		NullCell(),
	} {
		if _, err := CoerceDate(cell); err == nil {
			t.Fatalf("expected %+v to be rejected", cell)
		}
	}
}

func TestCoerceDatePassesDateCellsThrough(t *testing.T) {
	want := time.Date(2022, time.July, 9, 0, 0, 0, 0, time.UTC)
	got, err := CoerceDate(DateCell(want))
	if err != nil || !got.Time.Equal(want) || got.Ambiguous {
		t.Fatalf("unexpected result %+v, %v", got, err)
	}
}

func TestCoerceImpressions(t *testing.T) {
	valid := map[string]struct {
		cell Cell
		want float64
	}{
		"number":    {cell: NumberCell(100), want: 100},
		"zero":      {cell: NumberCell(0), want: 0},
		"text":      {cell: TextCell("42"), want: 42},
		"thousands": {cell: TextCell("1,234,567"), want: 1234567},
		"spaced":    {cell: TextCell(" 12 000 "), want: 12000},
		"decimal":   {cell: TextCell("10.5"), want: 10.5},
	}
	for name, tc := range valid {
		got, err := CoerceImpressions(tc.cell)
		if err != nil || got != tc.want {
			t.Fatalf("%s: got %v, %v; want %v", name, got, err, tc.want)
		}
	}

	for name, cell := range map[string]Cell{
		"negative": NumberCell(-1),
		"words":    TextCell("lots"),
		"null":     NullCell(),
		"date":     DateCell(time.Now()),
		"nan":      TextCell("NaN"),
	} {
		if _, err := CoerceImpressions(cell); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
