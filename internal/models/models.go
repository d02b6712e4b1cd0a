package models

import (
	"database/sql"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

type Observation struct {
	City   string
	Period Period
	Temp   sql.NullFloat64 // invalid when the source value was missing or non-numeric
}

// PeriodKind selects how the period column of a dataset is interpreted.
// A deployment picks one; the two are not mixed within a dataset.
type PeriodKind string

const (
	PeriodMonth PeriodKind = "month"
	PeriodLabel PeriodKind = "label"
)

func (k PeriodKind) Valid() bool {
	return k == PeriodMonth || k == PeriodLabel
}

// Period is the grouping key of an observation. Month periods have Month in
// 1-12 and Label set to the decimal month; label periods have Month 0.
type Period struct {
	Month int
	Label string
}

func MonthPeriod(m int) Period {
	return Period{Month: m, Label: strconv.Itoa(m)}
}

func LabelPeriod(label string) Period {
	return Period{Label: strings.TrimSpace(label)}
}

func (p Period) IsMonth() bool {
	return p.Month >= 1 && p.Month <= 12
}

func (p Period) String() string {
	return p.Label
}

// Display returns the human label: Spanish month name for month periods.
func (p Period) Display() string {
	if p.IsMonth() {
		return MonthName(p.Month)
	}
	return p.Label
}

// Less orders periods naturally. Months compare numerically, labels compare
// numerically when both parse as numbers and lexicographically otherwise.
// Numeric labels sort before the rest.
func (p Period) Less(o Period) bool {
	if p.IsMonth() && o.IsMonth() {
		return p.Month < o.Month
	}
	a, okA := numericLabel(p.Label)
	b, okB := numericLabel(o.Label)
	switch {
	case okA && okB:
		if a != b {
			return a < b
		}
	case okA:
		return true
	case okB:
		return false
	}
	return p.Label < o.Label
}

// numericLabel parses a finite number; NaN and Inf labels count as text.
func numericLabel(label string) (float64, bool) {
	v, err := strconv.ParseFloat(label, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

var monthAliases = map[string]int{
	"ene": 1, "jan": 1, "january": 1,
	"feb": 2, "february": 2,
	"mar": 3, "march": 3,
	"abr": 4, "apr": 4, "april": 4,
	"may": 5,
	"jun": 6, "june": 6,
	"jul": 7, "july": 7,
	"ago": 8, "aug": 8, "august": 8,
	"sep": 9, "sept": 9, "set": 9, "setiembre": 9, "september": 9,
	"oct": 10, "october": 10,
	"nov": 11, "november": 11,
	"dic": 12, "dec": 12, "december": 12,
}

// MonthName returns the capitalised Spanish name of month m (1-12).
func MonthName(m int) string {
	if m < 1 || m > 12 {
		return strconv.Itoa(m)
	}
	n := monthNames[m-1]
	return strings.ToUpper(n[:1]) + n[1:]
}

// ParseMonth accepts 1-12 (optionally zero padded), ISO dates (YYYY-MM-DD,
// YYYY-MM) and Spanish or English month names.
func ParseMonth(raw string) (int, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, fmt.Errorf("empty month")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 1 || n > 12 {
			return 0, fmt.Errorf("month %d out of range", n)
		}
		return n, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int(f)) && f >= 1 && f <= 12 {
		return int(f), nil
	}
	for _, layout := range []string{"2006-01-02", "2006-01", "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, strings.TrimSpace(raw)); err == nil {
			return int(t.Month()), nil
		}
	}
	for i, n := range monthNames {
		if s == n {
			return i + 1, nil
		}
	}
	if m, ok := monthAliases[strings.TrimSuffix(s, ".")]; ok {
		return m, nil
	}
	return 0, fmt.Errorf("unrecognised month %q", raw)
}

func ParsePeriod(kind PeriodKind, raw string) (Period, error) {
	switch kind {
	case PeriodMonth:
		m, err := ParseMonth(raw)
		if err != nil {
			return Period{}, err
		}
		return MonthPeriod(m), nil
	case PeriodLabel:
		p := LabelPeriod(raw)
		if p.Label == "" {
			return Period{}, fmt.Errorf("empty period")
		}
		return p, nil
	default:
		return Period{}, fmt.Errorf("unknown period kind %q", kind)
	}
}
