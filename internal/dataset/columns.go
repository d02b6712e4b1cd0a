package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingColumn is matched by every MissingColumnError.
var ErrMissingColumn = errors.New("missing column")

// MissingColumnError reports a field that could not be mapped to a header column.
type MissingColumnError struct {
	Field  string
	Want   string // explicit column name requested, empty when auto-detecting
	Header []string
}

func (e *MissingColumnError) Error() string {
	if e.Want != "" {
		return fmt.Sprintf("missing column: %s column %q not found in header %v", e.Field, e.Want, e.Header)
	}
	return fmt.Sprintf("missing column: no column for %s in header %v", e.Field, e.Header)
}

func (e *MissingColumnError) Is(target error) bool {
	return target == ErrMissingColumn
}

// ColumnMapping names the header columns holding each observation field.
type ColumnMapping struct {
	City    string
	Period  string
	Temp    string
	Country string // only resolved when a country filter is requested
}

var (
	cityVariants    = []string{"city", "ciudad"}
	periodVariants  = []string{"month", "mes", "period", "periodo", "fecha", "date", "dt"}
	tempVariants    = []string{"temp", "temperatura", "temperature"}
	countryVariants = []string{"country", "pais", "país"}
)

// substring matching is only attempted for variants at least this long
const minSubstringLen = 3

// ResolveColumns validates explicit names against header and auto-detects the
// rest. A column is never assigned to two fields.
func ResolveColumns(header []string, want ColumnMapping, needCountry bool) (ColumnMapping, error) {
	taken := make(map[string]bool)
	var out ColumnMapping

	fields := []struct {
		name     string
		want     string
		variants []string
		dst      *string
		needed   bool
	}{
		{"city", want.City, cityVariants, &out.City, true},
		{"period", want.Period, periodVariants, &out.Period, true},
		{"temperature", want.Temp, tempVariants, &out.Temp, true},
		{"country", want.Country, countryVariants, &out.Country, needCountry},
	}

	// explicit names first so auto-detection cannot steal them
	for _, f := range fields {
		if !f.needed || f.want == "" {
			continue
		}
		col, ok := findExact(header, f.want)
		if !ok {
			return ColumnMapping{}, &MissingColumnError{Field: f.name, Want: f.want, Header: header}
		}
		*f.dst = col
		taken[col] = true
	}

	for _, f := range fields {
		if !f.needed || f.want != "" {
			continue
		}
		col, ok := detect(header, f.variants, taken)
		if !ok {
			return ColumnMapping{}, &MissingColumnError{Field: f.name, Header: header}
		}
		*f.dst = col
		taken[col] = true
	}
	return out, nil
}

func findExact(header []string, name string) (string, bool) {
	for _, h := range header {
		if h == name {
			return h, true
		}
	}
	for _, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(name)) {
			return h, true
		}
	}
	return "", false
}

func detect(header, variants []string, taken map[string]bool) (string, bool) {
	for _, v := range variants {
		for _, h := range header {
			if !taken[h] && strings.EqualFold(strings.TrimSpace(h), v) {
				return h, true
			}
		}
	}
	for _, v := range variants {
		if len(v) < minSubstringLen {
			continue
		}
		for _, h := range header {
			if !taken[h] && strings.Contains(strings.ToLower(h), v) {
				return h, true
			}
		}
	}
	return "", false
}
