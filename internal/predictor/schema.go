package predictor

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	YearColumn  = "year"
	MonthColumn = "month"
	CityPrefix  = "city_"
)

// Schema is the ordered list of feature columns a trained predictor expects.
// It is fixed at training time and never modified after loading.
type Schema struct {
	columns []string
	index   map[string]int
}

func NewSchema(columns []string) (*Schema, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("empty feature schema")
	}
	s := &Schema{
		columns: make([]string, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		c = strings.TrimSpace(c)
		if c == "" {
			return nil, fmt.Errorf("feature schema column %d is empty", i)
		}
		if _, dup := s.index[c]; dup {
			return nil, fmt.Errorf("feature schema column %q repeated", c)
		}
		s.columns[i] = c
		s.index[c] = i
	}
	return s, nil
}

// ParseSchema accepts a JSON array of names, a JSON object with a "columns"
// array, or one column name per line.
func ParseSchema(raw []byte) (*Schema, error) {
	raw = bytes.TrimSpace(raw)
	if gjson.ValidBytes(raw) {
		doc := gjson.ParseBytes(raw)
		if doc.IsObject() {
			doc = doc.Get("columns")
		}
		if !doc.IsArray() {
			return nil, fmt.Errorf("feature schema: expected a JSON array of column names")
		}
		var cols []string
		for _, v := range doc.Array() {
			if v.Type != gjson.String {
				return nil, fmt.Errorf("feature schema: column %s is not a string", v.Raw)
			}
			cols = append(cols, v.String())
		}
		return NewSchema(cols)
	}

	var cols []string
	sc := bufio.NewScanner(bytes.NewReader(raw))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		cols = append(cols, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("feature schema: %w", err)
	}
	return NewSchema(cols)
}

func (s *Schema) Len() int {
	return len(s.columns)
}

func (s *Schema) Columns() []string {
	out := make([]string, len(s.columns))
	copy(out, s.columns)
	return out
}

func (s *Schema) Index(column string) (int, bool) {
	i, ok := s.index[column]
	return i, ok
}

// Cities lists the cities that have an indicator column, in schema order.
func (s *Schema) Cities() []string {
	var cities []string
	for _, c := range s.columns {
		if strings.HasPrefix(c, CityPrefix) {
			cities = append(cities, strings.TrimPrefix(c, CityPrefix))
		}
	}
	return cities
}

// Row builds the single-row feature vector for a request. The categorical
// city is expanded into its indicator column; every schema column the request
// does not set is zero. The vector always has Len() values in schema order,
// so a city unseen during training yields all indicators zero.
func (s *Schema) Row(year, month int, city string) []float64 {
	record := map[string]float64{
		YearColumn:        float64(year),
		MonthColumn:       float64(month),
		CityPrefix + city: 1,
	}
	row := make([]float64, len(s.columns))
	for i, c := range s.columns {
		row[i] = record[c]
	}
	return row
}
