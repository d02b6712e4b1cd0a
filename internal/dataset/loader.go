package dataset

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/monseeglzg-netizen/blank-app/internal/metrics"
	"github.com/monseeglzg-netizen/blank-app/internal/models"
	"github.com/monseeglzg-netizen/blank-app/internal/source"
)

// ErrNoRows is returned when nothing is left after parsing and filtering.
var ErrNoRows = errors.New("dataset has no usable rows")

type Options struct {
	Columns   ColumnMapping // explicit column names; empty fields are auto-detected
	Country   string        // keep only rows whose country column equals this value
	Kind      models.PeriodKind
	Encoding  string
	Delimiter rune
}

func (o Options) withDefaults() Options {
	if o.Kind == "" {
		o.Kind = models.PeriodMonth
	}
	if o.Encoding == "" {
		o.Encoding = EncodingAuto
	}
	if o.Delimiter == 0 {
		o.Delimiter = ','
	}
	return o
}

// Dataset is the read-only observation set of a session.
type Dataset struct {
	Source       string
	Kind         models.PeriodKind
	Mapping      ColumnMapping
	Observations []models.Observation
	Skipped      int // rows dropped because their period could not be parsed
}

// Load fetches uri and parses it as a delimited table.
func Load(ctx context.Context, fetcher *source.Fetcher, uri string, opts Options) (*Dataset, error) {
	if fetcher == nil {
		fetcher = source.NewFetcher(nil)
	}
	raw, err := fetcher.Fetch(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	ds, err := Parse(raw, opts)
	if err != nil {
		return nil, err
	}
	ds.Source = uri
	log.Printf("dataset: loaded %d observations from %s (city=%q period=%q temp=%q, %d rows skipped)",
		len(ds.Observations), uri, ds.Mapping.City, ds.Mapping.Period, ds.Mapping.Temp, ds.Skipped)
	return ds, nil
}

// Parse decodes raw CSV bytes into a Dataset.
func Parse(raw []byte, opts Options) (*Dataset, error) {
	opts = opts.withDefaults()
	if !opts.Kind.Valid() {
		return nil, fmt.Errorf("unknown period kind %q", opts.Kind)
	}

	text, err := decodeText(raw, opts.Encoding)
	if err != nil {
		return nil, err
	}

	df := dataframe.ReadCSV(bytes.NewReader(text),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithDelimiter(opts.Delimiter),
		// cells stay verbatim; ParseTemperature decides what is missing
		dataframe.NaNValues(nil),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("parse csv: %w", df.Err)
	}

	mapping, err := ResolveColumns(df.Names(), opts.Columns, opts.Country != "")
	if err != nil {
		return nil, err
	}

	if opts.Country != "" {
		df = df.Filter(dataframe.F{
			Colname:    mapping.Country,
			Comparator: series.Eq,
			Comparando: opts.Country,
		})
		if df.Err != nil {
			return nil, fmt.Errorf("filter %s=%q: %w", mapping.Country, opts.Country, df.Err)
		}
	}

	cities := df.Col(mapping.City).Records()
	periods := df.Col(mapping.Period).Records()
	temps := df.Col(mapping.Temp).Records()

	ds := &Dataset{
		Kind:         opts.Kind,
		Mapping:      mapping,
		Observations: make([]models.Observation, 0, len(cities)),
	}
	nonNumeric := 0
	for i := range cities {
		period, err := models.ParsePeriod(opts.Kind, periods[i])
		if err != nil {
			ds.Skipped++
			continue
		}
		temp := ParseTemperature(temps[i])
		if !temp.Valid {
			nonNumeric++
		}
		ds.Observations = append(ds.Observations, models.Observation{
			City:   cities[i],
			Period: period,
			Temp:   temp,
		})
	}
	metrics.RowsSkipped.WithLabelValues("period").Add(float64(ds.Skipped))
	metrics.RowsSkipped.WithLabelValues("temperature").Add(float64(nonNumeric))

	if len(ds.Observations) == 0 {
		return nil, ErrNoRows
	}
	return ds, nil
}

// ParseTemperature coerces a raw cell to a temperature. Empty, non-numeric
// and non-finite values are reported as missing.
func ParseTemperature(raw string) sql.NullFloat64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return sql.NullFloat64{}
	}
	if !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// Cities returns the distinct city names, sorted.
func (d *Dataset) Cities() []string {
	seen := make(map[string]bool)
	var cities []string
	for _, o := range d.Observations {
		if !seen[o.City] {
			seen[o.City] = true
			cities = append(cities, o.City)
		}
	}
	sort.Strings(cities)
	return cities
}

// Periods returns the distinct periods in natural order.
func (d *Dataset) Periods() []models.Period {
	seen := make(map[models.Period]bool)
	var periods []models.Period
	for _, o := range d.Observations {
		if !seen[o.Period] {
			seen[o.Period] = true
			periods = append(periods, o.Period)
		}
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i].Less(periods[j]) })
	return periods
}

// HasCity reports whether any observation belongs to city.
func (d *Dataset) HasCity(city string) bool {
	for _, o := range d.Observations {
		if o.City == city {
			return true
		}
	}
	return false
}
