// Package estimate computes historical-average temperature estimates.
package estimate

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/monseeglzg-netizen/blank-app/internal/models"
)

// Result is an estimate or, when OK is false, the absence of one.
type Result struct {
	Value float64
	OK    bool
}

// NoData is the result reported when no valid observation matches.
var NoData = Result{}

func Value(v float64) Result {
	return Result{Value: v, OK: true}
}

// MarshalJSON renders missing estimates as null, never as 0.
func (r Result) MarshalJSON() ([]byte, error) {
	if !r.OK {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// PeriodMean is the average temperature of one city over one period.
type PeriodMean struct {
	Period models.Period `json:"-"`
	Label  string        `json:"period"`
	Mean   float64       `json:"mean"`
	Min    float64       `json:"min"`
	Max    float64       `json:"max"`
	Count  int           `json:"count"`
}

type Summary struct {
	City     string       `json:"city"`
	Period   string       `json:"period"`
	Estimate Result       `json:"estimate"`
	Matched  *PeriodMean  `json:"matched,omitempty"`
	Series   []PeriodMean `json:"series"`
}

type accumulator struct {
	sum      float64
	min, max float64
	n        int
}

// PeriodMeans groups the observations of city by period and averages the
// valid temperatures. The city match is exact. Periods without a single
// valid temperature are left out. The result is in natural period order.
func PeriodMeans(obs []models.Observation, city string) []PeriodMean {
	groups := make(map[models.Period]*accumulator)
	for _, o := range obs {
		if o.City != city || !o.Temp.Valid {
			continue
		}
		v := o.Temp.Float64
		if math.IsNaN(v) {
			continue
		}
		acc, ok := groups[o.Period]
		if !ok {
			acc = &accumulator{min: v, max: v}
			groups[o.Period] = acc
		}
		acc.sum += v
		acc.n++
		acc.min = math.Min(acc.min, v)
		acc.max = math.Max(acc.max, v)
	}

	series := make([]PeriodMean, 0, len(groups))
	for p, acc := range groups {
		series = append(series, PeriodMean{
			Period: p,
			Label:  p.Display(),
			Mean:   acc.sum / float64(acc.n),
			Min:    acc.min,
			Max:    acc.max,
			Count:  acc.n,
		})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Period.Less(series[j].Period) })
	return series
}

// Lookup returns the mean for period. No neighbouring period is consulted.
func Lookup(series []PeriodMean, period models.Period) (Result, *PeriodMean) {
	for i := range series {
		if series[i].Period == period {
			return Value(series[i].Mean), &series[i]
		}
	}
	return NoData, nil
}

// Historical estimates the temperature of city in period from one grouping
// pass, returning the point estimate together with the full series.
func Historical(obs []models.Observation, city string, period models.Period) Summary {
	series := PeriodMeans(obs, city)
	return Summarize(city, period, series)
}

// Summarize builds a Summary from an already computed series.
func Summarize(city string, period models.Period, series []PeriodMean) Summary {
	res, matched := Lookup(series, period)
	return Summary{
		City:     city,
		Period:   period.Label,
		Estimate: res,
		Matched:  matched,
		Series:   series,
	}
}
