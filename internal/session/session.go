// Package session holds the read-only state shared by every interaction:
// the loaded dataset and, optionally, a trained model.
package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/monseeglzg-netizen/blank-app/internal/dataset"
	"github.com/monseeglzg-netizen/blank-app/internal/estimate"
	"github.com/monseeglzg-netizen/blank-app/internal/metrics"
	"github.com/monseeglzg-netizen/blank-app/internal/models"
	"github.com/monseeglzg-netizen/blank-app/internal/predictor"
)

// ErrNoModel is returned by Predict when the session was started without a model.
var ErrNoModel = errors.New("no trained model loaded")

type Session struct {
	data  *dataset.Dataset
	model *predictor.Model

	cities  []string
	periods []models.Period

	mu     sync.RWMutex
	series map[string][]estimate.PeriodMean // per-city means of known cities, computed on first use
}

// New wraps an already loaded dataset and optional model. Neither is
// modified afterwards.
func New(data *dataset.Dataset, model *predictor.Model) *Session {
	metrics.ObservationsLoaded.Set(float64(len(data.Observations)))
	return &Session{
		data:    data,
		model:   model,
		cities:  data.Cities(),
		periods: data.Periods(),
		series:  make(map[string][]estimate.PeriodMean),
	}
}

func (s *Session) Dataset() *dataset.Dataset {
	return s.data
}

func (s *Session) HasModel() bool {
	return s.model != nil
}

func (s *Session) Model() *predictor.Model {
	return s.model
}

func (s *Session) Cities() []string {
	return s.cities
}

func (s *Session) Periods() []models.Period {
	return s.periods
}

func (s *Session) Kind() models.PeriodKind {
	return s.data.Kind
}

// ParsePeriod interprets a user-supplied period under the dataset's kind.
func (s *Session) ParsePeriod(raw string) (models.Period, error) {
	return models.ParsePeriod(s.data.Kind, raw)
}

// HasCity reports whether city appears in the dataset, byte for byte.
func (s *Session) HasCity(city string) bool {
	i := sort.SearchStrings(s.cities, city)
	return i < len(s.cities) && s.cities[i] == city
}

// Series returns the per-period means of city. Known cities are computed
// once; unknown ones are computed on every call and never retained.
func (s *Session) Series(city string) []estimate.PeriodMean {
	if !s.HasCity(city) {
		return estimate.PeriodMeans(s.data.Observations, city)
	}

	s.mu.RLock()
	series, ok := s.series[city]
	s.mu.RUnlock()
	if ok {
		return series
	}

	series = estimate.PeriodMeans(s.data.Observations, city)

	s.mu.Lock()
	s.series[city] = series
	s.mu.Unlock()
	return series
}

// Estimate returns the historical average for (city, period) together with
// the city's series for charting.
func (s *Session) Estimate(city string, period models.Period) estimate.Summary {
	start := time.Now()
	summary := estimate.Summarize(city, period, s.Series(city))
	metrics.EstimateLatency.WithLabelValues("historical").Observe(time.Since(start).Seconds())

	outcome := "ok"
	if !summary.Estimate.OK {
		outcome = "no_data"
	}
	metrics.EstimatesTotal.WithLabelValues("historical", outcome).Inc()
	return summary
}

// Predict runs the trained model for (city, month, year).
func (s *Session) Predict(ctx context.Context, city string, month, year int) (float64, error) {
	if s.model == nil {
		return 0, ErrNoModel
	}
	start := time.Now()
	y, err := s.model.Estimate(ctx, city, month, year)
	metrics.EstimateLatency.WithLabelValues("model").Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.EstimatesTotal.WithLabelValues("model", outcome).Inc()
	return y, err
}
