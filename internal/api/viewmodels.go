package api

import (
	"github.com/monseeglzg-netizen/blank-app/internal/estimate"
	"github.com/monseeglzg-netizen/blank-app/internal/models"
)

// IndexData contains everything the page and its partials render.
type IndexData struct {
	Cities   []string
	Periods  []PeriodOption
	Kind     models.PeriodKind
	HasModel bool

	City   string
	Period string
	Month  int // model input when periods are free-form labels
	Year   int

	Summary     *estimate.Summary
	PeriodLabel string
	Prediction  *PredictionView

	Warning string // request-level problem, e.g. an unparseable period
}

type PeriodOption struct {
	Value    string
	Label    string
	Selected bool
}

type PredictionView struct {
	City  string
	Month int
	Year  int
	Value float64
	Error string
}

// ErrorData is rendered instead of the page when the session is unavailable.
type ErrorData struct {
	Message string
	Detail  string
}

func (d IndexData) HasSeries() bool {
	return d.Summary != nil && len(d.Summary.Series) > 0
}
