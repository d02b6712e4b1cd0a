// Package predictor runs inference with a pre-trained temperature model.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/tidwall/gjson"

	"github.com/monseeglzg-netizen/blank-app/internal/source"
)

// ErrModelLoad wraps every failure to load or reconcile the model artifacts.
var ErrModelLoad = errors.New("model load failure")

func loadError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrModelLoad, fmt.Sprintf(format, args...))
}

// Predictor maps one schema-ordered feature row to a temperature.
type Predictor interface {
	Predict(ctx context.Context, row []float64) (float64, error)
}

// LinearModel is a fitted linear regression: Intercept + Weights·row.
type LinearModel struct {
	Intercept float64
	Weights   []float64
}

func (m *LinearModel) Predict(_ context.Context, row []float64) (float64, error) {
	if len(row) != len(m.Weights) {
		return 0, fmt.Errorf("feature row has %d values, model expects %d", len(row), len(m.Weights))
	}
	y := m.Intercept
	for i, w := range m.Weights {
		y += w * row[i]
	}
	return y, nil
}

// ParseLinearModel reads a linear model artifact and aligns it to schema.
// Weights come either as "coefficients" keyed by column name (missing
// columns weigh zero) or as a positional "weights" array. Every weight must
// be a JSON number; an absent intercept is zero.
func ParseLinearModel(raw []byte, schema *Schema) (*LinearModel, error) {
	if !gjson.ValidBytes(raw) {
		return nil, loadError("model artifact is not valid JSON")
	}
	doc := gjson.ParseBytes(raw)
	if typ := doc.Get("type"); typ.Exists() && typ.String() != "linear" {
		return nil, loadError("unsupported model type %q", typ.String())
	}

	m := &LinearModel{Weights: make([]float64, schema.Len())}
	if icpt := doc.Get("intercept"); icpt.Exists() {
		if icpt.Type != gjson.Number {
			return nil, loadError("model intercept is not a number: %s", icpt.Raw)
		}
		m.Intercept = icpt.Float()
	}

	coefs := doc.Get("coefficients")
	weights := doc.Get("weights")
	switch {
	case coefs.IsObject():
		var err error
		coefs.ForEach(func(key, value gjson.Result) bool {
			i, ok := schema.Index(key.String())
			if !ok {
				err = loadError("coefficient for %q is not in the feature schema", key.String())
				return false
			}
			if value.Type != gjson.Number {
				err = loadError("coefficient for %q is not a number: %s", key.String(), value.Raw)
				return false
			}
			m.Weights[i] = value.Float()
			return true
		})
		if err != nil {
			return nil, err
		}
	case weights.IsArray():
		ws := weights.Array()
		if len(ws) != schema.Len() {
			return nil, loadError("model has %d weights, feature schema has %d columns", len(ws), schema.Len())
		}
		for i, w := range ws {
			if w.Type != gjson.Number {
				return nil, loadError("weight %d is not a number: %s", i, w.Raw)
			}
			m.Weights[i] = w.Float()
		}
	default:
		return nil, loadError("model artifact has neither coefficients nor weights")
	}

	if math.IsNaN(m.Intercept) || math.IsInf(m.Intercept, 0) {
		return nil, loadError("model intercept is not finite")
	}
	return m, nil
}

// Model pairs a predictor with the feature schema it was trained on.
type Model struct {
	Schema    *Schema
	Predictor Predictor
}

type Options struct {
	ModelURI  string // linear model artifact
	SchemaURI string // ordered feature columns
	Endpoint  string // remote inference service, used instead of ModelURI when set
}

// Load reads the schema and the predictor. Any failure is ErrModelLoad and
// is meant to stop the process before serving.
func Load(ctx context.Context, fetcher *source.Fetcher, opts Options) (*Model, error) {
	if fetcher == nil {
		fetcher = source.NewFetcher(nil)
	}
	if opts.SchemaURI == "" {
		return nil, loadError("feature schema location is required")
	}
	raw, err := fetcher.Fetch(ctx, opts.SchemaURI)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}
	schema, err := ParseSchema(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	var p Predictor
	switch {
	case opts.Endpoint != "":
		p = NewRemotePredictor(opts.Endpoint, schema, nil)
	case opts.ModelURI != "":
		raw, err := fetcher.Fetch(ctx, opts.ModelURI)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
		}
		lm, err := ParseLinearModel(raw, schema)
		if err != nil {
			return nil, err
		}
		p = lm
	default:
		return nil, loadError("either a model artifact or an inference endpoint is required")
	}

	log.Printf("predictor: loaded model with %d features (%d cities)", schema.Len(), len(schema.Cities()))
	return &Model{Schema: schema, Predictor: p}, nil
}

// Estimate builds the feature row for (city, month, year) and returns the
// predictor's single output.
func (m *Model) Estimate(ctx context.Context, city string, month, year int) (float64, error) {
	row := m.Schema.Row(year, month, city)
	y, err := m.Predictor.Predict(ctx, row)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, fmt.Errorf("predictor returned non-finite value")
	}
	return y, nil
}
