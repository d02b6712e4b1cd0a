package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"

	"github.com/monseeglzg-netizen/blank-app/internal/httputil"
)

var ErrCircuitOpen = errors.New("inference service unavailable")

// RemotePredictor delegates inference to an HTTP service that owns the
// trained model. Requests carry the schema so the service can check the
// column order.
type RemotePredictor struct {
	endpoint string
	columns  []string
	client   *http.Client
	cb       *gobreaker.CircuitBreaker
}

type remoteRequest struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

func NewRemotePredictor(endpoint string, schema *Schema, client *http.Client) *RemotePredictor {
	if client == nil {
		client = httputil.NewClientWithTimeout(10 * time.Second)
	}
	return &RemotePredictor{
		endpoint: endpoint,
		columns:  schema.Columns(),
		client:   client,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "inference",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

func (p *RemotePredictor) Predict(ctx context.Context, row []float64) (float64, error) {
	body, err := json.Marshal(remoteRequest{Columns: p.columns, Rows: [][]float64{row}})
	if err != nil {
		return 0, fmt.Errorf("marshal inference request: %w", err)
	}

	result, err := p.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create inference request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := p.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("inference request failed: %w", err)
		}
		defer resp.Body.Close()

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read inference response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("inference service returned status: %d", resp.StatusCode)
		}
		return b, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return 0, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return 0, err
	}

	b := result.([]byte)
	if !gjson.ValidBytes(b) {
		return 0, fmt.Errorf("inference response is not valid JSON")
	}
	first := gjson.GetBytes(b, "predictions.0")
	if !first.Exists() || first.Type != gjson.Number {
		return 0, fmt.Errorf("inference response has no predictions")
	}
	return first.Float(), nil
}
