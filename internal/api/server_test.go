package api_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/monseeglzg-netizen/blank-app/internal/api"
	"github.com/monseeglzg-netizen/blank-app/internal/dataset"
	"github.com/monseeglzg-netizen/blank-app/internal/models"
	"github.com/monseeglzg-netizen/blank-app/internal/predictor"
	"github.com/monseeglzg-netizen/blank-app/internal/session"
	"github.com/monseeglzg-netizen/blank-app/internal/store"

	_ "modernc.org/sqlite"
)

const testCSV = `Ciudad,Mes,Temperatura
CDMX,1,20
CDMX,1,22
CDMX,2,15
CDMX,3,
Monterrey,6,31
Monterrey,6,n/a
`

func setupSession(t *testing.T, withModel bool) *session.Session {
	t.Helper()
	ds, err := dataset.Parse([]byte(testCSV), dataset.Options{Kind: models.PeriodMonth})
	if err != nil {
		t.Fatal(err)
	}
	var model *predictor.Model
	if withModel {
		schema, err := predictor.NewSchema([]string{"year", "month", "city_CDMX", "city_Monterrey"})
		if err != nil {
			t.Fatal(err)
		}
		model = &predictor.Model{
			Schema:    schema,
			Predictor: &predictor.LinearModel{Intercept: 10, Weights: []float64{0, 1, 2, 5}},
		}
	}
	return session.New(ds, model)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		t.Fatal(err)
	}
	sess := setupSession(t, false)
	if _, err := st.ReplaceObservations(sess.Dataset(), ""); err != nil {
		t.Fatal(err)
	}

	srv := api.NewServer(sess, "8080")
	srv.SetStore(st)
	w := get(t, srv.Handler(), "/health")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var health api.HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" {
		t.Errorf("status = %q, want ok", health.Status)
	}
	if health.Cities != 2 {
		t.Errorf("cities = %d, want 2", health.Cities)
	}
	if !strings.Contains(w.Body.String(), `"last_import"`) {
		t.Error("expected last_import in health response")
	}
}

func TestIndexPage(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupSession(t, false), "8080")

	w := get(t, srv.Handler(), "/")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"Temperatura Mexico", "CDMX", "Monterrey", "Enero", "21.0 °C"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in index page", want)
		}
	}
	if strings.Contains(body, "Usar modelo entrenado") {
		t.Error("model controls shown without a model")
	}
}

func TestIndexPage_NotFound(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupSession(t, false), "8080")
	if w := get(t, srv.Handler(), "/nope"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestResultPartial(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupSession(t, false), "8080")

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"month number", "?city=CDMX&period=2", "15.0 °C"},
		{"month name", "?city=CDMX&period=enero", "21.0 °C"},
		{"all temps missing", "?city=CDMX&period=3", "No hay datos históricos"},
		{"unknown city", "?city=Puebla&period=1", "No hay datos históricos"},
		{"case sensitive city", "?city=cdmx&period=1", "No hay datos históricos"},
		{"invalid period", "?city=CDMX&period=trece", "Periodo no válido"},
		{"ignores invalid temp", "?city=Monterrey&period=6", "31.0 °C"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, srv.Handler(), "/partials/result"+tt.query)
			if w.Code != 200 {
				t.Fatalf("expected 200, got %d", w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.want) {
				t.Errorf("expected %q in body:\n%s", tt.want, w.Body.String())
			}
		})
	}
}

func TestResultPartial_Prediction(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupSession(t, true), "8080")

	w := get(t, srv.Handler(), "/partials/result?city=Monterrey&period=1&year=2030&predict=1")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	// 10 + 1 (month) + 5 (city_Monterrey)
	if !strings.Contains(body, "16.0 °C") {
		t.Errorf("expected model estimate in body:\n%s", body)
	}
	if !strings.Contains(body, "No hay datos históricos") {
		t.Error("historical NoData should still be reported next to the prediction")
	}
}

func TestChartImage(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupSession(t, false), "8080")
	h := srv.Handler()

	w := get(t, h, "/chart.png?city=CDMX")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("\x89PNG")) {
		t.Error("body is not a PNG")
	}

	// served from cache the second time
	w2 := get(t, h, "/chart.png?city=CDMX")
	if !bytes.Equal(w.Body.Bytes(), w2.Body.Bytes()) {
		t.Error("cached chart differs")
	}

	if w := get(t, h, "/chart.png"); w.Code != http.StatusBadRequest {
		t.Errorf("missing city: expected 400, got %d", w.Code)
	}
}

func TestAPIEstimate(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupSession(t, false), "8080")
	h := srv.Handler()

	tests := []struct {
		query    string
		code     int
		estimate string
	}{
		{"?city=CDMX&period=1", 200, "21"},
		{"?city=CDMX&period=3", 200, "null"},
		{"?city=Oaxaca&period=1", 200, "null"},
		{"?city=CDMX", 400, ""},
		{"?period=1", 400, ""},
		{"?city=CDMX&period=13", 400, ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := get(t, h, "/api/estimate"+tt.query)
			if w.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
			if tt.code != 200 {
				return
			}
			var resp map[string]json.RawMessage
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if got := string(resp["estimate"]); got != tt.estimate {
				t.Errorf("estimate = %s, want %s", got, tt.estimate)
			}
		})
	}
}

func TestAPIListsAndSeries(t *testing.T) {
	t.Parallel()
	srv := api.NewServer(setupSession(t, false), "8080")
	h := srv.Handler()

	var cities []string
	if err := json.Unmarshal(get(t, h, "/api/cities").Body.Bytes(), &cities); err != nil {
		t.Fatal(err)
	}
	if len(cities) != 2 || cities[0] != "CDMX" {
		t.Errorf("cities = %v", cities)
	}

	var periods []struct{ Value, Label string }
	if err := json.Unmarshal(get(t, h, "/api/periods").Body.Bytes(), &periods); err != nil {
		t.Fatal(err)
	}
	if len(periods) != 4 || periods[0].Label != "Enero" || periods[3].Value != "6" {
		t.Errorf("periods = %+v", periods)
	}

	var series struct {
		City   string
		Series []struct {
			Period string
			Mean   float64
			Count  int
		}
	}
	if err := json.Unmarshal(get(t, h, "/api/series?city=CDMX").Body.Bytes(), &series); err != nil {
		t.Fatal(err)
	}
	// March has no valid temperature and is left out.
	if len(series.Series) != 2 || series.Series[0].Mean != 21 || series.Series[0].Count != 2 {
		t.Errorf("series = %+v", series)
	}
}

func TestAPIPredict(t *testing.T) {
	t.Parallel()

	noModel := api.NewServer(setupSession(t, false), "8080")
	if w := get(t, noModel.Handler(), "/api/predict?city=CDMX&month=1&year=2030"); w.Code != http.StatusNotFound {
		t.Errorf("no model: expected 404, got %d", w.Code)
	}

	h := api.NewServer(setupSession(t, true), "8080").Handler()
	tests := []struct {
		query string
		code  int
		want  float64
	}{
		{"?city=Monterrey&month=6&year=2030", 200, 21},
		{"?city=CDMX&month=marzo&year=2030", 200, 15},
		{"?city=Puebla&month=1&year=2030", 200, 11},
		{"?city=CDMX&month=13&year=2030", 400, 0},
		{"?city=CDMX&year=2030", 400, 0},
		{"?month=1&year=2030", 400, 0},
		{"?city=CDMX&month=1&year=abc", 400, 0},
		{"?city=CDMX&month=1&year=1500", 400, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := get(t, h, "/api/predict"+tt.query)
			if w.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
			if tt.code != 200 {
				return
			}
			var resp struct{ Estimate float64 }
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Estimate != tt.want {
				t.Errorf("estimate = %v, want %v", resp.Estimate, tt.want)
			}
		})
	}
}

func TestUnavailableServer(t *testing.T) {
	t.Parallel()
	_, loadErr := dataset.Parse([]byte("Ciudad,Temperatura\nCDMX,20\n"), dataset.Options{Kind: models.PeriodMonth})
	if loadErr == nil {
		t.Fatal("expected missing column error")
	}
	h := api.NewUnavailableServer(loadErr, "8080").Handler()

	w := get(t, h, "/")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "columna requerida") || !strings.Contains(body, "Ciudad") {
		t.Errorf("expected missing column explanation, got:\n%s", body)
	}

	for _, path := range []string{"/api/estimate?city=CDMX&period=1", "/api/cities", "/health", "/chart.png?city=CDMX"} {
		if w := get(t, h, path); w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, w.Code)
		}
	}
}

func TestCityMatchIsExact(t *testing.T) {
	t.Parallel()
	ds, err := dataset.Parse([]byte("Ciudad,Mes,Temperatura\nCDMX,1,21\nMonterrey ,6,31\n"), dataset.Options{Kind: models.PeriodMonth})
	if err != nil {
		t.Fatal(err)
	}
	h := api.NewServer(session.New(ds, nil), "8080").Handler()

	var cities []string
	if err := json.Unmarshal(get(t, h, "/api/cities").Body.Bytes(), &cities); err != nil {
		t.Fatal(err)
	}
	if len(cities) != 2 || cities[1] != "Monterrey " {
		t.Fatalf("cities = %q", cities)
	}

	tests := []struct {
		query    string
		estimate string
	}{
		{"?city=CDMX&period=1", "21"},
		{"?city=CDMX%20&period=1", "null"},
		{"?city=%20CDMX&period=1", "null"},
		{"?city=Monterrey%20&period=6", "31"},
		{"?city=Monterrey&period=6", "null"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := get(t, h, "/api/estimate"+tt.query)
			if w.Code != 200 {
				t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
			}
			var resp map[string]json.RawMessage
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if got := string(resp["estimate"]); got != tt.estimate {
				t.Errorf("estimate = %s, want %s", got, tt.estimate)
			}
		})
	}

	// the listed value round-trips through the page form
	w := get(t, h, "/partials/result?city=Monterrey%20&period=6")
	if !strings.Contains(w.Body.String(), "31.0 °C") {
		t.Errorf("expected estimate for listed city, got:\n%s", w.Body.String())
	}
	if w := get(t, h, "/?city=Monterrey%20&period=6"); !strings.Contains(w.Body.String(), `<option value="Monterrey " selected>`) {
		t.Error("listed city with trailing space is not selected")
	}
}

func TestChartImage_UnknownCitiesNotCached(t *testing.T) {
	t.Parallel()
	h := api.NewServer(setupSession(t, false), "8080").Handler()

	for i := 0; i < 20; i++ {
		w := get(t, h, fmt.Sprintf("/chart.png?city=junk-%d", i))
		if w.Code != 200 {
			t.Fatalf("expected 200, got %d", w.Code)
		}
	}
	get(t, h, "/chart.png?city=CDMX")

	var health api.HealthStatus
	if err := json.Unmarshal(get(t, h, "/health").Body.Bytes(), &health); err != nil {
		t.Fatal(err)
	}
	if health.ChartsCached != 1 {
		t.Errorf("charts_cached = %d, want 1", health.ChartsCached)
	}
}
