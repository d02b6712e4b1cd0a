package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/monseeglzg-netizen/blank-app/internal/models"
)

var validate = validator.New()

type estimateQuery struct {
	City   string `validate:"required"`
	Period string `validate:"required"`
}

type predictQuery struct {
	City  string `validate:"required"`
	Month int    `validate:"min=1,max=12"`
	Year  int    `validate:"min=1700,max=2200"`
}

type periodJSON struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type predictionJSON struct {
	City     string  `json:"city"`
	Month    int     `json:"month"`
	Year     int     `json:"year"`
	Estimate float64 `json:"estimate"`
}

type importJSON struct {
	Source     string    `json:"source"`
	PeriodKind string    `json:"period_kind"`
	Rows       int       `json:"rows"`
	Skipped    int       `json:"skipped"`
	ImportedAt time.Time `json:"imported_at"`
}

type HealthStatus struct {
	Status       string      `json:"status"`
	Error        string      `json:"error,omitempty"`
	Observations int         `json:"observations"`
	Cities       int         `json:"cities"`
	Model        bool        `json:"model"`
	ChartsCached int         `json:"charts_cached"`
	LastImport   *importJSON `json:"last_import,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requireSession answers 503 when the dataset failed to load.
func (s *Server) requireSession(w http.ResponseWriter) bool {
	if s.available() {
		return true
	}
	msg := "dataset unavailable"
	if s.loadErr != nil {
		msg = s.loadErr.Error()
	}
	writeError(w, http.StatusServiceUnavailable, msg)
	return false
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		default:
			msgs = append(msgs, field+" must satisfy "+fe.Tag()+"="+fe.Param())
		}
	}
	return strings.Join(msgs, "; ")
}

func (s *Server) handleAPICities(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w) {
		return
	}
	writeJSON(w, http.StatusOK, s.sess.Cities())
}

func (s *Server) handleAPIPeriods(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w) {
		return
	}
	periods := s.sess.Periods()
	out := make([]periodJSON, len(periods))
	for i, p := range periods {
		out[i] = periodJSON{Value: p.String(), Label: p.Display()}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPIEstimate(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w) {
		return
	}
	q := estimateQuery{
		City:   r.URL.Query().Get("city"),
		Period: strings.TrimSpace(r.URL.Query().Get("period")),
	}
	if err := validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}
	period, err := s.sess.ParsePeriod(q.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.sess.Estimate(q.City, period))
}

func (s *Server) handleAPISeries(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w) {
		return
	}
	city := r.URL.Query().Get("city")
	if city == "" {
		writeError(w, http.StatusBadRequest, "city is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"city":   city,
		"series": s.sess.Series(city),
	})
}

func (s *Server) handleAPIPredict(w http.ResponseWriter, r *http.Request) {
	if !s.requireSession(w) {
		return
	}
	if !s.sess.HasModel() {
		writeError(w, http.StatusNotFound, "no trained model loaded")
		return
	}

	params := r.URL.Query()
	q := predictQuery{City: params.Get("city")}
	if raw := params.Get("month"); raw != "" {
		m, err := models.ParseMonth(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		q.Month = m
	}
	q.Year = s.now().Year()
	if raw := params.Get("year"); raw != "" {
		y, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			writeError(w, http.StatusBadRequest, "year must be an integer")
			return
		}
		q.Year = y
	}
	if err := validate.Struct(q); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	y, err := s.sess.Predict(r.Context(), q.City, q.Month, q.Year)
	if err != nil {
		log.Printf("api: predict %s %d/%d: %v", q.City, q.Month, q.Year, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, predictionJSON{City: q.City, Month: q.Month, Year: q.Year, Estimate: y})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.available() {
		health := HealthStatus{Status: "unavailable"}
		if s.loadErr != nil {
			health.Error = s.loadErr.Error()
		}
		writeJSON(w, http.StatusServiceUnavailable, health)
		return
	}

	health := HealthStatus{
		Status:       "ok",
		Observations: len(s.sess.Dataset().Observations),
		Cities:       len(s.sess.Cities()),
		Model:        s.sess.HasModel(),
		ChartsCached: s.charts.Len(),
	}
	if s.store != nil {
		imp, err := s.store.LastImport()
		if err != nil {
			health.Status = "degraded"
			health.Error = err.Error()
		} else if imp != nil {
			health.LastImport = &importJSON{
				Source:     imp.Source,
				PeriodKind: string(imp.PeriodKind),
				Rows:       imp.RowCount,
				Skipped:    imp.Skipped,
				ImportedAt: imp.ImportedAt,
			}
		}
	}
	writeJSON(w, http.StatusOK, health)
}
