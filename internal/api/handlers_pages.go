package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/monseeglzg-netizen/blank-app/internal/chart"
	"github.com/monseeglzg-netizen/blank-app/internal/dataset"
	"github.com/monseeglzg-netizen/blank-app/internal/models"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if !s.available() {
		s.renderUnavailable(w)
		return
	}
	data := s.buildIndexData(r)
	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		log.Printf("api: template error: %v", err)
	}
}

func (s *Server) handleResultPartial(w http.ResponseWriter, r *http.Request) {
	if !s.available() {
		s.renderUnavailable(w)
		return
	}
	data := s.buildIndexData(r)
	if err := s.tmpl.ExecuteTemplate(w, "result.html", data); err != nil {
		log.Printf("api: template error: %v", err)
	}
}

func (s *Server) handleChartPartial(w http.ResponseWriter, r *http.Request) {
	if !s.available() {
		s.renderUnavailable(w)
		return
	}
	data := s.buildIndexData(r)
	if err := s.tmpl.ExecuteTemplate(w, "chart.html", data); err != nil {
		log.Printf("api: template error: %v", err)
	}
}

func (s *Server) handleChartImage(w http.ResponseWriter, r *http.Request) {
	if !s.available() {
		http.Error(w, "dataset unavailable", http.StatusServiceUnavailable)
		return
	}
	city := r.URL.Query().Get("city")
	if city == "" {
		http.Error(w, "city is required", http.StatusBadRequest)
		return
	}

	if png, ok := s.charts.Get(city); ok {
		writePNG(w, png)
		return
	}

	series := s.sess.Series(city)
	points := make([]chart.Point, len(series))
	for i, pm := range series {
		points[i] = chart.Point{Label: pm.Label, Value: pm.Mean}
	}
	png, err := chart.RenderLine("Temperatura promedio: "+city, points)
	if err != nil {
		log.Printf("api: render chart for %q: %v", city, err)
		http.Error(w, "failed to render chart", http.StatusInternalServerError)
		return
	}
	if s.sess.HasCity(city) {
		s.charts.Set(city, png)
	}
	writePNG(w, png)
}

func writePNG(w http.ResponseWriter, png []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(png)
}

// buildIndexData resolves the selection from the query, falling back to the
// first city and period, and runs the requested estimators.
func (s *Server) buildIndexData(r *http.Request) IndexData {
	q := r.URL.Query()
	data := IndexData{
		Cities:   s.sess.Cities(),
		Kind:     s.sess.Kind(),
		HasModel: s.sess.HasModel(),
		City:     q.Get("city"),
		Period:   strings.TrimSpace(q.Get("period")),
		Year:     s.now().Year(),
	}
	periods := s.sess.Periods()
	if data.City == "" && len(data.Cities) > 0 {
		data.City = data.Cities[0]
	}
	if data.Period == "" && len(periods) > 0 {
		data.Period = periods[0].String()
	}
	if raw := q.Get("year"); raw != "" {
		if y, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			data.Year = y
		} else {
			data.Warning = fmt.Sprintf("Año no válido: %q", raw)
		}
	}

	period, err := s.sess.ParsePeriod(data.Period)
	if err != nil {
		data.Warning = fmt.Sprintf("Periodo no válido: %q", data.Period)
	}
	for _, p := range periods {
		data.Periods = append(data.Periods, PeriodOption{
			Value:    p.String(),
			Label:    p.Display(),
			Selected: err == nil && p == period,
		})
	}
	if err != nil || data.City == "" {
		return data
	}

	summary := s.sess.Estimate(data.City, period)
	data.Summary = &summary
	data.PeriodLabel = period.Display()

	switch {
	case period.IsMonth():
		data.Month = period.Month
	case q.Get("month") != "":
		if m, err := models.ParseMonth(q.Get("month")); err == nil {
			data.Month = m
		}
	}

	if q.Get("predict") == "1" && data.HasModel {
		data.Prediction = s.predictView(r, data.City, data.Month, data.Year)
	}
	return data
}

func (s *Server) predictView(r *http.Request, city string, month, year int) *PredictionView {
	view := &PredictionView{City: city, Month: month, Year: year}
	if month < 1 || month > 12 {
		view.Error = "Selecciona un mes para el modelo"
		return view
	}
	y, err := s.sess.Predict(r.Context(), city, month, year)
	if err != nil {
		log.Printf("api: predict %s %d/%d: %v", city, month, year, err)
		view.Error = "No se pudo obtener la predicción del modelo"
		return view
	}
	view.Value = y
	return view
}

func (s *Server) renderUnavailable(w http.ResponseWriter) {
	data := ErrorData{
		Message: "No se pudo cargar el conjunto de datos.",
	}
	var mc *dataset.MissingColumnError
	switch {
	case errors.As(s.loadErr, &mc):
		data.Message = fmt.Sprintf("El conjunto de datos no tiene la columna requerida para %s.", mc.Field)
		data.Detail = "Columnas disponibles: " + strings.Join(mc.Header, ", ")
	case s.loadErr != nil:
		data.Detail = s.loadErr.Error()
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	if err := s.tmpl.ExecuteTemplate(w, "error.html", data); err != nil {
		log.Printf("api: template error: %v", err)
	}
}
