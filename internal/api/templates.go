package api

import (
	"embed"
	"fmt"
	"html/template"

	"github.com/monseeglzg-netizen/blank-app/internal/models"
)

//go:embed templates/*
var templateFS embed.FS

// newTemplates creates and parses the HTML templates with custom functions.
func newTemplates() *template.Template {
	funcs := template.FuncMap{
		"celsius": func(f float64) string {
			return fmt.Sprintf("%.1f °C", f)
		},
		"monthName": models.MonthName,
		"months": func() []int {
			return []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
		},
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}
