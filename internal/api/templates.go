package api

import (
	"embed"
	"html/template"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*
var templateFS embed.FS

// newTemplates parses the HTML templates with the formatting helpers.
func newTemplates() *template.Template {
	funcs := template.FuncMap{
		"value": formatValue,
		"unit":  displayUnit,
		"watts": func(v float64) string {
			return humanize.CommafWithDigits(v, 2)
		},
		"comma": func(n int) string {
			return humanize.Comma(int64(n))
		},
		"ago": func(t time.Time) string {
			return humanize.Time(t)
		},
		"lower": strings.ToLower,
	}
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}
