package handlers

import (
	"embed"
	"html/template"
	"strings"

	"github.com/example/plantid/internal/report"
)

//go:embed templates/*.html
var templateFS embed.FS

// LoadTemplates parses the embedded page templates.
func LoadTemplates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"trim":    strings.TrimSpace,
		"percent": report.FormatPercent,
	}).ParseFS(templateFS, "templates/*.html")
}
