package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var assessmentTemplate = template.Must(template.New("assessment.html").Funcs(template.FuncMap{
	"lower": strings.ToLower,
	"formatDate": func(t time.Time, layout string) string {
		if t.IsZero() {
			return ""
		}
		return t.Format(layout)
	},
	"statusLabel": func(s string) string {
		return strings.ReplaceAll(s, "_", " ")
	},
}).ParseFS(templateFS, "templates/assessment.html"))

// RenderHTML renders the assessment document.
func RenderHTML(doc Document) (string, error) {
	var buf bytes.Buffer
	if err := assessmentTemplate.Execute(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}
