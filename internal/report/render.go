package report

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/tmcallister/crashkit/internal/core/domain"
)

// Renderer produces the export body for a report. The body is rendered once
// at build time and reused verbatim for every delivery attempt.
type Renderer interface {
	Render(rep *domain.Report) []byte
}

const markdownTemplate = `# Crash Report{{if .AppName}} - {{.AppName}}{{if .AppVersion}} v{{.AppVersion}}{{end}}{{end}}

- **ID**: {{.ID}}
- **Time**: {{.Timestamp.Format "2006-01-02 15:04:05 MST"}}
- **Kind**: {{.Kind}}
- **Message**: {{.Message}}
{{- if .User}}
- **User**: {{.User}}
{{- end}}
{{- if .SessionID}}
- **Session**: {{.SessionID}}
{{- end}}

## Stack
{{range .Frames}}
### {{.Function}} ({{.File}}:{{.Line}})
{{- if .Source}}
` + "```" + `
{{- range .Source}}
{{printf "%5d" .Number}}  {{.Text}}
{{- end}}
` + "```" + `
{{- end}}
{{- if .Vars}}
| Variable | Value |
|---|---|
{{- range .Vars}}
| {{.Name}} | {{.Value}} |
{{- end}}
{{- end}}
{{end}}`

// MarkdownRenderer renders reports as markdown text.
type MarkdownRenderer struct {
	tmpl *template.Template
}

// NewMarkdownRenderer compiles the built-in template. The template is a
// compile-time constant, so parsing cannot fail at runtime.
func NewMarkdownRenderer() *MarkdownRenderer {
	return &MarkdownRenderer{
		tmpl: template.Must(template.New("report").Parse(markdownTemplate)),
	}
}

// Render produces the markdown body. Execution errors degrade to a minimal
// plain-text body rather than failing the build.
func (r *MarkdownRenderer) Render(rep *domain.Report) []byte {
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, rep); err != nil {
		return fallbackBody(rep)
	}
	return buf.Bytes()
}

func fallbackBody(rep *domain.Report) []byte {
	return fmt.Appendf(nil, "Crash Report %s\n%s: %s\n", rep.ID, rep.Kind, rep.Message)
}
