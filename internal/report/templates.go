package report

import (
	"bytes"
	"embed"
	"html/template"
	"strings"

	"github.com/tasklenslab/tasklens/internal/analyze"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate = template.Must(template.New("report.html").Funcs(template.FuncMap{
	"safeHTML": func(value string) template.HTML { return template.HTML(value) },
	"letter": func(index int) string {
		return string(rune('a' + index%26))
	},
	"bodyLines": renderBodyLines,
}).ParseFS(templateFS, "templates/report.html"))

// TemplateData feeds the report template.
type TemplateData struct {
	Title         string
	PeriodStart   string
	PeriodEnd     string
	GeneratedOn   string
	Author        string
	Goals         []TemplateSection
	Completed     []TemplateSection
	InProgress    []TemplateSection
	Uncategorized []TemplateTask
	StatusChart   string
}

// TemplateSection is a parent-named group of tasks.
type TemplateSection struct {
	Group string
	Tasks []TemplateTask
}

// TemplateTask is a single rendered task entry.
type TemplateTask struct {
	Name string
	Body string
}

// RenderReportHTML executes the report template.
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderBodyLines converts a plain-text body into minimally styled HTML.
// Lines get their own paragraph; **bold** runs become <strong>.
func renderBodyLines(body string) template.HTML {
	var out strings.Builder
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		class := "body-line"
		if strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") {
			class = "body-line indented"
		}
		out.WriteString(`<p class="` + class + `">`)
		for i, part := range strings.Split(line, "**") {
			escaped := template.HTMLEscapeString(part)
			if i%2 == 1 {
				out.WriteString("<strong>" + escaped + "</strong>")
			} else {
				out.WriteString(escaped)
			}
		}
		out.WriteString("</p>")
	}
	return template.HTML(out.String())
}

// statusBreakdownSVG charts the status mix of the tasks in this report.
func statusBreakdownSVG(groups ...[]task) string {
	counts := map[string]int{}
	for _, group := range groups {
		for _, item := range group {
			counts[item.status]++
		}
	}
	total := 0
	for _, count := range counts {
		total += count
	}
	if total == 0 {
		return ""
	}
	return analyze.PieChart("Task Status (This Report Period)", counts)
}
