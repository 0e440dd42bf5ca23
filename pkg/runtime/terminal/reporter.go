package terminal

import (
	"fmt"
	"io"
	"os"
	"text/template"

	"github.com/de-tools/pivot-reports/pkg/models/domain"
)

// Reporter outputs report requests to the console in a formatted text form
type Reporter struct {
	writer io.Writer
}

// NewReporter creates a new console reporter
func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{writer: writer}
}

func (c *Reporter) HandleHistory(requests []domain.ReportRequest) error {
	tmpl := `{{if not .}}No report requests found
{{end}}{{range .}}
{{.RequestID}} [{{.Status}}]
  Owner:     {{.Owner}}
  Period:    {{.Payload.DateFrom}} to {{.Payload.DateTo}}{{if .Payload.AccountID}}
  Account:   {{.Payload.AccountID}}{{end}}{{if .Payload.GroupBy}}
  Group by:  {{.Payload.GroupBy}}{{end}}
  Requested: {{.CreatedAt.Format "2006-01-02 15:04:05"}}{{if .CompletedAt}}
  Completed: {{.CompletedAt.Format "2006-01-02 15:04:05"}}{{end}}{{if .CSVPath}}
  CSV:       {{.CSVPath}}{{end}}
{{end}}`

	t, err := template.New("history").Parse(tmpl)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	return t.Execute(c.writer, requests)
}
