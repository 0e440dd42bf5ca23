package export

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/de-tools/pivot-reports/pkg/models/domain"
	"github.com/de-tools/pivot-reports/pkg/services/pivot"
)

type TableConfig struct {
	GroupWidth  int
	CountWidth  int
	AmountWidth int
	Indent      int
}

func DefaultTableConfig() TableConfig {
	return TableConfig{
		GroupWidth:  40,
		CountWidth:  10,
		AmountWidth: 16,
		Indent:      2,
	}
}

// Reporter prints a pivot document as plain text tables, one per account.
type Reporter struct {
	writer io.Writer
	config TableConfig
}

func NewReporter(writer io.Writer) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{
		writer: writer,
		config: DefaultTableConfig(),
	}
}

type accountView struct {
	AccountID   string
	Currency    string
	TotalCount  int
	Rows        []Row
	GrandTotals []float64
}

func (c *Reporter) Handle(doc *domain.ReportDocument) error {
	columns := doc.PriceColumns

	funcMap := template.FuncMap{
		"formatHeader": func() string {
			var b strings.Builder
			fmt.Fprintf(&b, "| %-*s | %*s |", c.config.GroupWidth, "Group", c.config.CountWidth, "Count")
			for _, column := range columns {
				fmt.Fprintf(&b, " %*s |", c.config.AmountWidth, truncate(pivot.Label(column), c.config.AmountWidth))
			}
			return b.String()
		},
		"formatRow": func(row Row) string {
			name := strings.Repeat(" ", row.Depth*c.config.Indent) + row.Key
			return c.line(truncate(name, c.config.GroupWidth), row.Count, row.Totals)
		},
		"formatTotal": func(account accountView) string {
			return c.line("Total", account.TotalCount, account.GrandTotals)
		},
		"separator": func() string {
			var b strings.Builder
			fmt.Fprintf(&b, "+%s+%s+",
				strings.Repeat("-", c.config.GroupWidth+2),
				strings.Repeat("-", c.config.CountWidth+2))
			for range columns {
				b.WriteString(strings.Repeat("-", c.config.AmountWidth+2) + "+")
			}
			return b.String()
		},
	}

	tmpl := `
Pivot Report grouped by {{.Metadata.GroupBy}}{{if .Metadata.InternalGroupBy}} > {{join .Metadata.InternalGroupBy " > "}}{{end}}
Records: {{.Metadata.TotalRecords}}{{if .Currency}}  Currency: {{.Currency}}{{end}}
Generated: {{.Metadata.GeneratedAt.Format "2006-01-02 15:04:05 MST"}}
{{range .Accounts}}
=== Account {{.AccountID}} ===
{{separator}}
{{formatHeader}}
{{separator}}
{{range .Rows}}{{formatRow .}}
{{end}}{{separator}}
{{formatTotal .}}
{{separator}}
{{end}}`

	t, err := template.New("report").Funcs(funcMap).Funcs(template.FuncMap{"join": strings.Join}).Parse(tmpl)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	views := make([]accountView, 0, len(doc.Accounts))
	for _, account := range doc.Accounts {
		views = append(views, accountView{
			AccountID:   account.AccountID,
			Currency:    account.Currency,
			TotalCount:  account.TotalCount,
			Rows:        Rows(account, columns),
			GrandTotals: totalsOf(account.GrandTotals, columns),
		})
	}

	return t.Execute(c.writer, struct {
		*domain.ReportDocument
		Accounts []accountView
	}{ReportDocument: doc, Accounts: views})
}

func (c *Reporter) line(name string, count int, totals []float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "| %-*s | %*d |", c.config.GroupWidth, name, c.config.CountWidth, count)
	for _, total := range totals {
		fmt.Fprintf(&b, " %*.2f |", c.config.AmountWidth, total)
	}
	return b.String()
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 1 {
		return string(runes[:width])
	}
	return string(runes[:width-1]) + "…"
}
