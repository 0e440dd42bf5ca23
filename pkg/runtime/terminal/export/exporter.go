package export

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/de-tools/pivot-reports/pkg/adapters"
	"github.com/de-tools/pivot-reports/pkg/models/domain"
)

const (
	FormatText = "text"
	FormatTree = "tree"
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

// Exporter renders a pivot document in one output format.
type Exporter interface {
	Handle(doc *domain.ReportDocument) error
}

func Formats() []string {
	return []string{FormatText, FormatTree, FormatJSON, FormatXLSX}
}

func NewExporter(format string, writer io.Writer) (Exporter, error) {
	switch strings.ToLower(format) {
	case "", FormatText:
		return NewReporter(writer), nil
	case FormatTree:
		return NewTreeRenderer(writer), nil
	case FormatJSON:
		return &jsonExporter{writer: writer}, nil
	case FormatXLSX:
		return NewXLSXWriter(writer), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q, expected one of %s",
			format, strings.Join(Formats(), ", "))
	}
}

type jsonExporter struct {
	writer io.Writer
}

func (j *jsonExporter) Handle(doc *domain.ReportDocument) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(adapters.MapReportDocumentDomainToApi(doc))
}
