package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/de-tools/pivot-reports/pkg/models/domain"
	"github.com/de-tools/pivot-reports/pkg/runtime/terminal/export"
	"github.com/spf13/cobra"
)

// pivotFlags are the grouping options shared by the analyze and run commands.
type pivotFlags struct {
	accountID       string
	groupBy         string
	internalGroupBy []string
	showTotalBy     []string
	priceColumns    []string
	format          string
	outPath         string
}

func (pf *pivotFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&pf.accountID, "account", "", "Only report this account id")
	cmd.Flags().StringVar(&pf.groupBy, "group-by", "", "Column of the top level groups")
	cmd.Flags().StringSliceVar(&pf.internalGroupBy, "internal-group-by", nil, "Nested grouping columns, outermost first")
	cmd.Flags().StringSliceVar(&pf.showTotalBy, "show-total-by", nil, "Breakdown column of the innermost level")
	cmd.Flags().StringSliceVar(&pf.priceColumns, "price-columns", nil, "Columns to sum (detected when omitted)")
	cmd.Flags().StringVarP(&pf.format, "format", "f", export.FormatText, "Output format: text, tree, json or xlsx")
	cmd.Flags().StringVarP(&pf.outPath, "out", "o", "", "Write the output to a file instead of stdout")

	_ = cmd.MarkFlagRequired("group-by")
}

func (pf *pivotFlags) parameters() domain.ReportParameters {
	return domain.ReportParameters{
		AccountID:       pf.accountID,
		GroupBy:         pf.groupBy,
		InternalGroupBy: pf.internalGroupBy,
		ShowTotalBy:     pf.showTotalBy,
		PriceColumns:    pf.priceColumns,
	}
}

// export renders doc in the selected format to stdout or the --out file.
func (pf *pivotFlags) export(cmd *cobra.Command, doc *domain.ReportDocument) error {
	if pf.format == export.FormatXLSX && pf.outPath == "" {
		return fmt.Errorf("the xlsx format needs --out")
	}

	var out io.Writer = cmd.OutOrStdout()
	if pf.outPath != "" {
		f, err := os.Create(pf.outPath)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", pf.outPath, err)
		}
		defer f.Close()
		out = f
	}

	exporter, err := export.NewExporter(pf.format, out)
	if err != nil {
		return err
	}
	if err := exporter.Handle(doc); err != nil {
		return fmt.Errorf("failed to export report: %w", err)
	}

	if pf.outPath != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", pf.outPath)
	}
	return nil
}
