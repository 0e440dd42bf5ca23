package commands

import (
	"fmt"
	"os"
	"slices"

	"github.com/de-tools/pivot-reports/pkg/services/pivot"
	"github.com/spf13/cobra"
)

type ColumnsCmd struct {
	file     string
	analyser *pivot.Analyser
}

func NewColumnsCmd(analyser *pivot.Analyser) *cobra.Command {
	cc := &ColumnsCmd{analyser: analyser}
	cmd := &cobra.Command{
		Use:   "columns",
		Short: "List the columns and accounts of a report CSV file",
		RunE:  cc.run,
	}

	cmd.Flags().StringVar(&cc.file, "file", "", "Path to the report CSV")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func (cc *ColumnsCmd) run(cmd *cobra.Command, _ []string) error {
	f, err := os.Open(cc.file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", cc.file, err)
	}
	defer f.Close()

	info, err := cc.analyser.Inspect(cmd.Context(), f)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", cc.file, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d rows, %d accounts\n\nColumns:\n", info.Rows, len(info.Accounts))
	for _, column := range info.Columns {
		marker := ""
		if slices.Contains(info.PriceColumns, column) {
			marker = "  (summable)"
		}
		fmt.Fprintf(out, "  %-24s %s%s\n", column, pivot.Label(column), marker)
	}

	fmt.Fprintln(out, "\nAccounts:")
	for _, account := range info.Accounts {
		fmt.Fprintf(out, "  %s\n", account)
	}
	return nil
}
