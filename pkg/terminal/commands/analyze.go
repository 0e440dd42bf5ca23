package commands

import (
	"fmt"

	"github.com/de-tools/pivot-reports/pkg/services/pivot"
	"github.com/spf13/cobra"
)

type AnalyzeCmd struct {
	file     string
	flags    pivotFlags
	analyser *pivot.Analyser
}

func NewAnalyzeCmd(analyser *pivot.Analyser) *cobra.Command {
	ac := &AnalyzeCmd{analyser: analyser}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Pivot a report CSV file",
		RunE:  ac.run,
	}

	cmd.Flags().StringVar(&ac.file, "file", "", "Path to the report CSV")
	ac.flags.register(cmd)

	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func (ac *AnalyzeCmd) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	doc, err := ac.analyser.AnalyseFile(ctx, ac.file, pivot.QueryFromParameters(ac.flags.parameters()))
	if err != nil {
		return fmt.Errorf("failed to analyse %s: %w", ac.file, err)
	}

	return ac.flags.export(cmd, doc)
}
