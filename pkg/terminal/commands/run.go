package commands

import (
	"fmt"

	"github.com/de-tools/pivot-reports/pkg/services/reports"
	"github.com/spf13/cobra"
)

type RunCmd struct {
	profile  string
	dateFrom string
	dateTo   string
	subaccts bool
	flags    pivotFlags
	factory  AppFactory
}

func NewRunCmd(factory AppFactory) *cobra.Command {
	rc := &RunCmd{factory: factory}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Request a report, wait for its delivery and pivot it",
		Long: "Run requests a report from the reports API and serves the callback endpoint " +
			"until the report is delivered. server.public_url must reach this process.",
		RunE: rc.run,
	}

	cmd.Flags().StringVar(&rc.profile, "profile", "", "Credential profile (default profile when empty)")
	cmd.Flags().StringVar(&rc.dateFrom, "from", "", "First day of the report, YYYY-MM-DD")
	cmd.Flags().StringVar(&rc.dateTo, "to", "", "Last day of the report, YYYY-MM-DD")
	cmd.Flags().BoolVar(&rc.subaccts, "include-subaccounts", false, "Include subaccount traffic")
	rc.flags.register(cmd)

	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func (rc *RunCmd) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	params := rc.flags.parameters()
	params.DateFrom = rc.dateFrom
	params.DateTo = rc.dateTo
	params.IncludeSubaccounts = rc.subaccts
	if err := reports.ValidateDates(params); err != nil {
		return err
	}

	application, err := rc.factory(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	res, err := application.RunReport(ctx, rc.profile, params)
	if err != nil {
		return fmt.Errorf("failed to run report: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Report delivered to %s in the storage root\n", res.CSVPath)
	return rc.flags.export(cmd, res.Document)
}
