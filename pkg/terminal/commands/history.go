package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

type HistoryCmd struct {
	profile  string
	factory  AppFactory
	reporter HistoryReporter
}

func NewHistoryCmd(factory AppFactory, reporter HistoryReporter) *cobra.Command {
	hc := &HistoryCmd{factory: factory, reporter: reporter}
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the latest report requests of a profile",
		RunE:  hc.run,
	}

	cmd.Flags().StringVar(&hc.profile, "profile", "", "Credential profile (default profile when empty)")

	return cmd
}

func (hc *HistoryCmd) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	application, err := hc.factory(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	history, err := application.Service().History(ctx, hc.profile)
	if err != nil {
		return fmt.Errorf("failed to list report history: %w", err)
	}
	return hc.reporter.HandleHistory(history)
}
