package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

type ProfilesCmd struct {
	factory AppFactory
}

func NewProfilesCmd(factory AppFactory) *cobra.Command {
	pc := &ProfilesCmd{factory: factory}
	return &cobra.Command{
		Use:   "profiles",
		Short: "List the configured credential profiles",
		RunE:  pc.run,
	}
}

func (pc *ProfilesCmd) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	application, err := pc.factory(ctx)
	if err != nil {
		return err
	}
	defer application.Close()

	registry := application.Profiles()
	profiles, err := registry.GetProfiles(ctx)
	if err != nil {
		return fmt.Errorf("failed to list profiles: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(profiles) == 0 {
		fmt.Fprintln(out, "No profiles configured")
		return nil
	}
	for _, profile := range profiles {
		marker := ""
		if profile.Name == registry.DefaultProfile() {
			marker = " (default)"
		}
		fmt.Fprintf(out, "%s%s  api_key=%s\n", profile.Name, marker, mask(profile.Credentials.APIKey))
	}
	return nil
}

func mask(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "****"
}
