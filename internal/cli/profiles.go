package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/milestone-tracker/internal/store"
)

func init() {
	profilesCmd := &cobra.Command{
		Use:   "profiles",
		Short: "Child profile management",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List profiles that have stored records",
		Run:   runProfilesList,
	}

	profilesCmd.AddCommand(listCmd)
	RootCmd.AddCommand(profilesCmd)
}

func runProfilesList(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	entries, err := s.Entries(cmd.Context(), "")
	if err != nil {
		exitErr("list profiles", err)
	}
	printJSON(cmd.OutOrStdout(), store.Summarize(entries))
}
