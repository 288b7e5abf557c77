package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/milestone-tracker/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored records as JSON",
		Long:  "Export every stored record of the profile, or of all profiles with --all.",
		Run:   runExport,
	}

	cmd.Flags().Bool("all", false, "Export every profile")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	all, _ := cmd.Flags().GetBool("all")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	profile := cfg.Profile
	if all {
		profile = ""
	}
	entries, err := store.Export(cmd.Context(), s, profile)
	if err != nil {
		exitErr("export", err)
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	printJSON(cmd.OutOrStdout(), entries)
}
