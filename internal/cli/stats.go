package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/milestone-tracker/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show storage statistics",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if sq, ok := s.(*store.SQLiteStore); ok {
		stats, err := sq.Stats(cmd.Context(), cfg.DB)
		if err != nil {
			exitErr("stats", err)
		}
		printJSON(cmd.OutOrStdout(), stats)
		return
	}

	entries, err := s.Entries(cmd.Context(), "")
	if err != nil {
		exitErr("stats", err)
	}
	printJSON(cmd.OutOrStdout(), &store.Stats{
		TotalRecords: len(entries),
		Profiles:     store.Summarize(entries),
	})
}
