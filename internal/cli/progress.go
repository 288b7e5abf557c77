package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/milestone-tracker/internal/model"
	"github.com/rcliao/milestone-tracker/internal/progress"
)

func init() {
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show completion and red flags for the child's age",
		Long:  "Compute the completion ratio over milestones in scope for the age, and list red-flag milestones answered no past their window.",
		Run:   runProgress,
	}

	cmd.Flags().IntP("age", "a", -1, "Age in months (default: the profile's age)")

	RootCmd.AddCommand(cmd)
}

func runProgress(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context(), nil)
	if err != nil {
		exitErr("open", err)
	}
	defer s.Close()

	age := s.profile.Child().AgeMonths
	if cmd.Flags().Changed("age") {
		age, _ = cmd.Flags().GetInt("age")
		if age < 0 {
			exitErr("progress", model.NewError(model.KindInvalidInput, nil, "age must be non-negative"))
		}
	}

	printJSON(cmd.OutOrStdout(), progress.Calculate(s.catalog, s.book.Snapshot(), age))
}
