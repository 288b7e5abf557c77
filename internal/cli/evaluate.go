package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/milestone-tracker/internal/reconcile"
	"github.com/rcliao/milestone-tracker/internal/remote"
)

func init() {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Submit completed milestones for evaluation",
		Long: "Send the in-scope milestones answered yes to the evaluation service and print the result. " +
			"Exits 2 when the service is unreachable or times out, so the caller can retry.",
		Run: runEvaluate,
	}

	cmd.Flags().IntP("age", "a", -1, "Age in months (default: the profile's age)")

	RootCmd.AddCommand(cmd)
}

func runEvaluate(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context(), nil)
	if err != nil {
		exitErr("open", err)
	}
	defer s.Close()

	age := s.profile.Child().AgeMonths
	if cmd.Flags().Changed("age") {
		age, _ = cmd.Flags().GetInt("age")
	}

	r := reconcile.New(s.book, remote.NewClient(cfg.Service.BaseURL),
		reconcile.WithChild(s.profile),
		reconcile.WithLogger(logger))

	res, err := r.Evaluate(cmd.Context(), age)
	if err != nil {
		exitErr("evaluate", err)
	}
	printJSON(cmd.OutOrStdout(), res)
}
