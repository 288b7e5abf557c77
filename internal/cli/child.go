package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "child",
		Short: "Show or set the child's age and name",
		Run:   runChild,
	}

	cmd.Flags().IntP("age", "a", -1, "Age in months")
	cmd.Flags().StringP("name", "n", "", "Child's name (blank resets to the default)")

	RootCmd.AddCommand(cmd)
}

func runChild(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context(), nil)
	if err != nil {
		exitErr("open", err)
	}
	defer s.Close()

	if cmd.Flags().Changed("age") {
		age, _ := cmd.Flags().GetInt("age")
		if err := s.profile.SetAge(cmd.Context(), age); err != nil {
			exitErr("child", err)
		}
	}
	if cmd.Flags().Changed("name") {
		name, _ := cmd.Flags().GetString("name")
		if err := s.profile.SetChildName(cmd.Context(), name); err != nil {
			exitErr("child", err)
		}
	}

	printJSON(cmd.OutOrStdout(), map[string]any{
		"profile": s.profile.Name(),
		"child":   s.profile.Child(),
	})
}
