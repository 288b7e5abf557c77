package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/milestone-tracker/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List milestones",
		Long: "List milestones. --age selects every milestone whose age window contains the age; " +
			"--tab selects the milestones typically reached at that age, as shown on a checklist tab.",
		Run: runCatalog,
	}

	cmd.Flags().IntP("age", "a", -1, "Child age in months (age-window filter)")
	cmd.Flags().Int("tab", -1, "Checklist tab in months (typical-age filter)")
	cmd.Flags().Bool("ids-only", false, "Only output milestone ids")
	cmd.MarkFlagsMutuallyExclusive("age", "tab")

	RootCmd.AddCommand(cmd)
}

func runCatalog(cmd *cobra.Command, args []string) {
	age, _ := cmd.Flags().GetInt("age")
	tab, _ := cmd.Flags().GetInt("tab")
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	cat, err := loadCatalog()
	if err != nil {
		exitErr("load catalog", err)
	}

	var milestones []model.Milestone
	switch {
	case cmd.Flags().Changed("age"):
		if age < 0 {
			exitErr("catalog", model.NewError(model.KindInvalidInput, nil, "age must be non-negative"))
		}
		milestones = cat.InScope(age)
	case cmd.Flags().Changed("tab"):
		milestones = cat.ByTypicalAge(tab)
	default:
		milestones = cat.All()
	}

	if idsOnly {
		for _, m := range milestones {
			fmt.Fprintln(cmd.OutOrStdout(), m.ID)
		}
		return
	}
	if milestones == nil {
		milestones = []model.Milestone{}
	}
	printJSON(cmd.OutOrStdout(), milestones)
}
