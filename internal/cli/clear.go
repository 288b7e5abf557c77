package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/milestone-tracker/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every answer and evidence reference of the profile",
		Long:  "Delete every recorded answer and evidence reference of the profile. Irreversible; requires --yes.",
		Run:   runClear,
	}

	cmd.Flags().Bool("yes", false, "Confirm the deletion")

	RootCmd.AddCommand(cmd)
}

func runClear(cmd *cobra.Command, args []string) {
	yes, _ := cmd.Flags().GetBool("yes")
	if !yes {
		exitErr("clear", model.NewError(model.KindInvalidInput, nil, "refusing to delete all responses without --yes"))
	}

	s, err := openSession(cmd.Context(), nil)
	if err != nil {
		exitErr("open", err)
	}
	defer s.Close()

	if err := s.book.ClearAll(cmd.Context()); err != nil {
		exitErr("clear", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"profile":%q}`+"\n", s.book.Profile())
}
