package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/milestone-tracker/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "answer <milestone-id> <yes|no>",
		Short: "Record whether the child has reached a milestone",
		Long:  "Record a caregiver answer. The answer is durably saved before the command returns.",
		Args:  cobra.ExactArgs(2),
		Run:   runAnswer,
	}

	RootCmd.AddCommand(cmd)
}

// parseAnswer accepts yes/no in the forms caregivers type.
func parseAnswer(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true":
		return true, nil
	case "no", "n", "false":
		return false, nil
	}
	return false, model.NewError(model.KindInvalidInput, nil, "answer must be yes or no, got %q", s)
}

func runAnswer(cmd *cobra.Command, args []string) {
	id := args[0]
	value, err := parseAnswer(args[1])
	if err != nil {
		exitErr("answer", err)
	}

	s, err := openSession(cmd.Context(), nil)
	if err != nil {
		exitErr("open", err)
	}
	defer s.Close()

	if err := s.book.Set(cmd.Context(), id, value); err != nil {
		exitErr("answer", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"id":%q,"answer":%t}`+"\n", id, value)
}
