package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/milestone-tracker/internal/remote"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the development assistant a question",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAsk,
	}

	cmd.Flags().Bool("no-age", false, "Do not send the child's age")

	RootCmd.AddCommand(cmd)
}

func runAsk(cmd *cobra.Command, args []string) {
	noAge, _ := cmd.Flags().GetBool("no-age")

	req := remote.ChatRequest{Message: strings.Join(args, " ")}
	if !noAge {
		s, err := openSession(cmd.Context(), nil)
		if err != nil {
			exitErr("open", err)
		}
		age := s.profile.Child().AgeMonths
		req.ChildAgeMonths = &age
		s.Close()
	}

	resp, err := remote.NewClient(cfg.Service.BaseURL).Chat(cmd.Context(), req)
	if err != nil {
		exitErr("ask", err)
	}
	printJSON(cmd.OutOrStdout(), resp)
}
