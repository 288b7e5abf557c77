package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/milestone-tracker/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get [milestone-id]",
		Short: "Show recorded answers",
		Long:  "Show the answer and evidence for one milestone, or every recorded answer when no id is given.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runGet,
	}

	RootCmd.AddCommand(cmd)
}

type milestoneAnswer struct {
	ID          string             `json:"id"`
	Description string             `json:"description"`
	Answer      model.Answer       `json:"answer"`
	Evidence    *model.EvidenceRef `json:"evidence,omitempty"`
}

func runGet(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context(), nil)
	if err != nil {
		exitErr("open", err)
	}
	defer s.Close()

	if len(args) == 0 {
		snap := s.book.Snapshot()
		printJSON(cmd.OutOrStdout(), map[string]any{
			"profile":  s.book.Profile(),
			"version":  snap.Version,
			"answers":  snap.Answers(),
			"evidence": s.book.AllEvidence(),
		})
		return
	}

	m, ok := s.catalog.Get(args[0])
	if !ok {
		exitErr("get", model.NewError(model.KindInvalidMilestoneID, nil, "%q", args[0]))
	}
	out := milestoneAnswer{ID: m.ID, Description: m.Description, Answer: s.book.Get(m.ID)}
	if ref, ok := s.book.Evidence(m.ID); ok {
		out.Evidence = &ref
	}
	printJSON(cmd.OutOrStdout(), out)
}
