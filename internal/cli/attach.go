package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "attach <milestone-id> <video-file>",
		Short: "Attach captured video evidence to a milestone",
		Long: "Upload a video under a de-identified name and record the reference against the milestone. " +
			"Requires evidence.salt; uploads go to evidence.endpoint when set.",
		Args: cobra.ExactArgs(2),
		Run:  runAttach,
	}

	RootCmd.AddCommand(cmd)
}

func runAttach(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context(), nil)
	if err != nil {
		exitErr("open", err)
	}
	defer s.Close()

	rec, err := newEvidenceRecorder(s.book)
	if err != nil {
		exitErr("evidence", err)
	}

	capture, err := rec.Attach(cmd.Context(), args[0], args[1], s.profile.Child().AgeMonths)
	if err != nil {
		exitErr("attach", err)
	}
	printJSON(cmd.OutOrStdout(), capture)
}
