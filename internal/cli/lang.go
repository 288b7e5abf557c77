package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "lang [en|hi]",
		Short: "Set or toggle the display language",
		Long:  "Set the display language, or toggle between English and Hindi when no code is given.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runLang,
	}

	RootCmd.AddCommand(cmd)
}

func runLang(cmd *cobra.Command, args []string) {
	s, err := openSession(cmd.Context(), nil)
	if err != nil {
		exitErr("open", err)
	}
	defer s.Close()

	lang := ""
	if len(args) == 1 {
		err = s.profile.SetLanguage(cmd.Context(), args[0])
		lang = s.profile.Language()
	} else {
		lang, err = s.profile.ToggleLanguage(cmd.Context())
	}
	if err != nil {
		exitErr("lang", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"language":%q}`+"\n", lang)
}
