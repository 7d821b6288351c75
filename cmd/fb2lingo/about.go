package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ximaera/fb2lingo/internal/version"
)

func newAboutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "about",
		Short: "Show a short description and link",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "fb2lingo %s: bilingual FictionBook translator\n", version.Version)
			fmt.Fprintln(out, "Translates FB2 books paragraph by paragraph with OpenAI or Gemini models,")
			fmt.Fprintln(out, "keeping the original text next to, in place of, or in notes behind the translation.")
			fmt.Fprintln(out, "https://github.com/ximaera/fb2lingo")
		},
	}
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
