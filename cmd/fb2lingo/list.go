package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ximaera/fb2lingo/internal/language"
	"github.com/ximaera/fb2lingo/internal/metadata"
)

func newListCmd() *cobra.Command {
	var models bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List supported languages (or models with --models)",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			if models {
				fmt.Fprintln(out, "Known Models (USD per 1M tokens, in/out):")
				for _, m := range metadata.Models {
					fmt.Fprintf(out, "  %-8s %-24s %6.2f / %6.2f\n", m.Provider, m.ID, m.InputPerMillion, m.OutputPerMillion)
				}
				return
			}
			fmt.Fprintln(out, "Supported Languages:")
			for _, l := range language.GetSupportedLanguages() {
				fmt.Fprintf(out, "  %-35s [%s]\n", l.Name, l.ID)
			}
		},
	}
	cmd.Flags().BoolVar(&models, "models", false, "List known models and prices instead")
	cmd.SetUsageTemplate(subcommandUsageTemplate)
	return cmd
}
