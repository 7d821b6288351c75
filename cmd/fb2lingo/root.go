package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/ximaera/fb2lingo/internal/cleanup"
	"github.com/ximaera/fb2lingo/internal/version"
)

const rootExamples = `  fb2lingo voina_i_mir.fb2                       # writes voina_i_mir.el.fb2
  fb2lingo book.fb2 book.bi.fb2 --original-first
  fb2lingo book.fb2 book.en.fb2 --source auto --target en --footnotes
  fb2lingo names book.fb2 names.json
  fb2lingo book.fb2 book.el.fb2 --glossary names.json`

// run executes the command line and returns the process exit code.
// Cleanup hooks run even when the command fails.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if cerr := cleanup.RunAll(); cerr != nil {
		fmt.Fprintln(stderr, cerr)
		err = errors.Join(err, cerr)
	}
	if err != nil {
		return 1
	}
	return 0
}

// newRootCmd builds the command tree. Without a subcommand the root
// translates, so "fb2lingo book.fb2" is the common invocation.
func newRootCmd() *cobra.Command {
	opts := translateOptions{}

	cmd := &cobra.Command{
		Use:   "fb2lingo <input.fb2> [output.fb2]",
		Short: "Bilingual FictionBook translator",
		Long: "fb2lingo translates the paragraphs of an FB2 book in batches and writes a\n" +
			"translated or bilingual copy next to it.",
		Example:      rootExamples,
		Version:      version.Info(),
		Args:         cobra.ArbitraryArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if cmd.Flags().NFlag() == 0 {
					return cmd.Help()
				}
				_ = cmd.Usage()
				return errors.New("an input book is required")
			}
			if err := unknownCommand(cmd, args[0]); err != nil {
				return err
			}
			return runTranslate(cmd, args, &opts)
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.SetUsageTemplate(rootUsageTemplate)
	addTranslateFlags(cmd.Flags(), &opts)

	cmd.AddCommand(
		newTranslateCmd(),
		newNamesCmd(),
		newListCmd(),
		newEnvCmd(),
		newAboutCmd(),
	)

	cmd.InitDefaultCompletionCmd()
	if c, _, err := cmd.Find([]string{"completion"}); err == nil && c != cmd {
		c.Short = "Generate shell completion scripts"
		c.SetUsageTemplate(subcommandUsageTemplate)
	}
	return cmd
}

// unknownCommand catches a mistyped subcommand before it is taken for a
// book path. Anything with an extension or a directory is a path.
func unknownCommand(cmd *cobra.Command, arg string) error {
	if filepath.Ext(arg) != "" || strings.ContainsAny(arg, `/\`) {
		return nil
	}
	suggestions := cmd.SuggestionsFor(arg)
	if len(suggestions) == 0 {
		return nil
	}
	return fmt.Errorf("unknown command %q for %q; did you mean %q?", arg, cmd.CommandPath(), suggestions[0])
}
