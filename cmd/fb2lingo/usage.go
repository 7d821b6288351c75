package main

import "strings"

// Sections shared by every usage template. Each one renders only when the
// command has something to show for it.
const (
	examplesSection = `{{if .HasExample}}

Examples:
{{.Example}}{{end}}`

	commandsSection = `{{if .HasAvailableSubCommands}}

Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}{{end}}`

	flagsSection = `{{if .HasAvailableLocalFlags}}

Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}`

	globalFlagsSection = `{{if .HasAvailableInheritedFlags}}

Global Flags:
{{.InheritedFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}`

	moreHelpSection = `{{if .HasAvailableSubCommands}}

Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`
)

var (
	subcommandUsageTemplate = usageTemplate()
	rootUsageTemplate       = usageTemplate("fb2lingo <input.fb2> [output.fb2] [flags]", "{{.CommandPath}} [command]")
	envUsageTemplate        = usageTemplate("{{.UseLine}}", "{{.CommandPath}} [command]")
)

// usageTemplate builds a cobra usage template whose synopsis is lines, or
// the command's own use line when none are given.
func usageTemplate(lines ...string) string {
	if len(lines) == 0 {
		lines = []string{"{{.UseLine}}"}
	}
	return "Usage:\n  " + strings.Join(lines, "\n  ") +
		examplesSection + commandsSection + flagsSection + globalFlagsSection + moreHelpSection
}
