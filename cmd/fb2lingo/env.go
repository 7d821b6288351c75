package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ximaera/fb2lingo/internal/auth"
	"github.com/ximaera/fb2lingo/internal/metadata"
)

type envOptions struct {
	service string
}

var (
	saveKey      = auth.SaveKey
	deleteKey    = auth.DeleteKey
	promptForKey = auth.PromptForAPIKey
)

func newEnvCmd() *cobra.Command {
	opts := envOptions{}
	cmd := &cobra.Command{
		Use:   "env",
		Short: "Manage API keys in OS Keychain",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnvStatus(cmd, &opts)
		},
	}

	cmd.SetUsageTemplate(envUsageTemplate)
	cmd.PersistentFlags().StringVar(&opts.service, "service", "openai", "Service to manage (openai or gemini)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "setup",
			Short: "Save API key to keychain (prompt only)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runEnvSetup(cmd, &opts)
			},
		},
		&cobra.Command{
			Use:   "delete",
			Short: "Delete key from keychain",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runEnvDelete(cmd, &opts)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show key status (default if no action given)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runEnvStatus(cmd, &opts)
			},
		},
	)
	for _, sub := range cmd.Commands() {
		sub.SetUsageTemplate(subcommandUsageTemplate)
	}
	return cmd
}

func runEnvSetup(cmd *cobra.Command, opts *envOptions) error {
	p, err := metadata.ParseProvider(opts.service)
	if err != nil {
		return err
	}
	key, err := promptForKey(fmt.Sprintf("%s API Key: ", p))
	if err != nil {
		return fmt.Errorf("error reading key: %w", err)
	}
	if key == "" {
		return fmt.Errorf("API key is required for setup")
	}
	if err := saveKey(p, key); err != nil {
		return fmt.Errorf("error saving key: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s API key to keychain.\n", p)
	return nil
}

func runEnvDelete(cmd *cobra.Command, opts *envOptions) error {
	p, err := metadata.ParseProvider(opts.service)
	if err != nil {
		return err
	}
	if err := deleteKey(p); err != nil {
		return fmt.Errorf("error deleting key: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s API key from keychain.\n", p)
	return nil
}

func runEnvStatus(cmd *cobra.Command, opts *envOptions) error {
	p, err := metadata.ParseProvider(opts.service)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if hasKey(p) {
		fmt.Fprintf(out, "%s API Key: Found (source=Keychain)\n", p)
		return nil
	}
	if _, ok := getEnvKey(p); ok {
		fmt.Fprintf(out, "%s API Key: Found (source=%s; disabled by default, use --allow-env)\n", p, auth.EnvVar(p))
		return nil
	}
	fmt.Fprintf(out, "%s API Key: Not Found (keychain empty, %s not set)\n", p, auth.EnvVar(p))
	return nil
}
