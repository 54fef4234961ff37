package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/starmark/pkg/credential"
)

// tokenCommand creates the token command with subcommands.
func (c *CLI) tokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the GitHub API token",
		Long: `Store an optional GitHub API token. Authenticated requests get a much higher
rate limit. The token is kept in the store under "githubApiKey"; github.token in
the config file or STARMARK_GITHUB_TOKEN take precedence over it.`,
	}

	cmd.AddCommand(c.tokenSetCommand())
	cmd.AddCommand(c.tokenShowCommand())
	cmd.AddCommand(c.tokenClearCommand())

	return cmd
}

// tokenSetCommand creates the "token set" subcommand.
func (c *CLI) tokenSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set [token]",
		Short: "Save a token (read from stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var token string
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read token: %w", err)
				}
				token = line
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return fmt.Errorf("empty token; use 'starmark token clear' to remove it")
			}

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.creds.Set(ctx, token); err != nil {
				return err
			}
			printSuccess("Token saved")
			printDetail("%s", credential.Mask(token))
			return nil
		},
	}
}

// tokenShowCommand creates the "token show" subcommand.
func (c *CLI) tokenShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the masked token in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.GitHub.Token != "" {
				printKeyValue("Token", credential.Mask(a.cfg.GitHub.Token))
				printKeyValue("Source", "config or environment")
				return nil
			}
			stored, ok, err := a.creds.Stored(ctx)
			if err != nil {
				return err
			}
			if !ok || strings.TrimSpace(stored) == "" {
				printInfo("No token set; requests are unauthenticated")
				printNextStep("Save one", "starmark token set")
				return nil
			}
			printKeyValue("Token", credential.Mask(strings.TrimSpace(stored)))
			printKeyValue("Source", "store ("+credential.Key+")")
			return nil
		},
	}
}

// tokenClearCommand creates the "token clear" subcommand.
func (c *CLI) tokenClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.creds.Clear(ctx); err != nil {
				return err
			}
			printSuccess("Token removed")
			if a.cfg.GitHub.Token != "" {
				printWarning("github.token from config or environment is still in effect")
			}
			return nil
		},
	}
}
