package cli

import (
	stderrors "errors"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/starmark/pkg/starcache"
)

// statusCommand creates the status command with subcommands.
func (c *CLI) statusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Read and change review statuses",
		Long: `Every annotated repository carries a review status: unset, confirmed or
rejected. The in-page control cycles through them in that order.`,
	}

	cmd.AddCommand(c.statusGetCommand())
	cmd.AddCommand(c.statusSetCommand())
	cmd.AddCommand(c.statusCycleCommand())

	return cmd
}

// statusGetCommand creates the "status get" subcommand.
func (c *CLI) statusGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <owner/name>",
		Short: "Show the stored entry of a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := starcache.ParseRepoID(args[0])
			if err != nil {
				return err
			}
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			entry, ok, err := a.cache.Entry(ctx, id)
			if err != nil {
				return err
			}
			if !ok {
				printInfo("No entry for %s", id)
				printNextStep("Fetch it first", "starmark stars "+id.String())
				return nil
			}
			printKeyValue("Repository", id.String())
			printKeyValue("Stars", StyleNumber.Render(strconv.Itoa(entry.Stars)))
			printKeyValue("Status", renderStatus(entry.Status))
			printKeyValue("Updated", time.UnixMilli(entry.Timestamp).Format(time.DateTime))
			return nil
		},
	}
}

// statusSetCommand creates the "status set" subcommand.
func (c *CLI) statusSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "set <owner/name> <unset|confirmed|rejected>",
		Short:     "Set the review status of a repository",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{"unset", "confirmed", "rejected"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := starcache.ParseRepoID(args[0])
			if err != nil {
				return err
			}
			status, err := starcache.ParseStatus(args[1])
			if err != nil {
				return err
			}
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.cache.SetStatus(ctx, id, status); err != nil {
				if stderrors.Is(err, starcache.ErrNoEntry) {
					printNextStep("Fetch it first", "starmark stars "+id.String())
				}
				return err
			}
			printSuccess("%s is now %s", id, renderStatus(status))
			return nil
		},
	}
}

// statusCycleCommand creates the "status cycle" subcommand.
func (c *CLI) statusCycleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cycle <owner/name>",
		Short: "Advance the review status, as clicking the control does",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := starcache.ParseRepoID(args[0])
			if err != nil {
				return err
			}
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := a.cache.Cycle(ctx, id)
			if err != nil {
				return err
			}
			printSuccess("%s is now %s", id, renderStatus(status))
			return nil
		},
	}
}
