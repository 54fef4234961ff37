package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matzehuels/starmark/pkg/errors"
	"github.com/matzehuels/starmark/pkg/starcache"
)

// starsCommand creates the stars command.
func (c *CLI) starsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stars <owner/name>",
		Short: "Print the star count of a repository",
		Long: `Look up a repository's star count through the cache, fetching it from the
GitHub API on a miss. The count and an unset review status are stored for later
runs.`,
		Example: "  starmark stars octocat/Hello-World",
		Args:    cobra.ExactArgs(1),
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

			spinner := newSpinnerWithContext(ctx, "Fetching "+id.String()+"...")
			spinner.Start()
			stars, ok := a.cache.StarCount(ctx, id)
			if !ok {
				spinner.StopWithError("No star count for " + id.String())
				for _, ev := range a.notices.Events() {
					printWarning("%s", ev.Message)
				}
				return errors.New(errors.ErrCodeNotFound, "star count for %s unavailable", id)
			}
			spinner.Stop()

			printKeyValue("Repository", id.String())
			printKeyValue("Stars", StyleNumber.Render(strconv.Itoa(stars)))
			printKeyValue("Status", renderStatus(a.cache.Status(ctx, id)))
			return nil
		},
	}
}
