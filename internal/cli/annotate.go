package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/starmark/pkg/pipeline"
)

// annotateCommand creates the annotate command.
func (c *CLI) annotateCommand() *cobra.Command {
	var (
		output      string
		navigations []string
	)

	cmd := &cobra.Command{
		Use:   "annotate [file|url|-]",
		Short: "Annotate a search results page with star counts",
		Long: `Load a search results page, add a star badge and review control to every
result and write the annotated HTML.

Each --navigate fragment replaces the contents of the results list, the way a
client-side page change does, and is annotated by the mutation watcher. Prefix a
value with @ to read the fragment from a file.`,
		Example: `  starmark annotate results.html -o annotated.html
  curl -s https://example.com/search | starmark annotate - > out.html
  starmark annotate page1.html --navigate @page2.html`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			var arg string
			if len(args) > 0 {
				arg = args[0]
			}
			navs, err := readFragments(navigations)
			if err != nil {
				return err
			}

			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			src, err := openSource(ctx, arg)
			if err != nil {
				return err
			}
			defer src.Close()

			prog := newProgress(logger)
			res, err := a.runner().Execute(ctx, pipeline.Options{Source: src, Navigations: navs})
			if err != nil {
				return err
			}
			prog.done("Annotated page", "entries", len(res.Entries), "scans", res.Stats.Scans)

			if output == "" || output == "-" {
				_, err := os.Stdout.Write(res.HTML)
				return err
			}
			if err := os.WriteFile(output, res.HTML, 0o644); err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			printSuccess("Annotated %d results", len(res.Entries))
			printFile(output)
			printScanStats(res.Stats)
			for _, ev := range a.notices.Events() {
				printWarning("%s", ev.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringArrayVar(&navigations, "navigate", nil, "HTML fragment (or @file) to navigate to after loading")

	return cmd
}
