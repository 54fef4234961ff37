package cli

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// browseCommand creates the browse command.
func (c *CLI) browseCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "browse [file|url|-]",
		Short: "Review annotated results in the terminal",
		Long: `Annotate a search results page and list the results with their star counts.
Space or enter cycles the review status of the selected result, exactly as the
in-page control does; every change is saved immediately.

With -o the page, including the updated controls, is written on exit.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var arg string
			if len(args) > 0 {
				arg = args[0]
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
			sess, err := a.runner().Open(ctx, src)
			src.Close()
			if err != nil {
				return err
			}
			sess.Start(ctx)
			defer sess.Close()

			spinner := newSpinnerWithContext(ctx, "Annotating results...")
			spinner.Start()
			sess.Settle(ctx)
			spinner.Stop()

			opts := []tea.ProgramOption{tea.WithContext(ctx)}
			if arg == "" || arg == "-" {
				// stdin held the page; read keys from the terminal.
				opts = append(opts, tea.WithInputTTY())
			}
			final, err := tea.NewProgram(NewResultsModel(ctx, sess), opts...).Run()
			if err != nil {
				return fmt.Errorf("browse: %w", err)
			}
			if m, ok := final.(ResultsModel); ok && m.Changed > 0 {
				printSuccess("Updated %d statuses", m.Changed)
			}

			if output == "" {
				return nil
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			if err := sess.Render(ctx, f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			printFile(output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the annotated page on exit")

	return cmd
}
