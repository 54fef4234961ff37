package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/starmark/pkg/errors"
	"github.com/matzehuels/starmark/pkg/starcache"
)

// Inspect output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the star count cache",
	}

	cmd.AddCommand(c.cacheInspectCommand())
	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheInspectCommand creates the "cache inspect" subcommand.
func (c *CLI) cacheInspectCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Dump the cached star counts and statuses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.cache.Inspect(ctx)
			if err != nil {
				return err
			}
			return writeSnapshot(os.Stdout, snap, format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, json or yaml")

	return cmd
}

// writeSnapshot renders snap in the given format.
func writeSnapshot(w io.Writer, snap starcache.Snapshot, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(snap); err != nil {
			return err
		}
		return enc.Close()
	case formatTable:
		_, err := fmt.Fprintln(w, renderSnapshotTable(snap))
		return err
	}
	return errors.New(errors.ErrCodeInvalidInput, "unknown format %q (want table, json or yaml)", format)
}

func renderSnapshotTable(snap starcache.Snapshot) string {
	repos := snap.Repos()
	if len(repos) == 0 {
		return StyleDim.Render("Cache is empty")
	}

	rows := make([][]string, 0, len(repos))
	for _, repo := range repos {
		local := "—"
		if n, ok := snap.Local[repo]; ok {
			local = strconv.Itoa(n)
		}
		stars, status, updated := "—", "—", "—"
		if e, ok := snap.Persistent[repo]; ok {
			stars = strconv.Itoa(e.Stars)
			status = renderStatus(e.Status)
			updated = time.UnixMilli(e.Timestamp).Format(time.DateTime)
		}
		rows = append(rows, []string{repo, stars, status, local, updated})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Repository", "Stars", "Status", "Local", "Updated").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			switch col {
			case 1, 3:
				return lipgloss.NewStyle().Foreground(colorCyan).Align(lipgloss.Right)
			case 4:
				return lipgloss.NewStyle().Foreground(colorDim)
			}
			return lipgloss.NewStyle()
		})
	return t.Render()
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached star counts and statuses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			// A corrupt aggregate is still cleared.
			count := 0
			if snap, err := a.cache.Inspect(ctx); err == nil {
				count = len(snap.Persistent)
			}
			if err := a.cache.ClearAll(ctx); err != nil {
				return err
			}
			if count == 0 {
				printInfo("Cache is empty")
				return nil
			}
			printSuccess("Cleared %d cached entries", count)
			if loc, err := storeLocation(a.cfg); err == nil {
				printDetail("Store: %s", loc)
			}
			return nil
		},
	}
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print where the store keeps its data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			loc, err := storeLocation(cfg)
			if err != nil {
				return fmt.Errorf("get store path: %w", err)
			}
			fmt.Println(loc)
			return nil
		},
	}
}
