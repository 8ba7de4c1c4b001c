package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

// table writes aligned columns with a bold header when w is a terminal.
type table struct {
	tw *tabwriter.Writer
}

func newTable(w io.Writer, headers ...string) *table {
	header := lipgloss.NewRenderer(w).NewStyle().Bold(true)
	t := &table{tw: tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)}
	styled := make([]string, len(headers))
	for i, h := range headers {
		styled[i] = header.Render(h)
	}
	fmt.Fprintln(t.tw, strings.Join(styled, "\t"))
	return t
}

func (t *table) row(cells ...any) {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(t.tw, strings.Join(parts, "\t"))
}

func (t *table) flush() error {
	return t.tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newSheetsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sheets <file.xmind>",
		Short: "List sheets with their root topic and background color",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := abs(args[0])
			if err != nil {
				return err
			}
			sheets, err := a.store.ListSheets(path)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), sheets)
			}
			t := newTable(cmd.OutOrStdout(), "INDEX", "ID", "TITLE", "ROOT TOPIC", "TOPICS", "BACKGROUND")
			for _, s := range sheets {
				t.row(s.Index, orDash(s.ID), s.Title, s.RootTopic, s.Topics, orDash(s.Background))
			}
			return t.flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newTopicsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "topics <file.xmind>",
		Short: "List every topic with the path that addresses it",
		Long: `List every topic, depth first, with a path expression that can be
passed to insert --parent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := abs(args[0])
			if err != nil {
				return err
			}
			topics, err := a.store.ListTopics(path)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), topics)
			}
			t := newTable(cmd.OutOrStdout(), "PATH", "ID", "TITLE")
			for _, tp := range topics {
				t.row(tp.Path, orDash(tp.ID), strings.Repeat("  ", tp.Depth)+tp.Title)
			}
			return t.flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newEntriesCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "entries <file.xmind>",
		Short: "List the archive members with sizes and BLAKE3 digests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := abs(args[0])
			if err != nil {
				return err
			}
			entries, err := a.store.Entries(path)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			t := newTable(cmd.OutOrStdout(), "NAME", "SIZE", "COMPRESSED", "BLAKE3")
			for _, e := range entries {
				t.row(e.Name, e.UncompressedSize, e.CompressedSize, shortDigest(e.Digest))
			}
			return t.flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func shortDigest(d string) string {
	if len(d) > 16 {
		return d[:16]
	}
	return d
}
