package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/xmindctl/internal/errs"
	"github.com/agentic-research/xmindctl/internal/query"
)

func newShowCmd(a *app) *cobra.Command {
	var indent string
	cmd := &cobra.Command{
		Use:   "show <file.xmind>",
		Short: "Print content.json",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := abs(args[0])
			if err != nil {
				return err
			}
			doc, err := a.store.Read(path)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("indent") {
				indent = a.cfg.Output.Indent
			}
			data, err := doc.MarshalIndent(indent)
			if err != nil {
				return errs.Wrap(errs.KindInvalidFormat, "encode", path, err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		},
	}
	cmd.Flags().StringVar(&indent, "indent", "", "Indent string; empty prints compact JSON (default from config)")
	return cmd
}

func newQueryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query <file.xmind> <jsonpath>",
		Short: "Print the values a JSONPath selector picks out of content.json",
		Example: `  xmindctl query plan.xmind '$..title'
  xmindctl query plan.xmind '$[0].rootTopic.children.attached[?(@.title == "Q4")].id'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := abs(args[0])
			if err != nil {
				return err
			}
			doc, err := a.store.Read(path)
			if err != nil {
				return err
			}
			values, err := query.JSONPath(doc, args[1])
			if err != nil {
				return err
			}
			if values == nil {
				values = []any{}
			}
			return writeJSON(cmd.OutOrStdout(), values)
		},
	}
}

func newFindCmd(a *app) *cobra.Command {
	var (
		where  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "find <file.xmind> --where EXPR",
		Short: "List topics matching a boolean expression",
		Long: `List topics for which EXPR is true.

EXPR sees every key of the topic (title, id, labels, markers, ...) plus depth,
path, sheet, sheet_title, category, parent and child_count. Unknown names
are nil.`,
		Example: `  xmindctl find plan.xmind --where 'depth == 1'
  xmindctl find plan.xmind --where '"urgent" in labels && child_count == 0'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := abs(args[0])
			if err != nil {
				return err
			}
			doc, err := a.store.Read(path)
			if err != nil {
				return err
			}
			matches, err := query.Find(doc, where)
			if err != nil {
				return err
			}
			if asJSON {
				if matches == nil {
					matches = []query.Match{}
				}
				return writeJSON(cmd.OutOrStdout(), matches)
			}
			t := newTable(cmd.OutOrStdout(), "PATH", "ID", "TITLE")
			for _, m := range matches {
				t.row(m.Path, orDash(m.ID), m.Title)
			}
			return t.flush()
		},
	}
	cmd.Flags().StringVar(&where, "where", "", "Boolean expression over topic fields")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("where")
	return cmd
}
