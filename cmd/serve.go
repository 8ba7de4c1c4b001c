package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/xmindctl/internal/errs"
	"github.com/agentic-research/xmindctl/internal/export"
	"github.com/agentic-research/xmindctl/internal/mcpserver"
)

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <file.xmind> <output.db>",
		Short: "Write every sheet and topic to a SQLite database",
		Long: `Write every sheet and topic to a SQLite database.

Tables: sheets, topics (one row per topic, parent_seq links to the parent
row, record holds the topic JSON), topic_labels and meta. An existing
database is overwritten.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, dbPath := args[0], args[1]
			if err := absAll(&path, &dbPath); err != nil {
				return err
			}
			doc, err := a.store.Read(path)
			if err != nil {
				return err
			}

			start := time.Now()
			n, err := export.Export(doc, path, dbPath)
			if err != nil {
				return errs.Wrap(errs.KindWriteFailure, "export", dbPath, err)
			}
			a.logger.Info("exported", "db", dbPath, "topics", n, "elapsed", time.Since(start))
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d topics from %d sheets to %s\n", n, len(doc.Sheets), args[1])
			return nil
		},
	}
}

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the mind-map tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := mcpserver.New(a.store, Version)
			s.Background = a.cfg.Background.Color
			s.Abs = abs
			return s.ServeStdio()
		},
	}
}
