package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/xmindctl/internal/mindmap"
)

func newCreateCmd(a *app) *cobra.Command {
	var opts mindmap.CreateOptions
	cmd := &cobra.Command{
		Use:   "create <output.xmind>",
		Short: "Create a new mind map",
		Long: `Create a new mind map at output.

Without --template (or a template in the config file) the map is a single
sheet with one root topic. A template without title flags is copied as is.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := args[0]
			if !cmd.Flags().Changed("template") {
				opts.Template = a.cfg.Template
			}
			if err := absAll(&output, &opts.Template); err != nil {
				return err
			}
			if err := a.store.Create(output, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Template, "template", "", "Archive to start from instead of the built-in blank map")
	cmd.Flags().StringVar(&opts.SheetTitle, "sheet-title", "", "Title of the first sheet")
	cmd.Flags().StringVar(&opts.RootTitle, "root-topic", "", "Title of the first sheet's root topic")
	return cmd
}
