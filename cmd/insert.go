package cmd

import (
	"fmt"

	"github.com/go-git/go-billy/v5/util"
	"github.com/spf13/cobra"

	"github.com/agentic-research/xmindctl/internal/document"
	"github.com/agentic-research/xmindctl/internal/edit"
	"github.com/agentic-research/xmindctl/internal/errs"
)

func newInsertCmd(a *app) *cobra.Command {
	var (
		parent string
		title  string
		id     string
		titles []string
		from   string
		output string
		strict bool
	)
	cmd := &cobra.Command{
		Use:   "insert <file.xmind> --parent EXPR (--title T | --titles A,B | --from batch.jsonc)",
		Short: "Append topics under the topic addressed by --parent",
		Long: `Append one or more topics to the attached children of a topic.

--parent is a path expression such as sheet[0].rootTopic or
$[0].rootTopic.children.attached[?(@.title == "Goals")]. Run "xmindctl topics"
to list the paths of existing topics.

--from reads a JSON array (comments and trailing commas allowed) of titles
or topic objects. A batch is written completely or not at all.`,
		Example: `  xmindctl insert plan.xmind --parent sheet[0].rootTopic --title "Hiring"
  xmindctl insert plan.xmind --parent 'sheet[0].rootTopic.children.attached[title == "Hiring"]' --titles Recruiter,Budget
  xmindctl insert plan.xmind --parent sheet[1].rootTopic --from topics.jsonc -o out.xmind`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if err := absAll(&path, &output, &from); err != nil {
				return err
			}
			if cmd.Flags().Changed("strict") {
				a.store.Resolver.Strict = strict
			}

			sources := 0
			for _, set := range []bool{title != "", len(titles) > 0, from != ""} {
				if set {
					sources++
				}
			}
			if sources != 1 {
				return errs.New(errs.KindInvalidInput, "insert", "", "give exactly one of --title, --titles or --from")
			}
			if id != "" && title == "" {
				return errs.New(errs.KindInvalidInput, "insert", "", "--id needs --title")
			}

			if title != "" {
				t, err := a.store.InsertTopic(path, output, parent, title, id)
				if err != nil {
					return err
				}
				return printCreated(cmd, t)
			}

			inputs := edit.Titles(titles...)
			if from != "" {
				data, err := util.ReadFile(a.fs, from)
				if err != nil {
					return errs.Wrap(errs.KindNotFound, "read", from, err)
				}
				if inputs, err = edit.ParseBatch(data); err != nil {
					return err
				}
			}
			created, err := a.store.InsertTopics(path, output, parent, inputs)
			if err != nil {
				return err
			}
			return printCreated(cmd, created...)
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "Path expression of the parent topic")
	cmd.Flags().StringVar(&title, "title", "", "Title of a single new topic")
	cmd.Flags().StringVar(&id, "id", "", "Explicit id for --title (generated when omitted)")
	cmd.Flags().StringSliceVar(&titles, "titles", nil, "Titles of several new topics, in order")
	cmd.Flags().StringVar(&from, "from", "", "Batch file of titles or topic objects")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this path instead of overwriting the input")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail when --parent matches more than one topic")
	_ = cmd.MarkFlagRequired("parent")
	return cmd
}

func printCreated(cmd *cobra.Command, topics ...*document.Topic) error {
	t := newTable(cmd.OutOrStdout(), "ID", "TITLE")
	for _, tp := range topics {
		t.row(tp.ID, tp.Title)
	}
	return t.flush()
}

func newBackgroundCmd(a *app) *cobra.Command {
	var (
		color  string
		sheet  int
		all    bool
		output string
	)
	cmd := &cobra.Command{
		Use:   "background <file.xmind>",
		Short: "Set the background color of a sheet",
		Example: `  xmindctl background plan.xmind --color '#1E1E1EFF'
  xmindctl background plan.xmind --all -o dark.xmind`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if err := absAll(&path, &output); err != nil {
				return err
			}
			if !cmd.Flags().Changed("color") {
				color = a.cfg.Background.Color
			}
			if all && cmd.Flags().Changed("sheet") {
				return errs.New(errs.KindInvalidInput, "background", "", "--sheet and --all are exclusive")
			}

			if all {
				n, err := a.store.SetAllBackgrounds(path, output, color)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "set background %s on %d sheets\n", color, n)
				return nil
			}
			if err := a.store.SetBackground(path, output, sheet, color); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "set background %s on sheet %d\n", color, sheet)
			return nil
		},
	}
	cmd.Flags().StringVar(&color, "color", "", "Fill color as #RRGGBBAA (default from config, #000000FF)")
	cmd.Flags().IntVar(&sheet, "sheet", 0, "Sheet index")
	cmd.Flags().BoolVar(&all, "all", false, "Apply to every sheet")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to this path instead of overwriting the input")
	return cmd
}
