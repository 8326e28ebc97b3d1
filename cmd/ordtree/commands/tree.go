package commands

import (
	"context"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ordtree/pkg/config"
	"github.com/Sumatoshi-tech/ordtree/pkg/render"
)

const flagNoColor = "no-color"

// NewTreeCommand creates the tree subcommand, which draws the tree as text.
func NewTreeCommand(rt *Runtime) *cobra.Command {
	var (
		file    string
		noColor bool
	)

	cmd := &cobra.Command{
		Use:   "tree [keys...]",
		Short: "Draw the tree with red nodes in red",
		RunE: rt.wrap(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			raw, err := readKeys(cmd, args, file)
			if err != nil {
				return err
			}

			// color.NoColor is set when stdout is not a terminal.
			colorize := !noColor && !color.NoColor

			if rt.Config.Tree.KeyType == config.KeyTypeString {
				return runTree(ctx, rt, cmd.OutOrStdout(), stringKeys, raw, colorize)
			}

			return runTree(ctx, rt, cmd.OutOrStdout(), intKeys, raw, colorize)
		}),
	}

	cmd.Flags().StringVarP(&file, flagFile, flagFileShort, "", flagFileUsage)
	cmd.Flags().BoolVar(&noColor, flagNoColor, false, "disable colored output")

	return cmd
}

func runTree[K any](ctx context.Context, rt *Runtime, out io.Writer, ks keySpec[K], raw []string, colorize bool) error {
	tree, err := buildTree(ks, raw, rt.Config.Tree.Unique)
	if err != nil {
		return err
	}

	recordTree(ctx, rt, defaultTreeName, tree)

	return render.WriteASCII(out, tree, ks.format, colorize)
}
