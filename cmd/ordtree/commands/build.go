package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ordtree/pkg/config"
	"github.com/Sumatoshi-tech/ordtree/pkg/observability"
	"github.com/Sumatoshi-tech/ordtree/pkg/rbtree"
	"github.com/Sumatoshi-tech/ordtree/pkg/render"
)

const (
	buildCmdUse   = "build [keys...]"
	buildCmdShort = "Insert keys into a tree and print a traversal or a report"

	flagOrder  = "order"
	flagFormat = "format"
	flagName   = "name"

	orderIn      = "in"
	orderReverse = "reverse"
	orderPost    = "post"

	defaultTreeName = "default"
)

// ErrUnknownOrder is returned for --order values other than in, reverse and post.
var ErrUnknownOrder = errors.New("unknown traversal order")

type buildOptions struct {
	file   string
	order  string
	format string
	name   string
}

// NewBuildCommand creates the build subcommand.
func NewBuildCommand(rt *Runtime) *cobra.Command {
	opts := &buildOptions{}

	cmd := &cobra.Command{
		Use:   buildCmdUse,
		Short: buildCmdShort,
		Long: `Insert keys into a tree and print them.

Without --format the keys are printed on one line in the order chosen by
--order: in (ascending), reverse (descending) or post (post-order, children
before parents). With --format text, json or yaml a report of the tree shape
and the keys in ascending order is printed instead.`,
		RunE: rt.wrap(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			raw, err := readKeys(cmd, args, opts.file)
			if err != nil {
				return err
			}

			if rt.Config.Tree.KeyType == config.KeyTypeString {
				return runBuild(ctx, rt, cmd.OutOrStdout(), stringKeys, raw, opts)
			}

			return runBuild(ctx, rt, cmd.OutOrStdout(), intKeys, raw, opts)
		}),
	}

	cmd.Flags().StringVarP(&opts.file, flagFile, flagFileShort, "", flagFileUsage)
	cmd.Flags().StringVar(&opts.order, flagOrder, orderIn, "traversal order: in, reverse, post")
	cmd.Flags().StringVar(&opts.format, flagFormat, "", "print a report instead: text, json, yaml")
	cmd.Flags().StringVar(&opts.name, flagName, defaultTreeName, "tree name used in reports and metrics")

	return cmd
}

func runBuild[K any](ctx context.Context, rt *Runtime, out io.Writer, ks keySpec[K], raw []string,
	opts *buildOptions,
) error {
	tree, err := buildTree(ks, raw, rt.Config.Tree.Unique)
	if err != nil {
		return err
	}

	recordTree(ctx, rt, opts.name, tree)
	rt.Logger.InfoContext(ctx, "tree built", "name", opts.name, "keys", tree.Len(), "read", len(raw),
		"height", tree.Height())

	if opts.format != "" {
		return render.WriteReport(out, render.NewReport(opts.name, tree, ks.name, ks.format, true), opts.format)
	}

	seq, err := traversal(tree, opts.order)
	if err != nil {
		return err
	}

	return writeKeys(out, seq, ks.format)
}

func traversal[K any](tree *rbtree.Tree[K], order string) (iter.Seq[K], error) {
	switch strings.ToLower(order) {
	case orderIn, "":
		return tree.All(), nil
	case orderReverse:
		return tree.Backward(), nil
	case orderPost:
		return tree.PostOrder(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOrder, order)
	}
}

// writeKeys prints seq space separated on a single line.
func writeKeys[K any](out io.Writer, seq iter.Seq[K], format func(K) string) error {
	var sb strings.Builder

	for key := range seq {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}

		sb.WriteString(format(key))
	}

	sb.WriteByte('\n')

	_, err := io.WriteString(out, sb.String())
	if err != nil {
		return fmt.Errorf("write keys: %w", err)
	}

	return nil
}

// recordTree publishes the tree counters and shape.
func recordTree[K any](ctx context.Context, rt *Runtime, name string, tree *rbtree.Tree[K]) {
	stats := tree.Stats()

	rt.Metrics.RecordTree(ctx, observability.TreeSample{
		Name:        name,
		Len:         tree.Len(),
		Height:      tree.Height(),
		HeightBound: rbtree.HeightBound(tree.Len()),
		Inserts:     stats.Inserts,
		Deletes:     stats.Deletes,
		Rotations:   stats.Rotations,
		Recolors:    stats.Recolors,
		FixupSteps:  stats.FixupSteps,
	})
}
