package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ordtree/pkg/config"
	"github.com/Sumatoshi-tech/ordtree/pkg/render"
)

// ErrTreeInvalid is returned by verify when the built tree breaks a red-black property.
var ErrTreeInvalid = errors.New("tree is not a valid red-black tree")

// NewVerifyCommand creates the verify subcommand.
func NewVerifyCommand(rt *Runtime) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "verify [keys...]",
		Short: "Insert keys and check every red-black invariant",
		RunE: rt.wrap(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			raw, err := readKeys(cmd, args, file)
			if err != nil {
				return err
			}

			if rt.Config.Tree.KeyType == config.KeyTypeString {
				return runVerify(ctx, rt, cmd.OutOrStdout(), stringKeys, raw)
			}

			return runVerify(ctx, rt, cmd.OutOrStdout(), intKeys, raw)
		}),
	}

	cmd.Flags().StringVarP(&file, flagFile, flagFileShort, "", flagFileUsage)

	return cmd
}

func runVerify[K any](ctx context.Context, rt *Runtime, out io.Writer, ks keySpec[K], raw []string) error {
	tree, err := buildTree(ks, raw, rt.Config.Tree.Unique)
	if err != nil {
		return err
	}

	recordTree(ctx, rt, defaultTreeName, tree)

	report := render.NewReport(defaultTreeName, tree, ks.name, ks.format, false)
	if !report.Valid {
		rt.Logger.ErrorContext(ctx, "invariant violated", "violation", report.Violation)

		return fmt.Errorf("%w: %s", ErrTreeInvalid, report.Violation)
	}

	_, err = fmt.Fprintf(out, "ok: %d keys, height %d <= bound %d, black height %d\n",
		report.Len, report.Height, report.HeightBound, report.BlackHeight)
	if err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	return nil
}
