package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ordtree/pkg/config"
	"github.com/Sumatoshi-tech/ordtree/pkg/render"
)

const (
	renderCmdUse      = "render [keys...]"
	renderCmdShort    = "Render the tree as an interactive HTML page"
	renderOutputFlag  = "output"
	renderOutputShort = "o"
	renderOutputUsage = "output HTML file"
	renderTitleFlag   = "title"
	renderDirPerm     = 0o750
	renderFilePerm    = 0o600
)

// ErrNoOutputFile is returned when the --output flag is not set.
var ErrNoOutputFile = errors.New("output file is required (use --output)")

// NewRenderCommand creates the render subcommand.
func NewRenderCommand(rt *Runtime) *cobra.Command {
	var file, output, title string

	cmd := &cobra.Command{
		Use:   renderCmdUse,
		Short: renderCmdShort,
		RunE: rt.wrap(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if output == "" {
				return ErrNoOutputFile
			}

			raw, err := readKeys(cmd, args, file)
			if err != nil {
				return err
			}

			if rt.Config.Tree.KeyType == config.KeyTypeString {
				return runRender(ctx, rt, stringKeys, raw, output, title)
			}

			return runRender(ctx, rt, intKeys, raw, output, title)
		}),
	}

	cmd.Flags().StringVarP(&file, flagFile, flagFileShort, "", flagFileUsage)
	cmd.Flags().StringVarP(&output, renderOutputFlag, renderOutputShort, "", renderOutputUsage)
	cmd.Flags().StringVar(&title, renderTitleFlag, "ordtree", "page title")

	return cmd
}

func runRender[K any](ctx context.Context, rt *Runtime, ks keySpec[K], raw []string, output, title string) error {
	tree, err := buildTree(ks, raw, rt.Config.Tree.Unique)
	if err != nil {
		return err
	}

	recordTree(ctx, rt, defaultTreeName, tree)

	err = os.MkdirAll(filepath.Dir(output), renderDirPerm)
	if err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	handle, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, renderFilePerm)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	err = render.WriteHTML(handle, tree, ks.format, title)

	closeErr := handle.Close()
	if err != nil {
		return err
	}

	if closeErr != nil {
		return fmt.Errorf("close output file: %w", closeErr)
	}

	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("stat output file: %w", err)
	}

	rt.Logger.InfoContext(ctx, "tree rendered", "path", output, "size", render.Bytes(info.Size()), "keys", tree.Len())

	return nil
}
