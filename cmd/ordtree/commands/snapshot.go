package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ordtree/pkg/config"
	"github.com/Sumatoshi-tech/ordtree/pkg/forest"
	"github.com/Sumatoshi-tech/ordtree/pkg/persist"
	"github.com/Sumatoshi-tech/ordtree/pkg/render"
)

const (
	flagDir = "dir"

	snapshotOpSave = "save"
	snapshotOpLoad = "load"
)

// ErrNoSnapshot is returned when a snapshot is read from a directory without one.
var ErrNoSnapshot = errors.New("no snapshot found")

type snapshotOptions struct {
	dir    string
	file   string
	order  string
	format string
}

// NewSnapshotCommand creates the snapshot command group.
func NewSnapshotCommand(rt *Runtime) *cobra.Command {
	opts := &snapshotOptions{}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Persist and restore a forest of named trees",
		Long: `Persist and restore a forest of named trees.

A snapshot directory holds one compressed arena file per shard and a manifest
describing every tree. Trees are addressed by name; save adds keys to a tree,
creating the snapshot or the tree when missing.`,
	}

	cmd.PersistentFlags().StringVar(&opts.dir, flagDir, "", "snapshot directory (default: storage.snapshot_dir)")

	save := &cobra.Command{
		Use:   "save <tree> [keys...]",
		Short: "Add keys to a named tree and save the snapshot",
		Args:  cobra.MinimumNArgs(1),
		RunE: rt.wrap(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			raw, err := readKeys(cmd, args[1:], opts.file)
			if err != nil {
				return err
			}

			if rt.Config.Tree.KeyType == config.KeyTypeString {
				return runSnapshotSave(ctx, rt, cmd.OutOrStdout(), stringKeys, args[0], raw, opts)
			}

			return runSnapshotSave(ctx, rt, cmd.OutOrStdout(), intKeys, args[0], raw, opts)
		}),
	}
	save.Flags().StringVarP(&opts.file, flagFile, flagFileShort, "", flagFileUsage)

	load := &cobra.Command{
		Use:   "load [tree]",
		Short: "Load the snapshot and list its trees or print one of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: rt.wrap(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if rt.Config.Tree.KeyType == config.KeyTypeString {
				return runSnapshotLoad(ctx, rt, cmd.OutOrStdout(), stringKeys, args, opts)
			}

			return runSnapshotLoad(ctx, rt, cmd.OutOrStdout(), intKeys, args, opts)
		}),
	}
	load.Flags().StringVar(&opts.order, flagOrder, orderIn, "traversal order: in, reverse, post")
	load.Flags().StringVar(&opts.format, flagFormat, "", "print a report instead: text, json, yaml")

	drop := &cobra.Command{
		Use:   "drop <tree>",
		Short: "Remove a named tree from the snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: rt.wrap(func(ctx context.Context, cmd *cobra.Command, args []string) error {
			if rt.Config.Tree.KeyType == config.KeyTypeString {
				return runSnapshotDrop(ctx, rt, cmd.OutOrStdout(), stringKeys, args[0], opts)
			}

			return runSnapshotDrop(ctx, rt, cmd.OutOrStdout(), intKeys, args[0], opts)
		}),
	}

	cmd.AddCommand(save, load, drop)

	return cmd
}

func (opts *snapshotOptions) snapshotDir(cfg *config.Config) string {
	if opts.dir != "" {
		return opts.dir
	}

	return cfg.Storage.SnapshotDir
}

func forestOptions(cfg *config.Config) forest.Options {
	return forest.Options{
		Shards:               cfg.Storage.Shards,
		HibernationThreshold: cfg.Storage.HibernationThreshold,
		KeyType:              cfg.Tree.KeyType,
	}
}

// openForest loads the snapshot in dir. With create a missing snapshot
// yields an empty forest instead of ErrNoSnapshot.
func openForest[K any](ctx context.Context, rt *Runtime, ks keySpec[K], dir string, create bool,
) (*forest.Forest[K], persist.Codec, error) {
	codec, err := persist.CodecByName(rt.Config.Storage.ManifestFormat)
	if err != nil {
		return nil, nil, err
	}

	if !forest.Exists(dir, codec) {
		if !create {
			return nil, nil, fmt.Errorf("%w in %s", ErrNoSnapshot, dir)
		}

		return forest.New(forestOptions(rt.Config), ks.codec, ks.compare), codec, nil
	}

	started := time.Now()

	trees, err := forest.Load(dir, forestOptions(rt.Config), ks.codec, ks.compare, codec)
	if err != nil {
		return nil, nil, err
	}

	size, err := forest.DiskUsage(dir)
	if err != nil {
		return nil, nil, err
	}

	rt.Metrics.RecordSnapshot(ctx, snapshotOpLoad, size, time.Since(started))
	rt.Logger.DebugContext(ctx, "snapshot loaded", "dir", dir, "trees", len(trees.Names()), "size", render.Bytes(size))

	return trees, codec, nil
}

func saveForest[K any](ctx context.Context, rt *Runtime, trees *forest.Forest[K], dir string,
	codec persist.Codec,
) (int64, error) {
	started := time.Now()

	err := trees.Save(dir, codec)
	if err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}

	size, err := forest.DiskUsage(dir)
	if err != nil {
		return 0, err
	}

	rt.Metrics.RecordSnapshot(ctx, snapshotOpSave, size, time.Since(started))

	return size, nil
}

func runSnapshotSave[K any](ctx context.Context, rt *Runtime, out io.Writer, ks keySpec[K], name string,
	raw []string, opts *snapshotOptions,
) error {
	keys, err := parseKeys(ks, raw)
	if err != nil {
		return err
	}

	dir := opts.snapshotDir(rt.Config)

	trees, codec, err := openForest(ctx, rt, ks, dir, true)
	if err != nil {
		return err
	}

	tree := trees.Tree(name)
	inserted := insertAll(tree, keys, rt.Config.Tree.Unique)

	recordTree(ctx, rt, name, tree)

	size, err := saveForest(ctx, rt, trees, dir, codec)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "saved %d keys into %q (%d keys, %d trees) in %s (%s)\n",
		inserted, name, tree.Len(), len(trees.Names()), dir, render.Bytes(size))
	if err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	return nil
}

func runSnapshotLoad[K any](ctx context.Context, rt *Runtime, out io.Writer, ks keySpec[K], args []string,
	opts *snapshotOptions,
) error {
	trees, _, err := openForest(ctx, rt, ks, opts.snapshotDir(rt.Config), false)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		reports := make([]render.Report, 0, len(trees.Names()))
		for _, name := range trees.Names() {
			tree, _ := trees.Lookup(name)
			reports = append(reports, render.NewReport(name, tree, ks.name, ks.format, false))
		}

		_, err = io.WriteString(out, render.TreesTable(reports)+"\n")
		if err != nil {
			return fmt.Errorf("write trees: %w", err)
		}

		return nil
	}

	tree, ok := trees.Lookup(args[0])
	if !ok {
		return fmt.Errorf("%w: %q", forest.ErrUnknownTree, args[0])
	}

	if opts.format != "" {
		return render.WriteReport(out, render.NewReport(args[0], tree, ks.name, ks.format, true), opts.format)
	}

	seq, err := traversal(tree, opts.order)
	if err != nil {
		return err
	}

	return writeKeys(out, seq, ks.format)
}

func runSnapshotDrop[K any](ctx context.Context, rt *Runtime, out io.Writer, ks keySpec[K], name string,
	opts *snapshotOptions,
) error {
	dir := opts.snapshotDir(rt.Config)

	trees, codec, err := openForest(ctx, rt, ks, dir, false)
	if err != nil {
		return err
	}

	err = trees.Drop(name)
	if err != nil {
		return err
	}

	_, err = saveForest(ctx, rt, trees, dir, codec)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(out, "dropped %q, %d trees left\n", name, len(trees.Names()))
	if err != nil {
		return fmt.Errorf("write result: %w", err)
	}

	return nil
}
