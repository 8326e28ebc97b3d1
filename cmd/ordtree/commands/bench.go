package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/ordtree/pkg/observability"
	"github.com/Sumatoshi-tech/ordtree/pkg/rbtree"
	"github.com/Sumatoshi-tech/ordtree/pkg/render"
)

const (
	benchCmdName = "bench"

	flagCount      = "count"
	flagPattern    = "pattern"
	flagSeed       = "seed"
	flagPrometheus = "prometheus"

	patternAscending  = "ascending"
	patternDescending = "descending"
	patternRandom     = "random"
	patternAll        = "all"

	defaultBenchCount = 100_000
)

// Sentinel bench errors.
var (
	ErrUnknownPattern = errors.New("unknown key pattern")
	ErrInvalidCount   = errors.New("count must be positive")
)

type benchOptions struct {
	pattern    string
	count      int
	seed       uint64
	prometheus bool
}

// NewBenchCommand creates the bench subcommand. It inserts generated int
// keys and shows that the height stays within the red-black bound even for
// sorted input, the worst case of an unbalanced search tree.
func NewBenchCommand(rt *Runtime) *cobra.Command {
	opts := &benchOptions{}

	cmd := &cobra.Command{
		Use:   benchCmdName,
		Short: "Insert generated keys and compare the height to the red-black bound",
		Args:  cobra.NoArgs,
		RunE: rt.wrap(func(ctx context.Context, cmd *cobra.Command, _ []string) error {
			return runBench(ctx, rt, cmd.OutOrStdout(), opts)
		}),
	}

	cmd.Flags().IntVar(&opts.count, flagCount, defaultBenchCount, "number of keys per pattern")
	cmd.Flags().StringVar(&opts.pattern, flagPattern, patternAll, "key pattern: ascending, descending, random, all")
	cmd.Flags().Uint64Var(&opts.seed, flagSeed, 1, "seed for the random pattern")
	cmd.Flags().BoolVar(&opts.prometheus, flagPrometheus, false, "print the tree metrics in Prometheus exposition format")

	return cmd
}

func runBench(ctx context.Context, rt *Runtime, out io.Writer, opts *benchOptions) error {
	if opts.count <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCount, opts.count)
	}

	patterns, err := benchPatterns(opts.pattern)
	if err != nil {
		return err
	}

	metrics := rt.Metrics

	var prom *observability.PrometheusProvider

	if opts.prometheus {
		prom, err = observability.NewPrometheusProvider()
		if err != nil {
			return err
		}

		defer prom.Shutdown(context.Background()) //nolint:errcheck // best effort after the exposition is written.

		metrics, err = observability.NewTreeMetrics(prom.Meter())
		if err != nil {
			return err
		}
	}

	rows := make([]render.BenchRow, 0, len(patterns))

	for _, pattern := range patterns {
		row, benchErr := benchPattern(ctx, rt, metrics, pattern, opts)
		if benchErr != nil {
			return benchErr
		}

		rows = append(rows, row)
	}

	_, err = io.WriteString(out, render.BenchTable(rows)+"\n")
	if err != nil {
		return fmt.Errorf("write bench table: %w", err)
	}

	if prom != nil {
		return prom.WriteExposition(out)
	}

	return nil
}

func benchPatterns(pattern string) ([]string, error) {
	switch strings.ToLower(pattern) {
	case patternAll, "":
		return []string{patternAscending, patternDescending, patternRandom}, nil
	case patternAscending, patternDescending, patternRandom:
		return []string{strings.ToLower(pattern)}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, pattern)
	}
}

func benchKeys(pattern string, count int, seed uint64) []int64 {
	keys := make([]int64, count)

	for idx := range keys {
		keys[idx] = int64(idx)
	}

	switch pattern {
	case patternDescending:
		for idx := range keys {
			keys[idx] = int64(count - 1 - idx)
		}
	case patternRandom:
		rng := rand.New(rand.NewPCG(seed, seed)) //nolint:gosec // reproducible key order, not security.
		rng.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
	}

	return keys
}

func benchPattern(ctx context.Context, rt *Runtime, metrics *observability.TreeMetrics, pattern string,
	opts *benchOptions,
) (render.BenchRow, error) {
	keys := benchKeys(pattern, opts.count, opts.seed)
	tree := rbtree.NewWithAllocator(rbtree.NewAllocator[int64](), intKeys.compare)

	started := time.Now()
	insertAll(tree, keys, rt.Config.Tree.Unique)
	elapsed := time.Since(started)

	err := tree.Verify()
	if err != nil {
		return render.BenchRow{}, fmt.Errorf("%w: %s: %w", ErrTreeInvalid, pattern, err)
	}

	height, bound := tree.Height(), rbtree.HeightBound(tree.Len())
	if height > bound {
		return render.BenchRow{}, fmt.Errorf("%w: %s: height %d exceeds bound %d", ErrTreeInvalid, pattern, height, bound)
	}

	stats := tree.Stats()
	metrics.RecordTree(ctx, observability.TreeSample{
		Name:        pattern,
		Len:         tree.Len(),
		Height:      height,
		HeightBound: bound,
		Inserts:     stats.Inserts,
		Rotations:   stats.Rotations,
		Recolors:    stats.Recolors,
		FixupSteps:  stats.FixupSteps,
	})

	rt.Logger.InfoContext(ctx, "bench pattern done", "pattern", pattern, "keys", tree.Len(),
		"height", height, "bound", bound, "elapsed", elapsed)

	return render.BenchRow{
		Pattern:     pattern,
		Count:       tree.Len(),
		Height:      height,
		HeightBound: bound,
		Rotations:   stats.Rotations,
		Nanoseconds: elapsed.Nanoseconds(),
	}, nil
}
