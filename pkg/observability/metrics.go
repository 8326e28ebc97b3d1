package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricInsertsTotal     = "ordtree.tree.inserts.total"
	metricDeletesTotal     = "ordtree.tree.deletes.total"
	metricRotationsTotal   = "ordtree.tree.rotations.total"
	metricRecolorsTotal    = "ordtree.tree.recolors.total"
	metricFixupStepsTotal  = "ordtree.tree.fixup.steps.total"
	metricTreeSize         = "ordtree.tree.size"
	metricTreeHeight       = "ordtree.tree.height"
	metricTreeHeightBound  = "ordtree.tree.height.bound"
	metricCommandsTotal    = "ordtree.commands.total"
	metricCommandDuration  = "ordtree.command.duration.seconds"
	metricCommandErrors    = "ordtree.command.errors.total"
	metricSnapshotBytes    = "ordtree.snapshot.bytes"
	metricSnapshotDuration = "ordtree.snapshot.duration.seconds"

	attrTree    = "tree"
	attrCommand = "command"
	attrStatus  = "status"
	attrOp      = "op"

	// StatusOK and StatusError label command outcomes.
	StatusOK    = "ok"
	StatusError = "error"
)

// durationBucketBoundaries covers 100µs to 60s: single lookups up to bulk
// loads of millions of keys.
var durationBucketBoundaries = []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60}

// TreeSample is a point-in-time view of one tree, decoupled from the tree types.
type TreeSample struct {
	Name        string
	Len         int
	Height      int
	HeightBound int
	Inserts     int64
	Deletes     int64
	Rotations   int64
	Recolors    int64
	FixupSteps  int64
}

// TreeMetrics holds the OTel instruments describing tree work and shape.
type TreeMetrics struct {
	inserts          metric.Int64Counter
	deletes          metric.Int64Counter
	rotations        metric.Int64Counter
	recolors         metric.Int64Counter
	fixupSteps       metric.Int64Counter
	size             metric.Int64Gauge
	height           metric.Int64Gauge
	heightBound      metric.Int64Gauge
	commandsTotal    metric.Int64Counter
	commandDuration  metric.Float64Histogram
	commandErrors    metric.Int64Counter
	snapshotBytes    metric.Int64Gauge
	snapshotDuration metric.Float64Histogram
}

// NewTreeMetrics creates the tree instruments from the given meter.
func NewTreeMetrics(mt metric.Meter) (*TreeMetrics, error) {
	b := newMetricBuilder(mt)

	tm := &TreeMetrics{
		inserts:     b.counter(metricInsertsTotal, "Keys inserted", "{key}"),
		deletes:     b.counter(metricDeletesTotal, "Keys deleted", "{key}"),
		rotations:   b.counter(metricRotationsTotal, "Rotations performed while rebalancing", "{rotation}"),
		recolors:    b.counter(metricRecolorsTotal, "Recoloring fixup cases during insert and delete", "{recolor}"),
		fixupSteps:  b.counter(metricFixupStepsTotal, "Insert fixup loop iterations", "{step}"),
		size:        b.gauge(metricTreeSize, "Keys held by the tree", "{key}"),
		height:      b.gauge(metricTreeHeight, "Longest root-to-leaf path", "{node}"),
		heightBound: b.gauge(metricTreeHeightBound, "Red-black height guarantee for the current size", "{node}"),

		commandsTotal:   b.counter(metricCommandsTotal, "CLI commands executed", "{command}"),
		commandDuration: b.histogram(metricCommandDuration, "CLI command duration", "s", durationBucketBoundaries...),
		commandErrors:   b.counter(metricCommandErrors, "CLI commands that failed", "{error}"),

		snapshotBytes:    b.gauge(metricSnapshotBytes, "Size of the last snapshot on disk", "By"),
		snapshotDuration: b.histogram(metricSnapshotDuration, "Snapshot save or load duration", "s", durationBucketBoundaries...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return tm, nil
}

// RecordTree records the counters and shape of one tree. Counters are added,
// so pass the delta since the previous sample of the same tree.
// Safe to call on a nil receiver (no-op).
func (tm *TreeMetrics) RecordTree(ctx context.Context, sample TreeSample) {
	if tm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrTree, sample.Name))

	tm.inserts.Add(ctx, sample.Inserts, attrs)
	tm.deletes.Add(ctx, sample.Deletes, attrs)
	tm.rotations.Add(ctx, sample.Rotations, attrs)
	tm.recolors.Add(ctx, sample.Recolors, attrs)
	tm.fixupSteps.Add(ctx, sample.FixupSteps, attrs)
	tm.size.Record(ctx, int64(sample.Len), attrs)
	tm.height.Record(ctx, int64(sample.Height), attrs)
	tm.heightBound.Record(ctx, int64(sample.HeightBound), attrs)
}

// RecordCommand records a completed CLI command with its status and duration.
// Safe to call on a nil receiver (no-op).
func (tm *TreeMetrics) RecordCommand(ctx context.Context, command, status string, duration time.Duration) {
	if tm == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(attrCommand, command),
		attribute.String(attrStatus, status),
	)

	tm.commandsTotal.Add(ctx, 1, attrs)
	tm.commandDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		tm.commandErrors.Add(ctx, 1, metric.WithAttributes(attribute.String(attrCommand, command)))
	}
}

// RecordSnapshot records a snapshot save or load.
// Safe to call on a nil receiver (no-op).
func (tm *TreeMetrics) RecordSnapshot(ctx context.Context, op string, bytes int64, duration time.Duration) {
	if tm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrOp, op))

	tm.snapshotBytes.Record(ctx, bytes, attrs)
	tm.snapshotDuration.Record(ctx, duration.Seconds(), attrs)
}
