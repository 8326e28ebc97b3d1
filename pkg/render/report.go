// Package render turns red-black trees into reports, colored ASCII
// drawings and interactive HTML charts.
package render

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/ordtree/pkg/persist"
	"github.com/Sumatoshi-tech/ordtree/pkg/rbtree"
)

// Report output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ErrUnknownFormat is returned for report formats other than text, json and yaml.
var ErrUnknownFormat = errors.New("unknown report format")

// Report summarizes the shape and health of one tree.
type Report struct {
	Name        string       `json:"name,omitempty"      yaml:"name,omitempty"`
	KeyType     string       `json:"key_type"            yaml:"key_type"`
	Violation   string       `json:"violation,omitempty" yaml:"violation,omitempty"`
	Keys        []string     `json:"keys,omitempty"      yaml:"keys,omitempty"`
	Stats       rbtree.Stats `json:"stats"               yaml:"stats"`
	Len         int          `json:"len"                 yaml:"len"`
	Height      int          `json:"height"              yaml:"height"`
	BlackHeight int          `json:"black_height"        yaml:"black_height"`
	HeightBound int          `json:"height_bound"        yaml:"height_bound"`
	Valid       bool         `json:"valid"               yaml:"valid"`
}

// NewReport measures tree. With withKeys the in-order keys are included.
func NewReport[K any](name string, tree *rbtree.Tree[K], keyType string, format func(K) string, withKeys bool) Report {
	report := Report{
		Name:        name,
		KeyType:     keyType,
		Stats:       tree.Stats(),
		Len:         tree.Len(),
		Height:      tree.Height(),
		BlackHeight: tree.BlackHeight(),
		HeightBound: rbtree.HeightBound(tree.Len()),
		Valid:       true,
	}

	err := tree.Verify()
	if err == nil && report.Height > report.HeightBound {
		err = fmt.Errorf("height %d exceeds bound %d", report.Height, report.HeightBound)
	}

	if err != nil {
		report.Valid = false
		report.Violation = err.Error()
	}

	if withKeys {
		report.Keys = make([]string, 0, tree.Len())
		for key := range tree.All() {
			report.Keys = append(report.Keys, format(key))
		}
	}

	return report
}

// WriteReport writes report as a text table, JSON or YAML.
func WriteReport(w io.Writer, report Report, format string) error {
	switch strings.ToLower(format) {
	case FormatText, "":
		_, err := io.WriteString(w, SummaryTable(report)+"\n")
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}

		if len(report.Keys) > 0 {
			_, err = fmt.Fprintf(w, "keys: %s\n", strings.Join(report.Keys, " "))
			if err != nil {
				return fmt.Errorf("write report: %w", err)
			}
		}

		return nil
	case FormatJSON, FormatYAML:
		codec, err := persist.CodecByName(format)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
		}

		err = codec.Encode(w, report)
		if err != nil {
			return fmt.Errorf("encode report: %w", err)
		}

		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// SummaryTable renders report as a two-column table.
func SummaryTable(report Report) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	title := "tree"
	if report.Name != "" {
		title = report.Name
	}

	status := "ok"
	if !report.Valid {
		status = "INVALID: " + report.Violation
	}

	tbl.SetTitle(title)
	tbl.AppendHeader(table.Row{"metric", "value"})
	tbl.AppendRows([]table.Row{
		{"key type", report.KeyType},
		{"keys", humanize.Comma(int64(report.Len))},
		{"height", report.Height},
		{"height bound", report.HeightBound},
		{"black height", report.BlackHeight},
		{"inserts", humanize.Comma(report.Stats.Inserts)},
		{"deletes", humanize.Comma(report.Stats.Deletes)},
		{"rotations", humanize.Comma(report.Stats.Rotations)},
		{"recolors", humanize.Comma(report.Stats.Recolors)},
		{"fixup steps", humanize.Comma(report.Stats.FixupSteps)},
	})
	tbl.AppendFooter(table.Row{"status", status})

	return tbl.Render()
}

// BenchRow is one line of a benchmark summary.
type BenchRow struct {
	Pattern     string
	Count       int
	Height      int
	HeightBound int
	Rotations   int64
	Nanoseconds int64
}

// BenchTable renders benchmark rows with humanized counts and timings.
func BenchTable(rows []BenchRow) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"pattern", "keys", "height", "bound", "rotations", "ns/insert"})

	for _, row := range rows {
		perInsert := int64(0)
		if row.Count > 0 {
			perInsert = row.Nanoseconds / int64(row.Count)
		}

		tbl.AppendRow(table.Row{
			row.Pattern,
			humanize.Comma(int64(row.Count)),
			row.Height,
			row.HeightBound,
			humanize.Comma(row.Rotations),
			humanize.Comma(perInsert),
		})
	}

	return tbl.Render()
}

// Bytes formats a byte count for humans, e.g. "4.1 kB".
func Bytes(size int64) string {
	if size < 0 {
		size = 0
	}

	return humanize.Bytes(uint64(size))
}

// TreesTable lists several trees, one row each.
func TreesTable(reports []Report) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"tree", "keys", "height", "bound", "valid"})

	total := 0

	for _, report := range reports {
		total += report.Len
		tbl.AppendRow(table.Row{
			report.Name,
			humanize.Comma(int64(report.Len)),
			report.Height,
			report.HeightBound,
			report.Valid,
		})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("%d trees", len(reports)), humanize.Comma(int64(total))})

	return tbl.Render()
}
