package render

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/ordtree/pkg/rbtree"
)

const (
	chartWidth  = "100%"
	chartHeight = "900px"

	symbolBlack = "circle"
	symbolRed   = "emptyCircle"
	symbolSize  = 14
)

// WriteHTML writes a self-contained interactive HTML page drawing tree.
func WriteHTML[K any](w io.Writer, tree *rbtree.Tree[K], format func(K) string, title string) error {
	chart := charts.NewTree()
	chart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{
			Title: title,
			Subtitle: fmt.Sprintf("%s keys, height %d (bound %d), filled nodes are black",
				humanize.Comma(int64(tree.Len())), tree.Height(), rbtree.HeightBound(tree.Len())),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	root := treeData(tree.Root(), format)
	if root == nil {
		root = &opts.TreeData{Name: emptyTree}
	}

	chart.AddSeries("tree", []opts.TreeData{*root}, charts.WithTreeOpts(opts.TreeChart{
		Layout:           "orthogonal",
		Orient:           "TB",
		InitialTreeDepth: -1,
		Roam:             opts.Bool(true),
		Label:            &opts.Label{Show: opts.Bool(true), Position: "top"},
	}))

	err := chart.Render(w)
	if err != nil {
		return fmt.Errorf("render html tree: %w", err)
	}

	return nil
}

// treeData converts the subtree under h. Recursion depth is the tree height.
func treeData[K any](h rbtree.Handle[K], format func(K) string) *opts.TreeData {
	if !h.Valid() {
		return nil
	}

	data := &opts.TreeData{
		Name:       fmt.Sprintf("%s (%s)", format(h.Key()), h.Color()),
		Symbol:     symbolBlack,
		SymbolSize: symbolSize,
	}

	if h.Color() == rbtree.Red {
		data.Symbol = symbolRed
	}

	for _, child := range [2]rbtree.Handle[K]{h.Left(), h.Right()} {
		if childData := treeData(child, format); childData != nil {
			data.Children = append(data.Children, childData)
		}
	}

	return data
}
