package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/ordtree/pkg/rbtree"
)

const (
	branchMid  = "├── "
	branchLast = "└── "
	indentMid  = "│   "
	indentLast = "    "
	emptyChild = "·"
	emptyTree  = "(empty)"
)

type asciiPainter[K any] struct {
	out    *strings.Builder
	format func(K) string
	red    *color.Color
	black  *color.Color
}

// WriteASCII draws tree top-down, left child before right child. Each node
// is printed as "key R" or "key B"; with colorize red nodes are red and
// black nodes bold, regardless of whether w is a terminal.
func WriteASCII[K any](w io.Writer, tree *rbtree.Tree[K], format func(K) string, colorize bool) error {
	painter := asciiPainter[K]{
		out:    &strings.Builder{},
		format: format,
		red:    color.New(color.FgRed, color.Bold),
		black:  color.New(color.Bold),
	}

	if colorize {
		painter.red.EnableColor()
		painter.black.EnableColor()
	} else {
		painter.red.DisableColor()
		painter.black.DisableColor()
	}

	root := tree.Root()
	if !root.Valid() {
		painter.out.WriteString(emptyTree + "\n")
	} else {
		painter.out.WriteString(painter.label(root) + "\n")
		painter.children(root, "")
	}

	_, err := io.WriteString(w, painter.out.String())
	if err != nil {
		return fmt.Errorf("write ascii tree: %w", err)
	}

	return nil
}

func (p *asciiPainter[K]) label(h rbtree.Handle[K]) string {
	if h.Color() == rbtree.Red {
		return p.red.Sprint(p.format(h.Key()) + " R")
	}

	return p.black.Sprint(p.format(h.Key()) + " B")
}

// children prints both child slots when at least one is occupied.
func (p *asciiPainter[K]) children(h rbtree.Handle[K], prefix string) {
	left, right := h.Left(), h.Right()
	if !left.Valid() && !right.Valid() {
		return
	}

	p.child(left, prefix, branchMid, indentMid)
	p.child(right, prefix, branchLast, indentLast)
}

func (p *asciiPainter[K]) child(h rbtree.Handle[K], prefix, branch, indent string) {
	p.out.WriteString(prefix + branch)

	if !h.Valid() {
		p.out.WriteString(emptyChild + "\n")

		return
	}

	p.out.WriteString(p.label(h) + "\n")
	p.children(h, prefix+indent)
}
