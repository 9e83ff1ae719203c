package export

import (
	"bytes"
	"fmt"

	svg "github.com/ajstarks/svgo"

	"github.com/JorisTruong/setl/pipeline"
)

// SVGOptions configures SVG plan rendering.
type SVGOptions struct {
	NodeWidth  int // Width of factory boxes
	NodeHeight int // Height of factory boxes
	HGap       int // Horizontal gap between stages
	VGap       int // Vertical gap between boxes in a stage
	Margin     int // Canvas margin in pixels
	Title      string
}

// DefaultSVGOptions returns sensible default rendering options.
func DefaultSVGOptions() SVGOptions {
	return SVGOptions{
		NodeWidth:  220,
		NodeHeight: 48,
		HGap:       120,
		VGap:       28,
		Margin:     40,
		Title:      "Execution plan",
	}
}

// SVG renders the plan as an SVG drawing: stages laid out as columns,
// factories as boxes, bindings between factories as lines. Bindings fed by
// external seeds are not drawn.
func SVG(dag *pipeline.DAG, opts SVGOptions) ([]byte, error) {
	if dag == nil {
		return nil, fmt.Errorf("dag cannot be nil")
	}
	def := DefaultSVGOptions()
	if opts.NodeWidth <= 0 {
		opts.NodeWidth = def.NodeWidth
	}
	if opts.NodeHeight <= 0 {
		opts.NodeHeight = def.NodeHeight
	}
	if opts.HGap <= 0 {
		opts.HGap = def.HGap
	}
	if opts.VGap <= 0 {
		opts.VGap = def.VGap
	}
	if opts.Margin <= 0 {
		opts.Margin = def.Margin
	}

	maxRows := 1
	for _, nodes := range dag.Stages {
		if len(nodes) > maxRows {
			maxRows = len(nodes)
		}
	}
	titleSpace := 0
	if opts.Title != "" {
		titleSpace = 30
	}
	width := 2*opts.Margin + len(dag.Stages)*opts.NodeWidth
	if n := len(dag.Stages); n > 1 {
		width += (n - 1) * opts.HGap
	}
	if width < 2*opts.Margin+opts.NodeWidth {
		width = 2*opts.Margin + opts.NodeWidth
	}
	height := 2*opts.Margin + titleSpace + maxRows*(opts.NodeHeight+opts.VGap)

	type box struct{ x, y int }
	boxes := make(map[*pipeline.Node]box)

	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(width, height)
	if opts.Title != "" {
		canvas.Text(width/2, opts.Margin, opts.Title, "text-anchor:middle;font-size:16px;font-family:sans-serif")
	}

	for stageID, nodes := range dag.Stages {
		x := opts.Margin + stageID*(opts.NodeWidth+opts.HGap)
		for row, n := range nodes {
			y := opts.Margin + titleSpace + row*(opts.NodeHeight+opts.VGap)
			boxes[n] = box{x: x, y: y}
		}
	}

	// Edges first so the boxes draw over the line ends.
	for _, e := range dag.Edges {
		if e.From == nil {
			continue
		}
		from := boxes[e.From]
		to := boxes[e.To]
		canvas.Line(
			from.x+opts.NodeWidth, from.y+opts.NodeHeight/2,
			to.x, to.y+opts.NodeHeight/2,
			"stroke:#888;stroke-width:2",
		)
	}

	for stageID, nodes := range dag.Stages {
		x := opts.Margin + stageID*(opts.NodeWidth+opts.HGap)
		canvas.Text(x+opts.NodeWidth/2, opts.Margin+titleSpace-8, fmt.Sprintf("stage %d", stageID),
			"text-anchor:middle;font-size:12px;font-family:sans-serif;fill:#666")
		for _, n := range nodes {
			b := boxes[n]
			canvas.Roundrect(b.x, b.y, opts.NodeWidth, opts.NodeHeight, 6, 6,
				"fill:#eef;stroke:#336;stroke-width:1.5")
			canvas.Text(b.x+opts.NodeWidth/2, b.y+opts.NodeHeight/2-4, n.Name(),
				"text-anchor:middle;font-size:12px;font-family:sans-serif")
			canvas.Text(b.x+opts.NodeWidth/2, b.y+opts.NodeHeight/2+12, n.Descriptor.Output.Type.String(),
				"text-anchor:middle;font-size:10px;font-family:sans-serif;fill:#336")
		}
	}

	canvas.End()
	return buf.Bytes(), nil
}
