// Package render turns chart snapshots into files.
//
// The [sink] subpackage writes a snapshot as SVG, JSON, PNG or PDF. The
// conversion helpers here turn any SVG into PNG or PDF with the external
// rsvg-convert tool (from librsvg):
//
//	svg := sink.RenderSVG(snap, sink.WithTooltips(tips))
//	pdf, err := render.ToPDF(ctx, svg)
//	png, err := render.ToPNG(ctx, svg, 2.0) // 2x scale
//
// [sink]: github.com/matzehuels/tractstory/pkg/render/sink
package render
