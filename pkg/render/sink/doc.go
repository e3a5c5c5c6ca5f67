// Package sink writes chart snapshots in their output formats.
//
// [RenderSVG] draws a snapshot on the fixed 1200x1000 canvas: the chart
// furniture visible in that state, then one circle per tract. Options add
// tract tooltips and the area label hover toggle as embedded CSS and script,
// so a standalone file keeps the page's pointer interactions.
//
// [RenderJSON] exports the same snapshot as a document a client can animate
// between, and [RenderPNG] and [RenderPDF] convert the SVG with rsvg-convert.
package sink
