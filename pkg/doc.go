// Package pkg provides the core libraries for tractstory, a scroll-driven
// story about population and poverty in St. Louis census tracts.
//
// # Overview
//
// One circle stands for each census tract. As a reader scrolls through the
// narrative, the same circles are rearranged by a force simulation into a
// sequence of eight charts: a yearly population trend, a packed total
// population view, an income histogram, non-white and Black population
// views, a median income against Black population share scatter, and two
// poverty groupings.
//
// # Architecture
//
// The data flow through tractstory:
//
//	tract and year tables (file, http or s3)
//	         ↓
//	    [dataset] package (fetch, parse, verify summaries)
//	         ↓
//	    [scale] package (domains and ranges shared by every chart)
//	         ↓
//	    [chart] package (per-step targets, furniture and tooltips)
//	         ↓
//	    [force] package (settle circles toward their targets)
//	         ↓
//	    [transition] package (replay steps between scroll positions)
//	         ↓
//	    [render/sink] package (SVG, JSON, PNG, PDF)
//
// [pipeline] ties these together for the CLI and the server. [cache] stores
// rendered frames keyed by dataset hash and render options, and [session]
// remembers where each viewer left off.
//
// # Quick Start
//
// Render the scatter step of the default dataset:
//
//	runner := pipeline.NewRunner(cache.NewNullCache(), cache.NewDefaultKeyer(), nil)
//	res, err := runner.Execute(ctx, pipeline.Options{
//	    Source:  dataset.DefaultSource(),
//	    Steps:   []chart.Step{chart.Scatter},
//	    Formats: []string{"svg"},
//	})
//	if err != nil {
//	    return err
//	}
//	svg := res.Frames[0].Artifacts["svg"]
//
// Follow a reader interactively:
//
//	story, _ := runner.NewStory(res.Dataset, opts)
//	path, _ := story.Scroll(ctx, 3, 0) // replays trend through nw-pop
//	story.Settle(ctx)
//	frame, _ := story.Render(ctx, "svg")
//
// # Testing
//
//	go test ./pkg/...
//
// Tests read the small fixture tables under dataset/testdata and need no
// network. PNG and PDF tests skip when rsvg-convert is not installed.
//
// [dataset]: https://pkg.go.dev/github.com/matzehuels/tractstory/pkg/dataset
// [scale]: https://pkg.go.dev/github.com/matzehuels/tractstory/pkg/scale
// [chart]: https://pkg.go.dev/github.com/matzehuels/tractstory/pkg/chart
// [force]: https://pkg.go.dev/github.com/matzehuels/tractstory/pkg/force
// [transition]: https://pkg.go.dev/github.com/matzehuels/tractstory/pkg/transition
// [render/sink]: https://pkg.go.dev/github.com/matzehuels/tractstory/pkg/render/sink
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/tractstory/pkg/pipeline
// [cache]: https://pkg.go.dev/github.com/matzehuels/tractstory/pkg/cache
// [session]: https://pkg.go.dev/github.com/matzehuels/tractstory/pkg/session
package pkg
