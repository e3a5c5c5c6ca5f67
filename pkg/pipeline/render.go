package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/tractstory/pkg/chart"
	tserrors "github.com/matzehuels/tractstory/pkg/errors"
	"github.com/matzehuels/tractstory/pkg/observability"
	"github.com/matzehuels/tractstory/pkg/render/sink"
)

// FrameInfo is the context a snapshot is rendered with.
type FrameInfo struct {
	Dataset  string
	Seed     uint64
	Tooltips []chart.Tooltip
}

// RenderSnapshot renders snap in one format.
func RenderSnapshot(ctx context.Context, snap chart.Snapshot, info FrameInfo, format string, opts Options) ([]byte, error) {
	svgOpts := []sink.SVGOption{sink.WithTitle(snap.Step.Title())}
	if len(info.Tooltips) > 0 {
		svgOpts = append(svgOpts, sink.WithTooltips(info.Tooltips))
	}

	switch format {
	case FormatSVG:
		return sink.RenderSVG(snap, svgOpts...), nil
	case FormatPNG:
		return sink.RenderPNG(ctx, snap, sink.WithPNGSVGOptions(svgOpts...), sink.WithScale(opts.Scale))
	case FormatPDF:
		return sink.RenderPDF(ctx, snap, sink.WithPDFSVGOptions(svgOpts...))
	case FormatJSON:
		jsonOpts := []sink.JSONOption{sink.WithJSONDataset(info.Dataset), sink.WithJSONSeed(info.Seed)}
		if len(info.Tooltips) > 0 {
			jsonOpts = append(jsonOpts, sink.WithJSONTooltips(info.Tooltips))
		}
		return sink.RenderJSON(snap, jsonOpts...)
	default:
		return nil, tserrors.New(tserrors.ErrCodeInvalidFormat, "unsupported format: %s", format)
	}
}

// RenderFormats renders snap in every requested format concurrently.
func RenderFormats(ctx context.Context, snap chart.Snapshot, info FrameInfo, opts Options) (map[string][]byte, error) {
	start := time.Now()
	observability.Pipeline().OnRenderStart(ctx, opts.Formats)

	var mu sync.Mutex
	artifacts := make(map[string][]byte, len(opts.Formats))
	g, gctx := errgroup.WithContext(ctx)
	for _, format := range opts.Formats {
		g.Go(func() error {
			data, err := RenderSnapshot(gctx, snap, info, format, opts)
			if err != nil {
				return fmt.Errorf("render %s %s: %w", snap.Step, format, err)
			}
			mu.Lock()
			artifacts[format] = data
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	observability.Pipeline().OnRenderComplete(ctx, opts.Formats, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}
