package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/tractstory/pkg/chart"
	"github.com/matzehuels/tractstory/pkg/config"
	"github.com/matzehuels/tractstory/pkg/dataset"
	"github.com/matzehuels/tractstory/pkg/pipeline"
)

// renderOpts holds the command-line flags for the render command.
// Unset flags fall back to the [render] section of the config file.
type renderOpts struct {
	output   string  // output directory
	steps    string  // comma-separated step names or indices; empty means all
	formats  string  // comma-separated output formats
	seed     uint64  // layout seed
	ticks    int     // max settle ticks per step
	scale    float64 // PNG scale factor
	tooltips bool    // embed tract tooltips
	noCache  bool    // bypass the frame and dataset cache
	refresh  bool    // refetch the dataset and re-render
}

// renderCommand creates the render command for writing chart states to files.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts
	var src sourceFlags

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Replay the narrative and write each chart state to a file",
		Long: `Replay the narrative from the population trend to the last requested step,
letting the layout settle after each, and write the requested steps as
<output>/<index>-<step>.<format>.`,
		Example: `  tractstory render
  tractstory render --steps scatter,poverty --format svg,png -o frames
  tractstory render --tracts data/dataset.csv --years data/populationchange.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			popts, err := opts.pipelineOptions(cmd, cfg, src.apply(cfg))
			if err != nil {
				return err
			}
			return c.runRender(cmd.Context(), cfg, popts, &opts)
		},
	}

	src.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory (default from config)")
	cmd.Flags().StringVarP(&opts.steps, "steps", "s", "", "steps to write: names or indices, comma-separated (default all)")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output format(s): svg, json, pdf, png (comma-separated)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", pipeline.DefaultSeed, "layout seed")
	cmd.Flags().IntVar(&opts.ticks, "ticks", pipeline.DefaultSettleTicks, "max layout ticks per step")
	cmd.Flags().Float64Var(&opts.scale, "scale", pipeline.DefaultScale, "PNG scale factor")
	cmd.Flags().BoolVar(&opts.tooltips, "tooltips", true, "embed tract tooltips")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&opts.refresh, "refresh", false, "refetch the dataset and re-render cached frames")
	registerListCompletions(cmd)

	return cmd
}

// pipelineOptions merges config values with the flags the user set.
func (o *renderOpts) pipelineOptions(cmd *cobra.Command, cfg *config.Config, src dataset.Source) (pipeline.Options, error) {
	steps, err := parseSteps(o.steps)
	if err != nil {
		return pipeline.Options{}, err
	}
	opts := pipeline.Options{
		Source:      src,
		Refresh:     o.refresh,
		Steps:       steps,
		SettleTicks: cfg.Render.SettleTicks,
		Seed:        cfg.Render.Seed,
		Formats:     cfg.Render.Formats,
		Tooltips:    cfg.Render.Tooltips,
		Scale:       cfg.Render.Scale,
	}
	flags := cmd.Flags()
	if f := parseFormats(o.formats); len(f) > 0 {
		opts.Formats = f
	}
	if flags.Changed("seed") {
		opts.Seed = o.seed
	}
	if flags.Changed("ticks") {
		opts.SettleTicks = o.ticks
	}
	if flags.Changed("scale") {
		opts.Scale = o.scale
	}
	if flags.Changed("tooltips") {
		opts.Tooltips = o.tooltips
	}
	if o.output == "" {
		o.output = cfg.Render.Output
	}
	return opts, opts.ValidateAndSetDefaults()
}

// runRender executes the pipeline and writes every artifact.
func (c *CLI) runRender(ctx context.Context, cfg *config.Config, opts pipeline.Options, ro *renderOpts) error {
	logger := loggerFromContext(ctx)
	runner, err := c.newRunner(ctx, cfg, ro.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	result, err := renderFrames(ctx, runner, opts)
	if err != nil {
		return err
	}
	paths, err := writeFrames(ro.output, result)
	if err != nil {
		return err
	}

	printSuccess("Rendered %d steps", len(result.Frames))
	printStats(result.Stats.Tracts, len(result.Frames), result.CacheInfo.RenderHit)
	for _, p := range paths {
		printFile(p)
	}
	logger.Debug("render timings",
		"load", result.Stats.LoadTime,
		"layout", result.Stats.LayoutTime,
		"render", result.Stats.RenderTime)
	printNextStep("Scroll through it in a browser", appName+" serve")
	return nil
}

// renderFrames runs the pipeline behind a spinner.
func renderFrames(ctx context.Context, runner *pipeline.Runner, opts pipeline.Options) (*pipeline.Result, error) {
	prog := newProgress(loggerFromContext(ctx))
	spin := newSpinnerWithContext(ctx, "Replaying the narrative...")
	spin.Start()
	result, err := runner.Execute(ctx, opts)
	if err != nil {
		spin.StopWithError("Replay failed")
		return nil, err
	}
	spin.Stop()
	prog.done(fmt.Sprintf("Replayed %d steps over %d tracts", len(result.Frames), result.Stats.Tracts))
	return result, nil
}

// writeFrames writes every artifact under dir and returns the paths in
// narrative then format order.
func writeFrames(dir string, result *pipeline.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	var paths []string
	for _, f := range result.Frames {
		formats := make([]string, 0, len(f.Artifacts))
		for format := range f.Artifacts {
			formats = append(formats, format)
		}
		slices.Sort(formats)
		for _, format := range formats {
			path := filepath.Join(dir, frameFile(f.Step, format))
			if err := os.WriteFile(path, f.Artifacts[format], 0o644); err != nil {
				return nil, fmt.Errorf("write %s: %w", path, err)
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// frameFile names an artifact, e.g. "05-scatter.svg".
func frameFile(step chart.Step, format string) string {
	return fmt.Sprintf("%02d-%s.%s", int(step), step, format)
}

// parseSteps parses the --steps flag. Empty means every step.
func parseSteps(s string) ([]chart.Step, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var steps []chart.Step
	for _, part := range strings.Split(s, ",") {
		step, err := chart.ParseStep(part)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}
