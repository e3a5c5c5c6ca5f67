package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/tractstory/pkg/config"
	"github.com/matzehuels/tractstory/pkg/dataset"
	"github.com/matzehuels/tractstory/pkg/pipeline"
)

// watchCommand re-renders whenever the local dataset files change.
func (c *CLI) watchCommand() *cobra.Command {
	var opts renderOpts
	var src sourceFlags

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-render every time local dataset files change",
		Long: `Render once, then watch the --tracts and --years files and render again after
every change. Both tables must be local files.`,
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
			return c.runWatch(cmd.Context(), cfg, popts, &opts)
		},
	}

	src.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output directory (default from config)")
	cmd.Flags().StringVarP(&opts.steps, "steps", "s", "", "steps to write: names or indices, comma-separated (default all)")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "output format(s): svg, json, pdf, png (comma-separated)")
	cmd.Flags().Uint64Var(&opts.seed, "seed", pipeline.DefaultSeed, "layout seed")
	cmd.Flags().IntVar(&opts.ticks, "ticks", pipeline.DefaultSettleTicks, "max layout ticks per step")
	cmd.Flags().BoolVar(&opts.tooltips, "tooltips", true, "embed tract tooltips")
	registerListCompletions(cmd)
	return cmd
}

func (c *CLI) runWatch(ctx context.Context, cfg *config.Config, opts pipeline.Options, ro *renderOpts) error {
	runner, err := c.newRunner(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer runner.Close()

	write := func(result *pipeline.Result) {
		paths, err := writeFrames(ro.output, result)
		if err != nil {
			printError("%v", err)
			return
		}
		printSuccess("Rendered %d files to %s", len(paths), ro.output)
	}

	w, err := dataset.NewWatcher(runner.Loader, opts.Source, 0, func(ds *dataset.Dataset, err error) {
		if err != nil {
			printError("reload failed: %v", err)
			return
		}
		result, err := runner.RenderSteps(ctx, ds, opts)
		if err != nil {
			printError("%v", err)
			return
		}
		write(result)
	})
	if err != nil {
		return err
	}
	defer w.Stop()

	result, err := renderFrames(ctx, runner, opts)
	if err != nil {
		return err
	}
	write(result)

	if err := w.Start(ctx); err != nil {
		return err
	}

	printInfo("Watching %s and %s (ctrl+c to stop)", opts.Source.Tracts, opts.Source.Years)
	<-ctx.Done()
	return nil
}
