package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/tractstory/internal/server"
	"github.com/matzehuels/tractstory/pkg/config"
	"github.com/matzehuels/tractstory/pkg/dataset"
	"github.com/matzehuels/tractstory/pkg/pipeline"
)

// serveCommand runs serve mode.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		src      sourceFlags
		addr     string
		coalesce time.Duration
		tween    int
		watch    bool
		noCache  bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scroll page, frames and metrics over HTTP",
		Long: `Serve the scroll-driven page. Each browser gets its own story over a websocket,
resumable through its session id; bursts of scroll events are coalesced so only
the latest position is applied. Frames are also available at
/frames/{step}.{svg,json,png,pdf} and metrics at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			source := src.apply(cfg)
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("coalesce") {
				cfg.Server.Coalesce = config.Duration{Duration: coalesce}
			}
			if cmd.Flags().Changed("tween") {
				cfg.Server.Tween = tween
			}
			return c.runServe(ctx, cfg, source, watch, noCache)
		},
	}
	src.register(cmd)
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().DurationVar(&coalesce, "coalesce", server.DefaultCoalesce, "scroll coalescing window")
	cmd.Flags().IntVar(&tween, "tween", server.DefaultTween, "blended frames sent before each settled frame")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload local dataset files when they change")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	return cmd
}

func (c *CLI) runServe(ctx context.Context, cfg *config.Config, source dataset.Source, watch, noCache bool) error {
	runner, err := c.newRunner(ctx, cfg, noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	sessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer sessions.Close()

	metrics := server.NewMetrics()
	metrics.Install()

	prog := newProgress(c.Logger)
	ds, err := runner.Load(ctx, pipeline.Options{Source: source})
	if err != nil {
		return err
	}
	prog.done("Loaded dataset")

	srv, err := server.New(runner, ds, sessions,
		server.WithLogger(c.Logger),
		server.WithMetrics(metrics),
		server.WithCoalesce(cfg.Server.Coalesce.Duration),
		server.WithTween(cfg.Server.Tween),
		server.WithSessionTTL(cfg.Server.SessionTTL.Duration),
		server.WithPipelineOptions(pipeline.Options{
			SettleTicks: cfg.Render.SettleTicks,
			Seed:        cfg.Render.Seed,
			Tooltips:    cfg.Render.Tooltips,
			Scale:       cfg.Render.Scale,
		}))
	if err != nil {
		return err
	}

	if watch {
		w, err := dataset.NewWatcher(runner.Loader, source, 0, func(ds *dataset.Dataset, err error) {
			if err != nil {
				c.Logger.Warn("dataset reload failed; keeping the previous one", "error", err)
				return
			}
			srv.SetDataset(ds)
		})
		if err != nil {
			return err
		}
		if err := w.Start(ctx); err != nil {
			return err
		}
		defer w.Stop()
	}

	printInfo("Serving on %s", cfg.Server.Addr)
	printDetail("%d tracts · sessions in %s", len(ds.Tracts), cfg.Server.Sessions)
	return srv.ListenAndServe(ctx, cfg.Server.Addr)
}
