package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	bprogress "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/tractstory/pkg/chart"
	"github.com/matzehuels/tractstory/pkg/force"
	"github.com/matzehuels/tractstory/pkg/pipeline"
)

// playCommand scrolls through the story from the terminal. Each settled
// step is written to an SVG file that a browser can keep open.
func (c *CLI) playCommand() *cobra.Command {
	var (
		src     sourceFlags
		output  string
		seed    uint64
		ticks   int
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Scroll through the story in the terminal",
		Long: `Step forwards and backwards through the narrative with the arrow keys. Every
transition replays the chart states in between, exactly as scrolling the page
does, and the settled frame is written to --output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			opts := pipeline.Options{
				Source:      src.apply(cfg),
				SettleTicks: cfg.Render.SettleTicks,
				Seed:        cfg.Render.Seed,
				Tooltips:    cfg.Render.Tooltips,
			}
			if cmd.Flags().Changed("seed") {
				opts.Seed = seed
			}
			if cmd.Flags().Changed("ticks") {
				opts.SettleTicks = ticks
			}
			runner, err := c.newRunner(ctx, cfg, noCache)
			if err != nil {
				return err
			}
			defer runner.Close()

			spin := newSpinnerWithContext(ctx, "Loading dataset...")
			spin.Start()
			ds, err := runner.Load(ctx, opts)
			if err != nil {
				spin.StopWithError("Could not load the dataset")
				return err
			}
			spin.StopWithSuccess(fmt.Sprintf("Loaded %d tracts", len(ds.Tracts)))
			// Log lines would tear the TUI; keep only warnings and worse.
			quiet := c.Logger.WithPrefix("play")
			quiet.SetLevel(log.WarnLevel)
			opts.Logger = quiet
			story, err := pipeline.NewStory(ds, opts)
			if err != nil {
				return err
			}

			m := newPlayModel(ctx, story, output)
			if _, err := tea.NewProgram(m, tea.WithContext(ctx)).Run(); err != nil {
				return err
			}
			printSuccess("Stopped at %s", story.Step())
			if output != "" {
				printFile(output)
			}
			return nil
		},
	}
	src.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "tractstory.svg", "file updated with the current frame (empty to disable)")
	cmd.Flags().Uint64Var(&seed, "seed", pipeline.DefaultSeed, "layout seed")
	cmd.Flags().IntVar(&ticks, "ticks", pipeline.DefaultSettleTicks, "max layout ticks per step")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")
	return cmd
}

// =============================================================================
// Key bindings
// =============================================================================

type playKeys struct {
	Next  key.Binding
	Prev  key.Binding
	First key.Binding
	Last  key.Binding
	Help  key.Binding
	Quit  key.Binding
}

func defaultPlayKeys() playKeys {
	return playKeys{
		Next:  key.NewBinding(key.WithKeys("down", "j", "right", "l", " "), key.WithHelp("↓/j", "next step")),
		Prev:  key.NewBinding(key.WithKeys("up", "k", "left", "h"), key.WithHelp("↑/k", "previous step")),
		First: key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "first")),
		Last:  key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "last")),
		Help:  key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:  key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k playKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.Help, k.Quit}
}

func (k playKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Next, k.Prev}, {k.First, k.Last}, {k.Help, k.Quit}}
}

// =============================================================================
// Model
// =============================================================================

// stepDoneMsg reports a finished transition.
type stepDoneMsg struct {
	step  chart.Step
	path  []chart.Step
	stats force.Stats
	err   error
}

// playModel is the bubbletea model for play. Key presses while a
// transition is running only move the target; the latest target is applied
// once the transition finishes.
type playModel struct {
	ctx    context.Context
	story  *pipeline.Story
	output string

	target  int
	busy    bool
	current chart.Step
	last    stepDoneMsg

	keys playKeys
	help help.Model
	bar  bprogress.Model
}

func newPlayModel(ctx context.Context, story *pipeline.Story, output string) playModel {
	return playModel{
		ctx:     ctx,
		story:   story,
		output:  output,
		current: chart.Initial,
		busy:    true,
		keys:    defaultPlayKeys(),
		help:    help.New(),
		bar:     bprogress.New(bprogress.WithSolidFill(string(colorCyan)), bprogress.WithoutPercentage(), bprogress.WithWidth(40)),
	}
}

// Init scrolls to the first step; the model starts busy.
func (m playModel) Init() tea.Cmd {
	return m.scroll(int(chart.Trend))
}

func (m playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Next):
			m.target = min(m.target+1, chart.NumSteps-1)
		case key.Matches(msg, m.keys.Prev):
			m.target = max(m.target-1, 0)
		case key.Matches(msg, m.keys.First):
			m.target = 0
		case key.Matches(msg, m.keys.Last):
			m.target = chart.NumSteps - 1
		default:
			return m, nil
		}
		return m.startIfIdle()

	case stepDoneMsg:
		m.busy = false
		m.current = msg.step
		m.last = msg
		return m.startIfIdle()

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		m.bar.Width = max(min(msg.Width-20, 60), 10)
	}
	return m, nil
}

// startIfIdle starts a transition to the target unless one is running or
// the story is already there.
func (m playModel) startIfIdle() (tea.Model, tea.Cmd) {
	if m.busy || chart.Step(m.target) == m.current {
		return m, nil
	}
	m.busy = true
	return m, m.scroll(m.target)
}

// scroll replays the path to index, settles and writes the frame.
func (m playModel) scroll(index int) tea.Cmd {
	story, ctx, output := m.story, m.ctx, m.output
	return func() tea.Msg {
		path, err := story.Scroll(ctx, index, 0)
		st, serr := story.Settle(ctx)
		if err == nil {
			err = serr
		}
		if output != "" {
			if svg, rerr := story.Render(ctx, pipeline.FormatSVG); rerr == nil {
				if werr := os.WriteFile(output, svg, 0o644); werr != nil && err == nil {
					err = werr
				}
			} else if err == nil {
				err = rerr
			}
		}
		return stepDoneMsg{step: story.Step(), path: path, stats: st, err: err}
	}
}

var (
	playCursor   = lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	playCurrent  = lipgloss.NewStyle().Foreground(colorWhite)
	playInactive = lipgloss.NewStyle().Foreground(colorDim)
)

func (m playModel) View() string {
	var b strings.Builder
	b.WriteString(StyleTitle.Render("St. Louis, tract by tract"))
	b.WriteString("\n\n")

	for _, s := range chart.Steps() {
		line := fmt.Sprintf("%d  %s", int(s), s.Title())
		switch {
		case s == m.current:
			b.WriteString(playCursor.Render("▸ " + line))
		case int(s) == m.target && m.busy:
			b.WriteString(playCurrent.Render("› " + line))
		default:
			b.WriteString(playInactive.Render("  " + line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.bar.ViewAs(float64(m.current+1) / chart.NumSteps))
	b.WriteString("\n")
	b.WriteString(m.status())
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m playModel) status() string {
	switch {
	case m.busy:
		return StyleDim.Render(fmt.Sprintf("settling toward %s...", chart.Step(m.target)))
	case m.last.err != nil:
		return StyleWarning.Render(m.last.err.Error())
	case m.current == chart.Initial:
		return ""
	}
	settled := "settled"
	if !m.last.stats.Converged {
		settled = "tick limit"
	}
	return StyleDim.Render(fmt.Sprintf("replayed %d step(s) · %d ticks · %s", len(m.last.path), m.last.stats.Ticks, settled))
}
