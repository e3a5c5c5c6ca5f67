package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/tractstory/pkg/chart"
)

// stepsCommand lists the chart states in narrative order.
func (c *CLI) stepsCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "steps",
		Short: "List the chart states in narrative order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				return writeStepsJSON(c.Out)
			}
			fmt.Fprintln(c.Out, stepsTable())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

type stepInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Title string `json:"title"`
}

func stepInfos() []stepInfo {
	steps := chart.Steps()
	out := make([]stepInfo, len(steps))
	for i, s := range steps {
		out[i] = stepInfo{Index: int(s), Name: s.String(), Title: s.Title()}
	}
	return out
}

func writeStepsJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(stepInfos())
}

// stepsTable renders the steps as a bordered table.
func stepsTable() string {
	var rows [][]string
	for _, s := range stepInfos() {
		rows = append(rows, []string{strconv.Itoa(s.Index), s.Name, s.Title})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("#", "Step", "Chart").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return headerStyle
			case col == 1:
				return StyleHighlight
			default:
				return lipgloss.NewStyle().Foreground(colorWhite)
			}
		})
	return t.Render()
}
