package cmd

import (
	"io"
	"os"
	"strconv"

	"github.com/encodeous/dvsim/paths"
	"github.com/encodeous/dvsim/state"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var pathsAfter = false

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Prints the shortest path cost between every pair of nodes",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadScenario()
		if err != nil {
			fail(err)
		}
		initial := cfg.CostMatrix()
		current := cfg.CostMatrix()
		if pathsAfter {
			for _, c := range cfg.Changes {
				current[c.From][c.To] = c.Cost.Normalise(cfg.Infinity)
				if !c.OneWay {
					current[c.To][c.From] = c.Cost.Normalise(cfg.Infinity)
				}
			}
		}
		renderCosts(os.Stdout, paths.Solve(initial, current, cfg.Infinity), cfg.Infinity)
	},
	GroupID: "cfg",
}

func renderCosts(w io.Writer, costs []state.CostVector, inf state.Metric) {
	header := []string{"src \\ dst"}
	for x := range costs {
		header = append(header, strconv.Itoa(x))
	}
	rows := make([][]string, 0, len(costs))
	for i, row := range costs {
		line := []string{strconv.Itoa(i)}
		for _, c := range row {
			if c >= inf {
				line = append(line, "inf")
			} else {
				line = append(line, strconv.FormatUint(uint64(c), 10))
			}
		}
		rows = append(rows, line)
	}

	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetHeader(header)
	table.AppendBulk(rows)
	table.Render()
}

func init() {
	rootCmd.AddCommand(pathsCmd)
	pathsCmd.Flags().BoolVarP(&pathsAfter, "after", "a", false, "apply every link change before solving")
}
