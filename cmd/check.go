package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validates a scenario file",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadScenario()
		if err != nil {
			fail(err)
		}
		fmt.Printf("%s is valid: %d nodes, %d links, %d link changes, infinity %d, poison reverse %v\n",
			scenarioPath, cfg.Nodes, len(cfg.Links), len(cfg.Changes), cfg.Infinity, cfg.PoisonReverse)
		if ok, _ := cmd.Flags().GetBool("links"); ok {
			costs := cfg.CostMatrix()
			for _, e := range cfg.Edges() {
				fmt.Printf("  %d <-> %d: %d / %d, delay %v\n", e.V1, e.V2, costs[e.V1][e.V2], costs[e.V2][e.V1], cfg.LinkDelay(e.V1, e.V2))
			}
		}
	},
	GroupID: "cfg",
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolP("links", "l", false, "list every link")
}
