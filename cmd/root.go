package cmd

import (
	"fmt"
	"os"

	"github.com/encodeous/dvsim/state"
	"github.com/spf13/cobra"
)

var scenarioPath = state.DefaultScenarioPath

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dvsim",
	Short: "Distance-vector routing simulator",
	Long: `dvsim runs the distance-vector routing algorithm, with or without poison reverse, over a simulated network.
Scenarios describe the topology, link delays and link cost changes over time.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "sim",
		Title: "Simulation Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "cfg",
		Title: "Scenario Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&scenarioPath, "scenario", "s", scenarioPath, "scenario file")
}

func loadScenario() (*state.ScenarioCfg, error) {
	cfg, err := state.ReadScenario(scenarioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", scenarioPath, err)
	}
	return cfg, nil
}

func fail(err error) {
	_, _ = fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
