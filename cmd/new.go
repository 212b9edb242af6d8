package cmd

import (
	"fmt"
	"os"

	"github.com/encodeous/dvsim/state"
	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Writes a sample scenario",
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("sample")
		poison, _ := cmd.Flags().GetBool("poison")
		force, _ := cmd.Flags().GetBool("force")

		cfg, err := state.SampleScenario(name, poison)
		if err != nil {
			fail(err)
		}
		data, err := cfg.Marshal()
		if err != nil {
			fail(err)
		}
		if _, err := os.Stat(scenarioPath); err == nil && !force {
			fail(fmt.Errorf("%s already exists, use --force to overwrite it", scenarioPath))
		}
		err = os.WriteFile(scenarioPath, data, 0644)
		if err != nil {
			fail(err)
		}
		fmt.Printf("wrote the %s scenario to %s\n", name, scenarioPath)
	},
	GroupID: "cfg",
}

func init() {
	rootCmd.AddCommand(newCmd)
	newCmd.Flags().String("sample", "classic", fmt.Sprintf("sample to write, one of %v", state.SampleNames()))
	newCmd.Flags().BoolP("poison", "p", true, "enable poison reverse in the sample")
	newCmd.Flags().BoolP("force", "f", false, "overwrite an existing file")
}
