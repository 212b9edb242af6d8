package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/encodeous/dvsim/core"
	"github.com/encodeous/dvsim/sim"
	"github.com/encodeous/dvsim/state"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scenario and check that every node converges",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadScenario()
		if err != nil {
			fail(err)
		}

		flags := cmd.Flags()
		if ok, _ := flags.GetBool("poison"); ok {
			cfg.PoisonReverse = true
		}
		if ok, _ := flags.GetBool("no-poison"); ok {
			cfg.PoisonReverse = false
		}
		if logPath, _ := flags.GetString("log"); logPath != "" {
			cfg.LogPath = logPath
		}

		opts := sim.Options{
			Level: slog.LevelInfo,
		}
		if ok, _ := flags.GetBool("verbose"); ok {
			opts.Level = slog.LevelDebug
		}
		opts.Async, _ = flags.GetBool("async")

		tables, _ := flags.GetString("tables")
		switch tables {
		case "all":
			opts.Observer = core.LineObserver(func(line string) {
				fmt.Println(line)
			})
		case "final", "none":
		default:
			fail(fmt.Errorf("unknown --tables value %q, expected all, final or none", tables))
		}

		res, err := sim.Start(context.Background(), *cfg, opts)
		if err != nil {
			fail(err)
		}
		if tables == "final" {
			for _, s := range res.Final {
				fmt.Println(s.String())
			}
		}

		fmt.Printf("run %s: %d updates delivered, %d link changes, finished at %v\n",
			res.RunId, res.Stats.Delivered, res.Stats.LinkChanges, res.Stats.EndTime)
		if len(res.Mismatches) != 0 {
			for _, m := range res.Mismatches {
				fmt.Fprintf(os.Stderr, "node %d: cost to %d is %d, shortest path is %d\n", m.Node, m.Dest, m.Got, m.Want)
			}
			os.Exit(1)
		}
		fmt.Println("all nodes converged to shortest paths")
	},
	GroupID: "sim",
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().Bool("poison", false, "Enable poison reverse, overriding the scenario")
	runCmd.Flags().Bool("no-poison", false, "Disable poison reverse, overriding the scenario")
	runCmd.MarkFlagsMutuallyExclusive("poison", "no-poison")
	runCmd.Flags().Bool("async", false, "Run every node on its own goroutine instead of the discrete-event simulator")
	runCmd.Flags().String("tables", "final", "Which tables to print: all, final or none")
	runCmd.Flags().String("log", "", "Also write logs to this file")
	runCmd.Flags().BoolVarP(&state.DBG_log_route_changes, "lrchange", "g", false, "Outputs route changes to the console")
	runCmd.Flags().BoolVarP(&state.DBG_log_updates, "lupdate", "u", false, "Outputs every delivered update (with -v)")
	runCmd.Flags().BoolVar(&state.DBG_debug, "debug", false, "Serve expvar and metrics on "+state.DebugAddr)
	runCmd.Flags().BoolVar(&state.DBG_trace, "trace", false, "Write a runtime trace to trace.out")
}
