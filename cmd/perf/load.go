package perf

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/dSuspend/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	loadCmd = &cobra.Command{
		Use:   "load",
		Short: "Run the concurrent suspend, expire and restore scenario",
		Long: `Run the concurrent suspend, expire and restore scenario.

The scenario suspends a five level tree (A/B for 2h, A/B/C for 1h, A/B/C/D/E for
--leaf-duration) from several goroutines, waits for the leaves to expire and measures
how far their restorations deviate from the ideal time. The remaining objects are then
restored concurrently: half of the groups by prefix and half by repeated minimum
restores. The run fails if any object is restored twice or not at all.`,
		RunE: runLoad,
	}
	loadScenario = defaultScenario()
)

func init() {
	key := "groups"
	loadCmd.Flags().Int(key, loadScenario.Groups, util.WrapString("Number of top level groups (A nodes)"))
	key = "leaves"
	loadCmd.Flags().Int(key, loadScenario.Leaves, util.WrapString("Number of leaves (E nodes) per D node"))
	key = "leaf-duration"
	loadCmd.Flags().Duration(key, loadScenario.LeafDuration, util.WrapString("How long the leaves are suspended"))
	key = "max-deviation"
	loadCmd.Flags().Duration(key, loadScenario.MaxDeviation, util.WrapString("Maximum accepted deviation of a leaf restoration from its ideal time"))
}

func runLoad(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	sc := loadScenario
	sc.Threads = perfNumThreads
	sc.Groups = viper.GetInt("groups")
	sc.Leaves = viper.GetInt("leaves")
	sc.LeafDuration = viper.GetDuration("leaf-duration")
	sc.MaxDeviation = viper.GetDuration("max-deviation")
	if sc.Groups < 1 || sc.Leaves < 1 {
		return fmt.Errorf("groups and leaves must be at least 1")
	}

	conf := util.GetSuspenderConfig()

	fmt.Println("Load test for the memory suspender")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(conf.String())
	fmt.Printf("Threads: %d, Groups: %d, Leaves: %d, Leaf Duration: %s\n", sc.Threads, sc.Groups, sc.leafCount(), sc.LeafDuration)
	fmt.Println()

	s, stop, err := newSuspender(conf)
	if err != nil {
		return err
	}
	defer stop()

	result := sc.run(s)
	printLoadResult(result)

	if perfCSVPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", perfCSVPath)
		if err := writeLoadResultToCSV(perfCSVPath, result, conf); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	if !result.Passed() {
		return fmt.Errorf("load test failed with %d failed checks", len(result.Failures))
	}
	return nil
}

// printLoadResult prints the result of a load test in a formatted way
func printLoadResult(r *loadResult) {
	dev := r.Deviation.Snapshot()

	fmt.Printf("%-20s%s\n", "run", r.RunID)
	fmt.Printf("%-20s%d calls in %s (%.0f ops/sec)\n", "suspend", r.SuspendOps, r.SuspendDuration, r.SuspendRate)
	fmt.Printf("%-20smin %s, mean %s, p99 %s, max %s (%d leaves)\n", "leaf deviation",
		millis(float64(dev.Min())), millis(dev.Mean()), millis(dev.Percentile(0.99)), millis(float64(dev.Max())), dev.Count())
	fmt.Printf("%-20s%d inner objects in %s (%d restorations in total)\n", "restore", r.Scenario.innerCount(), r.RestoreDuration, r.Restored)

	if r.Passed() {
		fmt.Printf("%-20spassed\n", "checks")
		return
	}
	fmt.Printf("%-20sfailed\n", "checks")
	for _, f := range r.Failures {
		fmt.Printf("  - %s\n", f)
	}
}

func millis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
