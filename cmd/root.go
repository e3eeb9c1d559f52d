package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dSuspend/cmd/perf"
	"github.com/ValentinKolb/dSuspend/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dsuspend",
		Short: "in-memory hierarchical suspension engine",
		Long: fmt.Sprintf(`dSuspend (v%s)

An in-memory engine written in Go that suspends values under hierarchical paths
for a bounded time and restores each of them exactly once, either explicitly
or automatically when it expires.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dSuspend",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dSuspend v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(perf.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	util.SetupSuspenderFlags(RootCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
