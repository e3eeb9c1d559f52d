// Package perf implements the "dsuspend perf" commands: benchmarks of the single
// suspender operations and the concurrent suspend, expire and restore load scenario.
package perf

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ValentinKolb/dSuspend/cmd/util"
	"github.com/ValentinKolb/dSuspend/lib/common"
	"github.com/ValentinKolb/dSuspend/lib/suspender"
	"github.com/ValentinKolb/dSuspend/lib/suspender/mem"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	PerfCmd = &cobra.Command{
		Use:   "perf",
		Short: "Performance and load testing tools for the suspender",
		Long: `Performance and load testing tools for the in-memory suspender.

The suspender is configured with the global flags or the matching DSUSPEND_<flag>
environment variables (e.g. DSUSPEND_DIVISIONS=128).`,
		PersistentPreRunE: processPerfConfig,
	}
	perfNumThreads = 10
	perfCSVPath    = ""
)

func init() {
	key := "threads"
	PerfCmd.PersistentFlags().Int(key, 10, util.WrapString("Number of goroutines used to drive the suspender"))
	key = "csv"
	PerfCmd.PersistentFlags().String(key, "", util.WrapString("Optional path to save the results as CSV"))

	PerfCmd.AddCommand(benchCmd)
	PerfCmd.AddCommand(loadCmd)
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	perfNumThreads = viper.GetInt("threads")
	if perfNumThreads < 1 {
		return fmt.Errorf("threads must be at least 1, got %d", perfNumThreads)
	}
	perfCSVPath = viper.GetString("csv")

	return common.InitLoggers(viper.GetString("log-level"))
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// newSuspender creates and starts a memory suspender from the CLI configuration.
// The returned function stops the suspender and the metrics endpoint.
func newSuspender(conf *common.SuspenderConfig) (suspender.ISuspender, func(), error) {
	s := mem.NewMemSuspender(mem.OptionsFromConfig(*conf))
	if err := s.Start(); err != nil {
		return nil, nil, err
	}

	stopMetrics := serveMetrics(conf.MetricsEndpoint, s)

	return s, func() {
		stopMetrics()
		if err := s.Stop(); err != nil {
			common.GetLogger(common.LoggerPerf).Errorf("failed to stop suspender: %v", err)
		}
	}, nil
}

// serveMetrics serves the metrics of s on endpoint until the returned function is called.
// An empty endpoint disables the server.
func serveMetrics(endpoint string, s suspender.ISuspender) func() {
	if endpoint == "" {
		return func() {}
	}

	log := common.GetLogger(common.LoggerPerf)

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		s.WriteMetrics(w)
	})

	srv := &http.Server{Addr: endpoint, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics endpoint %s failed: %v", endpoint, err)
		}
	}()
	log.Infof("serving metrics on http://%s/metrics", endpoint)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
