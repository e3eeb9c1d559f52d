package perf

import (
	"fmt"
	"math/rand"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dSuspend/cmd/util"
	"github.com/ValentinKolb/dSuspend/lib/common"
	"github.com/ValentinKolb/dSuspend/lib/suspender"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	benchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Benchmark the single operations of the suspender",
		RunE:  runBench,
	}
	benchGroupSpread = 100
	benchPathSpread  = 1000
	benchSkip        = make([]string, 0)
)

// benchmark is a named operation benchmark running against a fresh suspender
type benchmark struct {
	name string
	run  func(b *testing.B, s suspender.ISuspender)
}

var benchmarks = []benchmark{
	{"suspend", benchSuspend},
	{"suspend-existing", benchSuspendExisting},
	{"has", benchHas},
	{"has-group", benchHasGroup},
	{"restore", benchRestore},
	{"restore-min", benchRestoreMin},
	{"restore-group", benchRestoreGroup},
	{"mixed", benchMixed},
}

func init() {
	key := "skip"
	benchCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. suspend,has)"))
	key = "groups"
	benchCmd.Flags().Int(key, 100, util.WrapString("How many different groups (first path segments) to use"))
	key = "paths"
	benchCmd.Flags().Int(key, 1000, util.WrapString("How many different paths to use for the tests on existing objects"))
}

func runBench(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	benchGroupSpread = max(viper.GetInt("groups"), 1)
	benchPathSpread = max(viper.GetInt("paths"), 1)
	benchSkip = strings.Split(viper.GetString("skip"), ",")

	conf := util.GetSuspenderConfig()

	fmt.Println("Performance testing tool for the memory suspender")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(conf.String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	results := make(map[string]testing.BenchmarkResult)
	for _, bm := range benchmarks {
		result := runBenchmark(conf, bm)
		results[bm.name] = result
		printResult(bm.name, result)
	}

	if perfCSVPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", perfCSVPath)
		if err := writeBenchResultsToCSV(perfCSVPath, results, conf); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// runBenchmark runs bm against its own started suspender
func runBenchmark(conf *common.SuspenderConfig, bm benchmark) testing.BenchmarkResult {
	if shouldSkip(bm.name) {
		return testing.BenchmarkResult{}
	}

	var setupErr error
	result := testing.Benchmark(func(b *testing.B) {
		s, stop, err := newSuspender(conf)
		if err != nil {
			setupErr = err
			return
		}
		b.Cleanup(stop)

		b.SetParallelism(perfNumThreads)
		bm.run(b, s)
	})

	if setupErr != nil {
		common.GetLogger(common.LoggerPerf).Errorf("(%s) - failed to create suspender: %v", bm.name, setupErr)
		return testing.BenchmarkResult{}
	}
	return result
}

// --------------------------------------------------------------------------
// Benchmarks
// --------------------------------------------------------------------------

func benchSuspend(b *testing.B, s suspender.ISuspender) {
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			if err := s.Suspend(objectPath(i), i, time.Hour); err != nil {
				logBenchError("suspend", err)
			}
		}
	})
}

func benchSuspendExisting(b *testing.B, s suspender.ISuspender) {
	getPath := prepare(s)
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			if err := s.Suspend(getPath(i), i, time.Hour); err != nil {
				logBenchError("suspend-existing", err)
			}
		}
	})
}

func benchHas(b *testing.B, s suspender.ISuspender) {
	getPath := prepare(s)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			if _, err := s.HasObjectsSuspendedBy(getPath(r.Int63())); err != nil {
				logBenchError("has", err)
			}
		}
	})
}

func benchHasGroup(b *testing.B, s suspender.ISuspender) {
	prepare(s)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			if _, err := s.HasObjectsSuspendedBy(groupPath(r.Int63())); err != nil {
				logBenchError("has-group", err)
			}
		}
	})
}

func benchRestore(b *testing.B, s suspender.ISuspender) {
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			prefix := objectPath(i)
			_ = s.Suspend(prefix.Child("a"), i, time.Hour)
			_ = s.Suspend(prefix.Child("b"), i, time.Hour)
			if err := s.Restore(prefix); err != nil {
				logBenchError("restore", err)
			}
		}
	})
}

func benchRestoreMin(b *testing.B, s suspender.ISuspender) {
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			prefix := objectPath(i)
			_ = s.Suspend(prefix.Child("a"), i, time.Hour)
			_ = s.Suspend(prefix.Child("b"), i, 2*time.Hour)
			for j := 0; j < 2; j++ {
				if err := s.RestoreMin(prefix); err != nil {
					logBenchError("restore-min", err)
				}
			}
		}
	})
}

// benchRestoreGroup restores whole groups, which visits every division
func benchRestoreGroup(b *testing.B, s suspender.ISuspender) {
	var counter atomic.Int64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := counter.Add(1)
			_ = s.Suspend(objectPath(i), i, time.Hour)
			if err := s.Restore(groupPath(i)); err != nil {
				logBenchError("restore-group", err)
			}
		}
	})
}

func benchMixed(b *testing.B, s suspender.ISuspender) {
	getPath := prepare(s)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			path := getPath(r.Int63())

			var err error
			switch op := r.Intn(10); {
			case op < 5:
				err = s.Suspend(path, op, time.Duration(1+r.Intn(60))*time.Minute)
			case op < 7:
				_, err = s.HasObjectsSuspendedBy(path)
			case op < 9:
				err = s.Restore(path)
			default:
				err = s.RestoreMin(suspender.MustPath(path.Segment(0), path.Segment(1)))
			}

			if err != nil {
				logBenchError("mixed", err)
			}
		}
	})
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range benchSkip {
		if test == skip {
			return true
		}
	}
	return false
}

func groupPath(i int64) suspender.Path {
	return suspender.MustPath(fmt.Sprintf("g%d", i%int64(benchGroupSpread)))
}

func objectPath(i int64) suspender.Path {
	return groupPath(i).Child(fmt.Sprintf("o%d", i))
}

// prepare suspends benchPathSpread objects for an hour and returns a function
// to get one of their paths by index (with wraparound)
func prepare(s suspender.ISuspender) func(int64) suspender.Path {
	paths := make([]suspender.Path, benchPathSpread)
	for i := range paths {
		paths[i] = objectPath(int64(i)).Child("leaf")
		if err := s.Suspend(paths[i], i, time.Hour); err != nil {
			logBenchError("prepare", err)
		}
	}

	return func(i int64) suspender.Path {
		if i < 0 {
			i = -i
		}
		return paths[i%int64(len(paths))]
	}
}

func logBenchError(test string, err error) {
	common.GetLogger(common.LoggerPerf).Warningf("(%s) - %v", test, err)
}
