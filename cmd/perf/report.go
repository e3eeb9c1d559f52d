package perf

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/ValentinKolb/dSuspend/lib/common"
)

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// configColumns returns the CSV header and row describing the suspender configuration
func configColumns(conf *common.SuspenderConfig) ([]string, []string) {
	return []string{"Divisions", "SleepAfterUseful", "SleepAfterIdle", "Threads"},
		[]string{
			strconv.Itoa(conf.DivisionCount),
			conf.RestorerSleepAfterUsefulWork.String(),
			conf.RestorerSleepAfterIdleWork.String(),
			strconv.Itoa(perfNumThreads),
		}
}

// writeCSV writes header and rows to a new file at csvPath
func writeCSV(csvPath string, header []string, rows [][]string) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row %s: %v", row[0], err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// writeBenchResultsToCSV writes benchmark results to a CSV file
func writeBenchResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, conf *common.SuspenderConfig) error {
	confHeader, confRow := configColumns(conf)
	header := append([]string{"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped"}, confHeader...)
	header = append(header, "Groups", "Paths")

	tests := make([]string, 0, len(results))
	for test := range results {
		tests = append(tests, test)
	}
	sort.Strings(tests)

	rows := make([][]string, 0, len(tests))
	for _, test := range tests {
		result := results[test]

		var nsPerOp, opsPerSec float64
		skipped := "true"
		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
		}
		row = append(row, confRow...)
		row = append(row, strconv.Itoa(benchGroupSpread), strconv.Itoa(benchPathSpread))
		rows = append(rows, row)
	}

	return writeCSV(csvPath, header, rows)
}

// writeLoadResultToCSV writes a load test result as a single CSV row
func writeLoadResultToCSV(csvPath string, r *loadResult, conf *common.SuspenderConfig) error {
	dev := r.Deviation.Snapshot()
	confHeader, confRow := configColumns(conf)

	header := append([]string{
		"RunID", "Passed", "Leaves", "InnerObjects", "LeafDuration",
		"SuspendOps", "SuspendDuration", "SuspendOpsPerSec",
		"DeviationMinMs", "DeviationMeanMs", "DeviationP99Ms", "DeviationMaxMs",
		"RestoreDuration", "Restored", "Failures",
	}, confHeader...)

	row := append([]string{
		r.RunID,
		strconv.FormatBool(r.Passed()),
		strconv.Itoa(r.Scenario.leafCount()),
		strconv.Itoa(r.Scenario.innerCount()),
		r.Scenario.LeafDuration.String(),
		strconv.FormatInt(r.SuspendOps, 10),
		r.SuspendDuration.String(),
		fmt.Sprintf("%.0f", r.SuspendRate),
		strconv.FormatInt(dev.Min(), 10),
		fmt.Sprintf("%.1f", dev.Mean()),
		fmt.Sprintf("%.1f", dev.Percentile(0.99)),
		strconv.FormatInt(dev.Max(), 10),
		r.RestoreDuration.String(),
		strconv.Itoa(r.Restored),
		strconv.Itoa(len(r.Failures)),
	}, confRow...)

	return writeCSV(csvPath, header, [][]string{row})
}
