package item

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/ddbx/cmd/util"
	"github.com/ValentinKolb/ddbx/lib/ddb"
	"github.com/ValentinKolb/ddbx/rpc/common"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for ddbx servers",
		Long:    "Runs parallel benchmarks of the item commands against the table of the shard. The test items are removed afterwards.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfKeyAttribute     = "id"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. put,scan)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the put-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different items to use for the tests"))
	key = "key-attr"
	perfTestCmd.Flags().String(key, "id", util.WrapString("Name of the (string) hash key attribute of the table"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(1, viper.GetInt("keys"))
	perfNumThreads = viper.GetInt("threads")
	perfKeyAttribute = viper.GetString("key-attr")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for ddbx servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("staring tests...")

	smallValue := &types.AttributeValueMemberS{Value: "test"}
	largeValue := &types.AttributeValueMemberB{Value: make([]byte, perfLargeValueSizeKB*1024)}

	benchmarks := []struct {
		name    string
		prepare bool // put the test items before the benchmark
		op      func(counter int, key map[string]types.AttributeValue) error
	}{
		{"put", false, func(_ int, key map[string]types.AttributeValue) error {
			return putItem(key, smallValue)
		}},
		{"put-large", false, func(_ int, key map[string]types.AttributeValue) error {
			return putItem(key, largeValue)
		}},
		{"get", true, func(_ int, key map[string]types.AttributeValue) error {
			_, err := dispatch(ddb.OpGetItem, map[string]any{ddb.HeaderKey: key})
			return err
		}},
		{"update", true, func(_ int, key map[string]types.AttributeValue) error {
			_, err := dispatch(ddb.OpUpdateItem, map[string]any{
				ddb.HeaderKey: key,
				ddb.HeaderUpdateValues: map[string]types.AttributeValueUpdate{
					"counter": {Action: types.AttributeActionAdd, Value: &types.AttributeValueMemberN{Value: "1"}},
				},
			})
			return err
		}},
		{"scan", true, func(_ int, _ map[string]types.AttributeValue) error {
			_, err := dispatch(ddb.OpScan, map[string]any{ddb.HeaderLimit: int32(10)})
			return err
		}},
		{"mixed", true, func(counter int, key map[string]types.AttributeValue) error {
			var err error
			switch counter % 4 {
			case 0: // put
				err = putItem(key, smallValue)
			case 1: // get
				_, err = dispatch(ddb.OpGetItem, map[string]any{ddb.HeaderKey: key})
			case 2: // delete
				_, err = dispatch(ddb.OpDeleteItem, map[string]any{ddb.HeaderKey: key})
			case 3: // scan
				_, err = dispatch(ddb.OpScan, map[string]any{ddb.HeaderLimit: int32(10)})
			}
			return err
		}},
	}

	// Create results map
	results := make(map[string]testing.BenchmarkResult)

	for _, bm := range benchmarks {
		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(bm.name) {
				return
			}

			// prepare keys
			getKey, iter := getKeys(bm.name)

			if bm.prepare {
				iter(func(k map[string]types.AttributeValue) {
					if err := putItem(k, smallValue); err != nil {
						log.Printf("(%s) - error putting item: %v\n", bm.name, err)
					}
				})
			}

			// cleanup
			b.Cleanup(func() {
				iter(func(k map[string]types.AttributeValue) {
					if _, err := dispatch(ddb.OpDeleteItem, map[string]any{ddb.HeaderKey: k}); err != nil {
						log.Printf("(%s) - error deleting item: %v\n", bm.name, err)
					}
				})
			})

			b.SetParallelism(perfNumThreads)

			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				counter := 0
				for pb.Next() {
					if err := bm.op(counter, getKey(counter)); err != nil {
						log.Printf("(%s) - error performing operation: %v\n", bm.name, err)
					}
					counter++
				}
			})
		})

		results[bm.name] = result
		printBenchmarkResult(bm.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func putItem(key map[string]types.AttributeValue, value types.AttributeValue) error {
	item := map[string]types.AttributeValue{"value": value}
	for name, v := range key {
		item[name] = v
	}
	_, err := dispatch(ddb.OpPutItem, map[string]any{ddb.HeaderItem: item})
	return err
}

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// creates a list of test keys and functions to work with them
func getKeys(prefix string) (func(int) map[string]types.AttributeValue, func(func(map[string]types.AttributeValue))) {
	keys := make([]map[string]types.AttributeValue, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = map[string]types.AttributeValue{
			perfKeyAttribute: &types.AttributeValueMemberS{Value: fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)},
		}
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) map[string]types.AttributeValue {
		return keys[i%perfKeySpread]
	}

	// Function to iterate over all keys and apply a function to each
	iterateKeys := func(fn func(map[string]types.AttributeValue)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printBenchmarkResult prints the result of a benchmark test in a formatted way
func printBenchmarkResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"ShardID", "Table", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
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
			strings.Join(config.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.RetryCount),
			strconv.Itoa(config.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetShardID(), 10),
			viper.GetString("table"),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
