package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/ipdd/internal/pipeline"
	"github.com/ppiankov/ipdd/internal/worker"
)

var (
	concurrency int
	batchTypes  []string
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <input.json>",
	Short: "Analyze every record of an input file in parallel",
	Long: `Batch analyzes each record of a JSON list concurrently. Each record
gets its own reports, named with the record index so records never
overwrite each other.

Example:
  ipdd batch detailed_stanford.json
  ipdd batch techs.json --concurrency 4 --type us --type global`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default from config)")
	batchCmd.Flags().StringSliceVar(&batchTypes, "type", []string{"us"}, "analysis type (us, global); repeatable")
	addReportFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	input := args[0]
	types, err := parseTypes(batchTypes)
	if err != nil {
		return err
	}
	applyReportFlags(cmd)
	workers := cfg.Concurrency.Workers
	if concurrency > 0 {
		workers = concurrency
	}

	records, err := pipeline.LoadRecords(input)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), analyzeTimeout)
	defer cancel()

	p, closeStore, err := newPipeline(cfg, logger, pipeline.WithIndexedNames(), pipeline.WithTypes(types...))
	if err != nil {
		return err
	}
	defer closeStore()

	banner("ipdd Batch Processing")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", input)
	fmt.Fprintf(os.Stderr, "  Records:      %d\n", len(records))
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", cfg.Output.Dir)
	fmt.Fprintf(os.Stderr, "\n")

	results := worker.NewBatchProcessor(p, workers).ProcessRecords(ctx, input, records)

	failures := 0
	for _, res := range results {
		if res.Error != nil {
			failures++
			fmt.Fprintf(os.Stderr, "✗ record %d: %v\n", res.Index, res.Error)
			continue
		}
		fmt.Fprintf(os.Stderr, "✓ record %d: %d files\n", res.Index, len(res.Paths))
	}

	banner("Batch Complete")
	fmt.Fprintf(os.Stderr, "  Total:     %d records\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", len(results)-failures)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failures)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", cfg.Output.Dir)
	fmt.Fprintf(os.Stderr, "\n")

	if failures == len(results) && failures > 0 {
		return fmt.Errorf("all %d records failed", failures)
	}
	return nil
}
