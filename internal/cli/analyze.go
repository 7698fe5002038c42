package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/ipdd/internal/pipeline"
)

var (
	recordIndex     int
	analysisTypes   []string
	modelOverride   string
	outputDirFlag   string
	analyzeTimeout  time.Duration
	noCache         bool
	markdownSummary bool
	htmlSummary     bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <input.json>",
	Short: "Generate a cited due-diligence report for one technology",
	Long: `Analyze loads a technology record, asks the configured model for a
due-diligence report and post-processes it:
- every citation is checked; rejected ones become data gaps
- a citations summary and a weighted composite score are added
- the report and its bibliography are written to the output directory

Example:
  ipdd analyze tech.json
  ipdd analyze techs.json --record-index 3 --type us --type global
  ipdd analyze tech.json --model gpt-5 --output-dir ./reports --md`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().IntVar(&recordIndex, "record-index", -1, "if the input JSON is a list, analyze just this 0-based index")
	analyzeCmd.Flags().StringSliceVar(&analysisTypes, "type", []string{"us"}, "analysis type (us, global); repeatable")
	addReportFlags(analyzeCmd)
}

// addReportFlags registers the flags shared by analyze and batch
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&modelOverride, "model", "", "model to use (default from config)")
	cmd.Flags().StringVar(&outputDirFlag, "output-dir", "", "output directory for reports (default from config)")
	cmd.Flags().DurationVar(&analyzeTimeout, "timeout", 30*time.Minute, "overall timeout")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the generation cache")
	cmd.Flags().BoolVar(&markdownSummary, "md", false, "also write a Markdown summary")
	cmd.Flags().BoolVar(&htmlSummary, "html", false, "also write an HTML summary")
}

func applyReportFlags(cmd *cobra.Command) {
	if modelOverride != "" {
		cfg.LLM.Model = modelOverride
	}
	if outputDirFlag != "" {
		cfg.Output.Dir = outputDirFlag
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if cmd.Flags().Changed("md") {
		cfg.Output.Markdown = markdownSummary
	}
	if cmd.Flags().Changed("html") {
		cfg.Output.HTML = htmlSummary
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	input := args[0]
	if cmd.Flags().Changed("record-index") && recordIndex < 0 {
		return fmt.Errorf("%w: record_index %d is negative", pipeline.ErrRecordIndex, recordIndex)
	}
	types, err := parseTypes(analysisTypes)
	if err != nil {
		return err
	}
	applyReportFlags(cmd)

	ctx, cancel := context.WithTimeout(cmd.Context(), analyzeTimeout)
	defer cancel()

	p, closeStore, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	banner("Life Sciences Due Diligence Analysis")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", input)
	if recordIndex >= 0 {
		fmt.Fprintf(os.Stderr, "  Record:       %d\n", recordIndex)
	}
	fmt.Fprintf(os.Stderr, "  Model:        %s/%s\n", cfg.LLM.Provider, cfg.LLM.Model)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", cfg.Output.Dir)
	fmt.Fprintf(os.Stderr, "\n")

	arts, err := p.Run(ctx, input, recordIndex, types)
	for _, art := range arts {
		printArtifacts(art)
	}
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}
	return nil
}

func printArtifacts(art *pipeline.Artifacts) {
	r := art.Result
	fmt.Fprintf(os.Stderr, "✓ %s report (%s)\n", r.Type, r.Category)
	fmt.Fprintf(os.Stderr, "  Citations:    %d valid of %d (%s)\n", r.Repair.Valid, r.Repair.Total, r.Repair.QualityLabel())
	if r.Composite != nil {
		fmt.Fprintf(os.Stderr, "  Composite:    %.1f (%s)\n", r.Composite.Score0100, r.Composite.Band)
	}
	if r.Quality != nil {
		fmt.Fprintf(os.Stderr, "  Review:       %.0f/100, %d issues\n", r.Quality.Score, r.Quality.IssuesFound)
	}
	fmt.Fprintf(os.Stderr, "  Report:       %s\n", art.ReportPath)
	fmt.Fprintf(os.Stderr, "  Bibliography: %s\n", art.Bibliography)
	if art.MarkdownPath != "" {
		fmt.Fprintf(os.Stderr, "  Summary:      %s\n", art.MarkdownPath)
	}
	if art.HTMLPath != "" {
		fmt.Fprintf(os.Stderr, "  HTML:         %s\n", art.HTMLPath)
	}
	fmt.Fprintf(os.Stderr, "\n")
}
