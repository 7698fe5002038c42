package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ppiankov/ipdd/internal/store"
)

var historyLimit int

// historyCmd lists past runs from the run store
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent analysis runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Store.Enabled {
			return fmt.Errorf("run history is disabled (store.enabled: false)")
		}
		s, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()

		runs, err := s.ListRuns(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CREATED\tTYPE\tCATEGORY\tCITATIONS\tCOMPOSITE\tREPORT")
		for _, r := range runs {
			composite := "-"
			if r.Composite != nil {
				composite = fmt.Sprintf("%.1f %s", *r.Composite, r.Band)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\n",
				r.CreatedAt, r.AnalysisType, r.Category, r.ValidCitations, r.TotalCitations, composite, r.ReportPath)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to show (0 for all)")
}
